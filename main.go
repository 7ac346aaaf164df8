package main

import "github.com/user/secaudit/cmd"

func main() {
	cmd.Execute()
}
