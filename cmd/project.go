package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/user/secaudit/pkg/store"
	"github.com/user/secaudit/pkg/ui"
)

var projectCmd = &cobra.Command{
	Use:   "project",
	Short: "Manage audited projects",
}

var projectCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a project and its source path",
	Run: func(cmd *cobra.Command, args []string) {
		name, _ := cmd.Flags().GetString("name")
		client, _ := cmd.Flags().GetString("client")
		desc, _ := cmd.Flags().GetString("description")
		path, _ := cmd.Flags().GetString("path")

		if path != "" {
			if abs, err := filepath.Abs(path); err == nil {
				path = abs
			}
		}

		a := mustOpenApp()
		defer a.Close()
		p := &store.Project{Name: name, Client: client, Description: desc, SourcePath: path}
		if err := a.svc.CreateProject(rootContext(), a.actor, p); err != nil {
			fail("Failed to create project", err)
		}
		a.record("project.create", "project", p.ID, false, map[string]string{"name": p.Name})
		ui.PrintSuccess(fmt.Sprintf("Project created: %s (%s)", p.Name, p.ID))
	},
}

var projectListCmd = &cobra.Command{
	Use:   "list",
	Short: "List projects",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp()
		defer a.Close()
		projects, err := a.svc.ListProjects(rootContext(), a.actor)
		if err != nil {
			fail("Failed to list projects", err)
		}
		if len(projects) == 0 {
			fmt.Println("No projects yet. Create one with 'secaudit project create'.")
			return
		}
		for _, p := range projects {
			fmt.Printf("%s  %-24s %-16s %s\n", p.ID, p.Name, p.Client, p.SourcePath)
		}
	},
}

func init() {
	projectCreateCmd.Flags().String("name", "", "Project name")
	projectCreateCmd.Flags().String("client", "", "Client name")
	projectCreateCmd.Flags().String("description", "", "Description")
	projectCreateCmd.Flags().String("path", "", "Source directory scanned by 'audit run'")
	_ = projectCreateCmd.MarkFlagRequired("name")

	projectCmd.AddCommand(projectCreateCmd)
	projectCmd.AddCommand(projectListCmd)
	rootCmd.AddCommand(projectCmd)
}
