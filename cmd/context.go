package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

var baseCtx context.Context

// rootContext is cancelled on SIGINT/SIGTERM
func rootContext() context.Context {
	if baseCtx == nil {
		baseCtx, _ = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	}
	return baseCtx
}
