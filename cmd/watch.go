package cmd

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/secaudit/pkg/config"
	"github.com/user/secaudit/pkg/engine"
	"github.com/user/secaudit/pkg/logger"
	"github.com/user/secaudit/pkg/ui"
	"github.com/user/secaudit/pkg/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Re-run the scanning engine whenever files change",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		root := "."
		if len(args) == 1 {
			root = args[0]
		}
		root, err := filepath.Abs(root)
		if err != nil {
			fail("Invalid path", err)
		}
		debounce, _ := cmd.Flags().GetDuration("debounce")

		cfg, err := config.LoadConfig()
		if err != nil {
			fail("Error loading config", err)
		}
		cat, err := engine.DefaultCatalog()
		if err != nil {
			fail("Rule catalog is invalid", err)
		}
		eng := cfg.Engine(cat)
		ctx := rootContext()

		var (
			mu       sync.Mutex
			previous []engine.Finding
		)
		run := func() {
			mu.Lock()
			defer mu.Unlock()
			result, err := eng.Run(ctx, root, "")
			if err != nil {
				ui.PrintError("Scan failed", err)
				return
			}
			fmt.Printf("\n%s %s\n", ui.MagnifierEmoji, time.Now().Format("15:04:05"))
			if previous == nil {
				printResult(result)
			} else {
				ui.PrintDiff(engine.Compare(result.Findings, previous))
				ui.PrintSummary(result.Summary, result.RiskScore)
			}
			previous = result.Findings
			if previous == nil {
				previous = []engine.Finding{}
			}
		}

		ui.PrintBanner()
		ui.PrintProgress(fmt.Sprintf("Watching %s (Ctrl+C to stop)", root))
		run()

		w := &watch.Watcher{
			Root:       root,
			IgnoreDirs: cfg.Walker().IgnoreDirs,
			Debounce:   debounce,
			OnChange:   run,
		}
		if err := w.Run(ctx); err != nil && ctx.Err() == nil {
			fail("Watcher stopped", err)
		}
		logger.Debugf("watch on %s stopped", root)
	},
}

func init() {
	watchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "Quiet period before re-scanning")
	rootCmd.AddCommand(watchCmd)
}
