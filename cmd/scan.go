package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/secaudit/pkg/config"
	"github.com/user/secaudit/pkg/engine"
	"github.com/user/secaudit/pkg/ui"
)

// scanOptions are the flags of the scan command
type scanOptions struct {
	Root     string
	JSON     bool
	Baseline string
	Snapshot string
	FailOn   string
}

var scanCmd = &cobra.Command{
	Use:   "scan [path]",
	Short: "Run the scanning engine against a directory without storing results",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		opts := scanOptions{Root: "."}
		if len(args) == 1 {
			opts.Root = args[0]
		}
		opts.JSON, _ = cmd.Flags().GetBool("json")
		opts.Baseline, _ = cmd.Flags().GetString("baseline")
		opts.Snapshot, _ = cmd.Flags().GetString("save-snapshot")
		opts.FailOn, _ = cmd.Flags().GetString("fail-on")

		cfg, err := config.LoadConfig()
		if err != nil {
			fail("Error loading config", err)
		}
		cat, err := engine.DefaultCatalog()
		if err != nil {
			fail("Rule catalog is invalid", err)
		}

		exceeded, err := runScan(rootContext(), cfg.Engine(cat), opts, os.Stdout, os.Stderr)
		if err != nil {
			fail("Scan failed", err)
		}
		if exceeded {
			os.Exit(2)
		}
	},
}

// runScan validates opts, runs the engine and prints the result. In JSON mode stdout receives
// only the result document and human-readable output goes to stderr. It reports whether a
// finding reached the --fail-on threshold.
func runScan(ctx context.Context, eng *engine.Engine, opts scanOptions, stdout, stderr io.Writer) (bool, error) {
	var threshold engine.Severity
	if opts.FailOn != "" {
		sev, err := engine.ParseSeverity(opts.FailOn)
		if err != nil {
			return false, fmt.Errorf("invalid --fail-on: %w", err)
		}
		threshold = sev
	}
	var baseline *engine.ScanResult
	if opts.Baseline != "" {
		prev, err := engine.LoadSnapshot(opts.Baseline)
		if err != nil {
			return false, fmt.Errorf("failed to load baseline: %w", err)
		}
		baseline = prev
	}

	prevOut := ui.Out
	defer func() { ui.Out = prevOut }()
	ui.Out = stdout
	if opts.JSON {
		ui.Out = stderr
	} else {
		ui.PrintBanner()
		ui.PrintProgress(fmt.Sprintf("Scanning %s", opts.Root))
	}

	result, err := eng.Run(ctx, opts.Root, "")
	if err != nil {
		return false, err
	}

	if opts.JSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return false, fmt.Errorf("failed to encode result: %w", err)
		}
	} else {
		printResult(result)
	}

	if baseline != nil {
		ui.PrintDiff(engine.Compare(result.Findings, baseline.Findings))
	}
	if opts.Snapshot != "" {
		if err := engine.SaveSnapshot(opts.Snapshot, result); err != nil {
			return false, fmt.Errorf("failed to save snapshot: %w", err)
		}
		ui.PrintSuccess(fmt.Sprintf("Snapshot saved to %s", opts.Snapshot))
	}

	return threshold != "" && exceeds(result.Findings, threshold), nil
}

// exceeds reports whether any finding is at or above threshold
func exceeds(findings []engine.Finding, threshold engine.Severity) bool {
	for _, f := range findings {
		if f.Severity.Rank() >= threshold.Rank() {
			return true
		}
	}
	return false
}

func printResult(result *engine.ScanResult) {
	for _, f := range result.Findings {
		ui.PrintFinding(f, "")
	}
	ui.PrintWarnings(result.Warnings)
	ui.PrintSummary(result.Summary, result.RiskScore)
}

func init() {
	scanCmd.Flags().Bool("json", false, "Print the scan result as JSON")
	scanCmd.Flags().String("baseline", "", "Compare against a saved snapshot")
	scanCmd.Flags().String("save-snapshot", "", "Save this result as a snapshot")
	scanCmd.Flags().String("fail-on", "", "Exit with status 2 if a finding of this severity or higher exists")
	rootCmd.AddCommand(scanCmd)
}
