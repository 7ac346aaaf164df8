package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/secaudit/pkg/engine"
	"github.com/user/secaudit/pkg/ui"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show audit overview metrics",
	Run: func(cmd *cobra.Command, args []string) {
		asJSON, _ := cmd.Flags().GetBool("json")
		a := mustOpenApp()
		defer a.Close()

		stats, err := a.svc.Overview(rootContext(), a.actor)
		if err != nil {
			fail("Failed to load overview", err)
		}
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(stats)
			return
		}

		fmt.Printf("\n%s Audits\n", ui.ChartEmoji)
		fmt.Printf("  Total:          %d\n", stats.TotalScans)
		fmt.Printf("  Active:         %d\n", stats.ActiveScans)
		fmt.Printf("  Completed:      %d\n", stats.CompletedScans)
		fmt.Printf("  Pending review: %d\n", stats.PendingReviewScans)
		fmt.Printf("\n%s Findings\n", ui.ShieldEmoji)
		for _, sev := range engine.Severities {
			fmt.Printf("  %s %d\n", ui.ColorForSeverity(sev)("%-15s", sev+":"), stats.SeverityCounts[sev])
		}
		fmt.Printf("  Open critical:  %d\n", stats.CriticalOpenFindings)
	},
}

func init() {
	dashboardCmd.Flags().Bool("json", false, "Print as JSON")
	rootCmd.AddCommand(dashboardCmd)
}
