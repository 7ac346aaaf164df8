package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/secaudit/pkg/audit"
	"github.com/user/secaudit/pkg/lifecycle"
	"github.com/user/secaudit/pkg/ui"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Manage audit scans and their lifecycle",
}

var auditCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Plan a new scan of a project",
	Run: func(cmd *cobra.Command, args []string) {
		projectID, _ := cmd.Flags().GetString("project")
		name, _ := cmd.Flags().GetString("name")
		scope, _ := cmd.Flags().GetString("scope")
		assignee, _ := cmd.Flags().GetString("assignee")

		a := mustOpenApp()
		defer a.Close()
		if assignee != "" && assignee != a.actor.ID && !a.actor.IsAdmin() {
			fail("Not allowed", fmt.Errorf("%w: only admins can assign scans to others", audit.ErrForbidden))
		}
		sc, err := a.svc.CreateScan(rootContext(), a.actor, projectID, name, scope, assignee)
		if err != nil {
			fail("Failed to create scan", err)
		}
		a.record("scan.create", "scan", sc.ID, false, map[string]string{"project": projectID, "assignee": sc.AssignedTo})
		ui.PrintSuccess(fmt.Sprintf("Scan planned: %s (%s)", sc.Name, sc.ID))
	},
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scans",
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp()
		defer a.Close()
		scans, err := a.svc.ListScans(rootContext(), a.actor)
		if err != nil {
			fail("Failed to list scans", err)
		}
		for _, sc := range scans {
			fmt.Printf("%s  %-18s %-24s %s\n", sc.ID, sc.Status, sc.Name, sc.AssignedTo)
		}
	},
}

var auditRunCmd = &cobra.Command{
	Use:   "run <scan-id>",
	Short: "Run the scanning engine for a scan and store the findings",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp()
		defer a.Close()
		sc := a.authorize(args[0])

		ui.PrintProgress(fmt.Sprintf("Running scan %s", sc.Name))
		out, err := a.svc.RunScan(rootContext(), a.actor, sc.ID)
		if err != nil {
			var rb *audit.RollbackError
			if errors.As(err, &rb) {
				a.record("scan.run", "scan", sc.ID, false, map[string]string{"result": "rollback-failed", "error": err.Error()})
				fail("Scan failed and is stuck IN_PROGRESS; an admin must reset it", err)
			}
			a.record("scan.run", "scan", sc.ID, false, map[string]string{"result": "failed", "error": err.Error()})
			fail("Scan failed", err)
		}
		a.record("scan.run", "scan", sc.ID, false, map[string]string{
			"result":    "ok",
			"findings":  fmt.Sprint(len(out.Result.Findings)),
			"riskScore": fmt.Sprint(out.Result.RiskScore),
		})
		printResult(out.Result)
		ui.PrintSuccess(fmt.Sprintf("Scan %s is now %s", sc.ID, out.Scan.Status))
	},
}

var auditStatusCmd = &cobra.Command{
	Use:   "status <scan-id> [new-status]",
	Short: "Show or change the lifecycle status of a scan",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp()
		defer a.Close()
		sc := a.authorize(args[0])

		if len(args) == 1 {
			fmt.Printf("%s: %s (version %d)\n", sc.Name, sc.Status, sc.Version)
			fmt.Printf("Next: %v\n", lifecycle.Next(sc.Status))
			return
		}
		to, err := lifecycle.Parse(args[1])
		if err != nil {
			fail("Invalid status", err)
		}
		change, err := a.svc.ChangeStatus(rootContext(), a.actor, sc.ID, to)
		if err != nil {
			fail("Status change rejected", err)
		}
		a.record("scan.status", "scan", sc.ID, change.Record.Forced, map[string]string{
			"from": string(change.Record.From),
			"to":   string(change.Record.To),
		})
		if change.Record.Forced {
			ui.PrintWarning(fmt.Sprintf("Forced transition %s -> %s", change.Record.From, change.Record.To))
		}
		ui.PrintSuccess(fmt.Sprintf("Scan %s is now %s", sc.ID, change.Scan.Status))
	},
}

var auditSummaryCmd = &cobra.Command{
	Use:   "summary <scan-id>",
	Short: "Show the risk summary of a scan",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		asJSON, _ := cmd.Flags().GetBool("json")
		a := mustOpenApp()
		defer a.Close()
		sc := a.authorize(args[0])

		view, err := a.svc.RiskSummary(rootContext(), sc.ID)
		if err != nil {
			fail("Failed to build summary", err)
		}
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			_ = enc.Encode(view)
			return
		}

		fmt.Printf("%s (%s)\n", view.Name, view.Status)
		if view.LastRun != nil {
			fmt.Printf("Risk score as of last run (%s): %d\n", view.LastRun.ComputedAt.Format("2006-01-02 15:04 MST"), view.LastRun.RiskScore)
		} else {
			fmt.Println("Risk score as of last run: never run")
		}
		ui.PrintSummary(view.LiveCounts, view.LiveScore)
		printBuckets("OWASP Top 10", view.OWASPTop10)
		printBuckets("ISO 27001", view.ISO27001)
		printBuckets("NIST CSF", view.NISTCSF)
	},
}

func printBuckets(title string, buckets []audit.Bucket) {
	if len(buckets) == 0 {
		return
	}
	fmt.Printf("%s:\n", title)
	for _, b := range buckets {
		fmt.Printf("  %-48s %d\n", b.Label, b.Count)
	}
}

var auditReportCmd = &cobra.Command{
	Use:   "report <scan-id>",
	Short: "Generate a markdown report for a scan",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		out, _ := cmd.Flags().GetString("out")
		a := mustOpenApp()
		defer a.Close()
		sc := a.authorize(args[0])

		res, err := a.svc.GenerateReport(rootContext(), a.actor, sc.ID)
		if err != nil {
			fail("Report generation failed", err)
		}
		details := map[string]string{"report": res.Report.ID}
		if res.Advanced {
			details["status"] = string(res.Scan.Status)
		}
		a.record("report.generate", "scan", sc.ID, false, details)

		if out == "" {
			fmt.Print(res.Report.Content)
			return
		}
		if err := os.WriteFile(out, []byte(res.Report.Content), 0644); err != nil {
			fail("Failed to write report", err)
		}
		ui.PrintSuccess(fmt.Sprintf("Report written to %s", out))
	},
}

var auditReportsCmd = &cobra.Command{
	Use:   "reports <scan-id>",
	Short: "List reports generated for a scan",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp()
		defer a.Close()
		sc := a.authorize(args[0])
		reports, err := a.store.ListReports(rootContext(), sc.ID)
		if err != nil {
			fail("Failed to list reports", err)
		}
		for _, r := range reports {
			fmt.Printf("%s  %s  %-10s %s\n", r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.CreatedBy, r.Title)
		}
	},
}

var auditDeleteCmd = &cobra.Command{
	Use:   "delete <scan-id>",
	Short: "Permanently delete a scan and everything it owns (admin only)",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp()
		defer a.Close()
		if !a.actor.IsAdmin() {
			fail("Not allowed", fmt.Errorf("%w: only admins can delete scans; archive it instead", audit.ErrForbidden))
		}
		sc := a.authorize(args[0])
		if err := a.store.DeleteScan(rootContext(), sc.ID); err != nil {
			fail("Delete failed", err)
		}
		a.record("scan.delete", "scan", sc.ID, false, map[string]string{"name": sc.Name, "status": string(sc.Status)})
		ui.PrintSuccess(fmt.Sprintf("Scan %s deleted", sc.ID))
	},
}

func init() {
	auditCreateCmd.Flags().String("project", "", "Project ID")
	auditCreateCmd.Flags().String("name", "", "Scan name")
	auditCreateCmd.Flags().String("scope", "", "Free-form scope notes")
	auditCreateCmd.Flags().String("assignee", "", "Assigned auditor (default: you)")
	_ = auditCreateCmd.MarkFlagRequired("project")
	_ = auditCreateCmd.MarkFlagRequired("name")

	auditSummaryCmd.Flags().Bool("json", false, "Print as JSON")
	auditReportCmd.Flags().StringP("out", "o", "", "Write the report to a file")

	auditCmd.AddCommand(auditCreateCmd)
	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditRunCmd)
	auditCmd.AddCommand(auditStatusCmd)
	auditCmd.AddCommand(auditSummaryCmd)
	auditCmd.AddCommand(auditReportCmd)
	auditCmd.AddCommand(auditReportsCmd)
	auditCmd.AddCommand(auditDeleteCmd)
	rootCmd.AddCommand(auditCmd)
}
