package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/user/secaudit/pkg/assist"
	"github.com/user/secaudit/pkg/audit"
	"github.com/user/secaudit/pkg/engine"
	"github.com/user/secaudit/pkg/store"
	"github.com/user/secaudit/pkg/ui"
)

var findingCmd = &cobra.Command{
	Use:   "finding",
	Short: "Manage findings of a scan",
}

var findingAddCmd = &cobra.Command{
	Use:   "add <scan-id>",
	Short: "Record a manual finding",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		in := audit.FindingInput{}
		in.Title, _ = cmd.Flags().GetString("title")
		in.Description, _ = cmd.Flags().GetString("description")
		in.OWASPCategory, _ = cmd.Flags().GetString("category")
		in.Impact, _ = cmd.Flags().GetString("impact")
		in.Recommendation, _ = cmd.Flags().GetString("recommendation")
		in.AffectedFileOrRoute, _ = cmd.Flags().GetString("location")
		in.Compliance.OWASPTop10, _ = cmd.Flags().GetString("owasp")
		in.Compliance.ISO27001, _ = cmd.Flags().GetString("iso")
		in.Compliance.NISTCSF, _ = cmd.Flags().GetString("nist")
		sev, _ := cmd.Flags().GetString("severity")

		severity, err := engine.ParseSeverity(sev)
		if err != nil {
			fail("Invalid severity", err)
		}
		in.Severity = severity

		a := mustOpenApp()
		defer a.Close()
		sc := a.authorize(args[0])
		f, err := a.svc.CreateFinding(rootContext(), a.actor, sc.ID, in)
		if err != nil {
			fail("Failed to add finding", err)
		}
		a.record("finding.create", "finding", f.ID, false, map[string]string{"scan": sc.ID, "severity": string(f.Severity)})
		ui.PrintSuccess(fmt.Sprintf("Finding recorded: %s", f.ID))
	},
}

var findingUpdateCmd = &cobra.Command{
	Use:   "update <finding-id>",
	Short: "Change a finding's severity, status or text",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		var u audit.FindingUpdate
		u.Justification, _ = cmd.Flags().GetString("justification")
		if cmd.Flags().Changed("severity") {
			v, _ := cmd.Flags().GetString("severity")
			sev, err := engine.ParseSeverity(v)
			if err != nil {
				fail("Invalid severity", err)
			}
			u.Severity = &sev
		}
		if cmd.Flags().Changed("status") {
			v, _ := cmd.Flags().GetString("status")
			st, err := engine.ParseStatus(v)
			if err != nil {
				fail("Invalid status", err)
			}
			u.Status = &st
		}
		for flag, dst := range map[string]**string{
			"title":          &u.Title,
			"description":    &u.Description,
			"impact":         &u.Impact,
			"recommendation": &u.Recommendation,
		} {
			if cmd.Flags().Changed(flag) {
				v, _ := cmd.Flags().GetString(flag)
				*dst = &v
			}
		}

		a := mustOpenApp()
		defer a.Close()
		f := mustFinding(a, args[0])
		before := f.Severity
		updated, err := a.svc.UpdateFinding(rootContext(), a.actor, f.ID, u)
		if err != nil {
			fail("Update rejected", err)
		}
		a.record("finding.update", "finding", f.ID, false, map[string]string{
			"severity":      fmt.Sprintf("%s->%s", before, updated.Severity),
			"status":        string(updated.Status),
			"justification": u.Justification,
		})
		ui.PrintFinding(updated.Finding(), string(updated.Status))
	},
}

var findingDeleteCmd = &cobra.Command{
	Use:   "delete <finding-id>",
	Short: "Delete a finding",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp()
		defer a.Close()
		f := mustFinding(a, args[0])
		if err := a.svc.DeleteFinding(rootContext(), f.ID); err != nil {
			fail("Delete failed", err)
		}
		a.record("finding.delete", "finding", f.ID, false, map[string]string{"scan": f.ScanID, "title": f.Title})
		ui.PrintSuccess("Finding deleted")
	},
}

var findingListCmd = &cobra.Command{
	Use:   "list <scan-id>",
	Short: "List findings of a scan, newest first",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp()
		defer a.Close()
		sc := a.authorize(args[0])
		findings, err := a.svc.ListFindings(rootContext(), sc.ID)
		if err != nil {
			fail("Failed to list findings", err)
		}
		for _, f := range findings {
			ui.PrintFinding(f.Finding(), fmt.Sprintf("%s (%s)", f.Status, f.Provenance))
		}
	},
}

var findingHistoryCmd = &cobra.Command{
	Use:   "history <finding-id>",
	Short: "Show severity and status changes of a finding",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := mustOpenApp()
		defer a.Close()
		f := mustFinding(a, args[0])
		rows, err := a.svc.FindingHistory(rootContext(), f.ID)
		if err != nil {
			fail("Failed to load history", err)
		}
		for _, h := range rows {
			fmt.Printf("%s  %-8s %-10s %s -> %s  %s\n", h.CreatedAt.Format("2006-01-02 15:04"), h.ActorID, h.Field, h.OldValue, h.NewValue, h.Justification)
		}
	},
}

var findingRefineCmd = &cobra.Command{
	Use:   "refine <finding-id>",
	Short: "Rewrite a finding's description (or draft remediation) with the configured assistant",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		apply, _ := cmd.Flags().GetBool("apply")
		remediate, _ := cmd.Flags().GetBool("remediation")

		a := mustOpenApp()
		defer a.Close()
		f := mustFinding(a, args[0])

		ctx := rootContext()
		provider, err := assist.NewProvider(ctx, a.cfg.SelectedProvider, a.cfg.GetAPIKey(a.cfg.SelectedProvider), a.cfg.SelectedModel)
		if err != nil {
			fail("Error creating assistant", err)
		}
		if closer, ok := provider.(interface{ Close() }); ok {
			defer closer.Close()
		}
		assistant := assist.New(provider)
		if assistant.Offline() {
			if apply {
				fail("Nothing to apply", fmt.Errorf("%w: run 'secaudit config setup' first", assist.ErrOffline))
			}
			ui.PrintWarning("No API key configured; showing the stored text unchanged")
		}

		var text string
		if remediate {
			text, err = assistant.Remediation(ctx, f.Title, f.Description)
		} else {
			text, err = assistant.Refine(ctx, f.Description)
		}
		if err != nil {
			fail("Assistant failed", err)
		}
		fmt.Println(text)

		if !apply {
			return
		}
		u := audit.FindingUpdate{Description: &text}
		if remediate {
			u = audit.FindingUpdate{Recommendation: &text}
		}
		if _, err := a.svc.UpdateFinding(ctx, a.actor, f.ID, u); err != nil {
			fail("Failed to apply", err)
		}
		a.record("finding.refine", "finding", f.ID, false, map[string]string{"remediation": fmt.Sprint(remediate)})
		ui.PrintSuccess("Finding updated")
	},
}

func mustFinding(a *app, id string) *store.FindingRecord {
	f, err := a.svc.GetFinding(rootContext(), id)
	if err != nil {
		fail("Finding lookup failed", err)
	}
	a.authorize(f.ScanID)
	return f
}

func init() {
	findingAddCmd.Flags().String("title", "", "Title")
	findingAddCmd.Flags().String("severity", "", "CRITICAL, HIGH, MEDIUM or LOW")
	findingAddCmd.Flags().String("description", "", "Description")
	findingAddCmd.Flags().String("category", "", "OWASP category")
	findingAddCmd.Flags().String("impact", "", "Impact")
	findingAddCmd.Flags().String("recommendation", "", "Recommendation")
	findingAddCmd.Flags().String("location", "", "Affected file or route")
	findingAddCmd.Flags().String("owasp", "", "OWASP Top 10 label")
	findingAddCmd.Flags().String("iso", "", "ISO 27001 controls, ';' separated")
	findingAddCmd.Flags().String("nist", "", "NIST CSF functions, ';' separated")
	_ = findingAddCmd.MarkFlagRequired("title")
	_ = findingAddCmd.MarkFlagRequired("severity")

	findingUpdateCmd.Flags().String("severity", "", "New severity")
	findingUpdateCmd.Flags().String("status", "", "New status")
	findingUpdateCmd.Flags().String("justification", "", "Reason (required when lowering severity)")
	findingUpdateCmd.Flags().String("title", "", "New title")
	findingUpdateCmd.Flags().String("description", "", "New description")
	findingUpdateCmd.Flags().String("impact", "", "New impact")
	findingUpdateCmd.Flags().String("recommendation", "", "New recommendation")

	findingRefineCmd.Flags().Bool("apply", false, "Store the rewritten text on the finding")
	findingRefineCmd.Flags().Bool("remediation", false, "Draft remediation steps instead of refining the description")

	findingCmd.AddCommand(findingAddCmd)
	findingCmd.AddCommand(findingUpdateCmd)
	findingCmd.AddCommand(findingDeleteCmd)
	findingCmd.AddCommand(findingListCmd)
	findingCmd.AddCommand(findingHistoryCmd)
	findingCmd.AddCommand(findingRefineCmd)
	rootCmd.AddCommand(findingCmd)
}
