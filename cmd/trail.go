package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/user/secaudit/pkg/audit"
)

var trailCmd = &cobra.Command{
	Use:   "trail",
	Short: "Show the most recent audit trail entries (admin only)",
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")
		a := mustOpenApp()
		defer a.Close()
		if !a.actor.IsAdmin() {
			fail("Not allowed", fmt.Errorf("%w: the audit trail is restricted to admins", audit.ErrForbidden))
		}

		entries, err := a.trail.Tail(limit)
		if err != nil {
			fail("Failed to read audit trail", err)
		}
		for _, e := range entries {
			forced := ""
			if e.Forced {
				forced = color.YellowString(" FORCED")
			}
			fmt.Printf("%s  %-10s %-16s %s/%s%s %s\n", e.TimestampUtc, e.ActorID, e.Action, e.EntityType, e.EntityID, forced, formatDetails(e.Details))
		}
	},
}

func formatDetails(d map[string]string) string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+d[k])
	}
	return strings.Join(parts, " ")
}

func init() {
	trailCmd.Flags().IntP("limit", "n", 50, "Number of entries to show")
	rootCmd.AddCommand(trailCmd)
}
