package ui

import (
	"fmt"

	"github.com/user/secaudit/pkg/engine"
)

// PrintFinding prints a single finding. id and status are optional.
func PrintFinding(f engine.Finding, status string) {
	sev := f.Severity
	fmt.Fprintf(Out, "\n%s %s: %s\n", EmojiForSeverity(sev), ColorForSeverity(sev)("%s", sev), warning("%s", f.Title))
	if f.ID != "" {
		fmt.Fprintf(Out, "   ID:       %s\n", f.ID)
	}
	if status != "" {
		fmt.Fprintf(Out, "   Status:   %s\n", status)
	}
	if f.AffectedFileOrRoute != "" {
		fmt.Fprintf(Out, "   %s Location: %s\n", FolderEmoji, info("%s", f.AffectedFileOrRoute))
	}
	if f.OWASPCategory != "" {
		fmt.Fprintf(Out, "   Category: %s\n", f.OWASPCategory)
	}
	if f.Description != "" {
		fmt.Fprintf(Out, "   %s\n", f.Description)
	}
	if f.Recommendation != "" {
		fmt.Fprintf(Out, "   %s Fix: %s\n", MagnifierEmoji, f.Recommendation)
	}
}

// PrintSummary prints the severity breakdown and risk score
func PrintSummary(s engine.Summary, riskScore int) {
	fmt.Fprintf(Out, `
%s Audit Summary
Total Issues: %d   Risk Score: %d

Severity Breakdown:
%s Critical: %d
%s High:     %d
%s Medium:   %d
%s Low:      %d

`,
		ChartEmoji, s.Total(), riskScore,
		criticalColor("■"), s.Critical,
		highColor("■"), s.High,
		mediumColor("■"), s.Medium,
		lowColor("■"), s.Low)
}

// PrintWarnings lists scan-level warnings
func PrintWarnings(ws []engine.Warning) {
	for _, w := range ws {
		PrintWarning(w.String())
	}
}

// PrintDiff prints a comparison against a baseline run
func PrintDiff(d engine.Diff) {
	fmt.Fprintf(Out, "\n%s Compared to baseline: %s new, %s fixed, %d unchanged\n",
		ChartEmoji, errorColor("%d", len(d.New)), success("%d", len(d.Fixed)), len(d.Unchanged))
	for _, f := range d.New {
		fmt.Fprintf(Out, "   + [%s] %s (%s)\n", f.Severity, f.Title, f.AffectedFileOrRoute)
	}
	for _, f := range d.Fixed {
		fmt.Fprintf(Out, "   - [%s] %s (%s)\n", f.Severity, f.Title, f.AffectedFileOrRoute)
	}
}
