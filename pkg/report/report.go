// Package report renders audit scans as markdown documents.
package report

import (
	"bytes"
	_ "embed"
	"fmt"
	"sort"
	"text/template"
	"time"

	"github.com/user/secaudit/pkg/engine"
	"github.com/user/secaudit/pkg/store"
)

//go:embed templates/report.md.tmpl
var reportTemplate string

var tmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(reportTemplate))

// Input is everything a report is rendered from
type Input struct {
	Scan        *store.Scan
	Project     *store.Project
	Findings    []store.FindingRecord
	Cached      *store.RiskSummary
	GeneratedAt time.Time
}

type view struct {
	Input
	Summary engine.Summary
}

// Render builds the markdown report. Findings are listed most severe first.
func Render(in Input) (string, error) {
	if in.Scan == nil {
		return "", fmt.Errorf("report requires a scan")
	}
	if in.GeneratedAt.IsZero() {
		in.GeneratedAt = time.Now().UTC()
	}

	findings := make([]store.FindingRecord, len(in.Findings))
	copy(findings, in.Findings)
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Severity.Rank() > findings[j].Severity.Rank()
	})
	in.Findings = findings

	live := make([]engine.Finding, 0, len(findings))
	for _, f := range findings {
		live = append(live, f.Finding())
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, view{Input: in, Summary: engine.Summarize(live)}); err != nil {
		return "", fmt.Errorf("failed to render report: %v", err)
	}
	return buf.String(), nil
}

// Title is the stored title of a scan's report
func Title(sc *store.Scan) string {
	return sc.Name + " - Final Report"
}
