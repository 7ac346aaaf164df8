package audit

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/user/secaudit/pkg/engine"
	"github.com/user/secaudit/pkg/lifecycle"
	"github.com/user/secaudit/pkg/store"
)

// Bucket is a compliance label with the number of findings mapped to it
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// LastRun is the risk score cached by the last successful engine run
type LastRun struct {
	RiskScore  int            `json:"riskScore"`
	Counts     engine.Summary `json:"counts"`
	ComputedAt time.Time      `json:"computedAt"`
}

// RiskView is the read-time risk summary of a scan. LastRun is stale once findings are
// edited by hand; Live* fields reflect the findings as they are now.
type RiskView struct {
	ScanID     string           `json:"scanId"`
	Name       string           `json:"name"`
	Status     lifecycle.Status `json:"status"`
	LastRun    *LastRun         `json:"lastRun,omitempty"`
	LiveScore  int              `json:"liveRiskScore"`
	LiveCounts engine.Summary   `json:"severityCounts"`
	OWASPTop10 []Bucket         `json:"owaspTop10"`
	ISO27001   []Bucket         `json:"iso27001Controls"`
	NISTCSF    []Bucket         `json:"nistCsfFunctions"`
}

// RiskSummary builds the read-time view of a scan's risk
func (s *Service) RiskSummary(ctx context.Context, scanID string) (*RiskView, error) {
	sc, err := s.Repo.GetScan(ctx, scanID)
	if err != nil {
		return nil, err
	}
	records, err := s.Repo.ListFindings(ctx, scanID)
	if err != nil {
		return nil, err
	}

	view := &RiskView{ScanID: sc.ID, Name: sc.Name, Status: sc.Status}
	cached, err := s.Repo.GetRiskSummary(ctx, scanID)
	switch {
	case err == nil:
		view.LastRun = &LastRun{RiskScore: cached.RiskScore, Counts: cached.Counts(), ComputedAt: cached.ComputedAt}
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	findings := make([]engine.Finding, 0, len(records))
	owasp := map[string]int{}
	iso := map[string]int{}
	nist := map[string]int{}
	for _, r := range records {
		findings = append(findings, r.Finding())

		key := r.Compliance.OWASPTop10
		if key == "" {
			key = r.OWASPCategory
		}
		if key != "" {
			owasp[key]++
		}
		for _, c := range splitControls(r.Compliance.ISO27001) {
			iso[c]++
		}
		for _, c := range splitControls(r.Compliance.NISTCSF) {
			nist[c]++
		}
	}
	view.LiveCounts = engine.Summarize(findings)
	view.LiveScore = view.LiveCounts.RiskScore()
	view.OWASPTop10 = buckets(owasp)
	view.ISO27001 = buckets(iso)
	view.NISTCSF = buckets(nist)
	return view, nil
}

// splitControls splits "A.5.1; A.8.32" style lists
func splitControls(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ";") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// buckets sorts by count descending, then label
func buckets(m map[string]int) []Bucket {
	out := make([]Bucket, 0, len(m))
	for label, n := range m {
		out = append(out, Bucket{Label: label, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Label < out[j].Label
	})
	return out
}
