package engine

import "testing"

func TestRiskScore(t *testing.T) {
	if got := RiskScore(nil); got != 0 {
		t.Errorf("Expected 0 for empty set, got %d", got)
	}

	findings := []Finding{
		{Severity: SeverityCritical},
		{Severity: SeverityCritical},
		{Severity: SeverityHigh},
		{Severity: SeverityMedium},
		{Severity: SeverityLow},
		{Severity: SeverityLow},
	}
	if got := RiskScore(findings); got != 10*2+5+2+2 {
		t.Errorf("Expected 29, got %d", got)
	}

	s := Summarize(findings)
	if s.Critical != 2 || s.High != 1 || s.Medium != 1 || s.Low != 2 {
		t.Errorf("Unexpected summary %+v", s)
	}
}

func TestScoreSeverity(t *testing.T) {
	cases := []struct {
		category string
		impact   ImpactLevel
		want     Severity
	}{
		{"A03:2021-Injection", ImpactHigh, SeverityCritical},
		{"A01:2021-Broken Access Control", ImpactHigh, SeverityCritical},
		{"A02:2021-Cryptographic Failures", ImpactHigh, SeverityHigh},
		{"A03:2021-Injection", ImpactMedium, SeverityMedium},
		{"A05:2021-Security Misconfiguration", ImpactLow, SeverityLow},
	}
	for _, tc := range cases {
		if got := ScoreSeverity(tc.category, tc.impact); got != tc.want {
			t.Errorf("ScoreSeverity(%q, %s) = %s, want %s", tc.category, tc.impact, got, tc.want)
		}
	}
}
