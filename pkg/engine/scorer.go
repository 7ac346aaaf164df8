package engine

import "strings"

// Severity weights of the aggregate risk score
const (
	WeightCritical = 10
	WeightHigh     = 5
	WeightMedium   = 2
	WeightLow      = 1
)

// ImpactLevel is the coarse impact input of ScoreSeverity
type ImpactLevel string

const (
	ImpactHigh   ImpactLevel = "high"
	ImpactMedium ImpactLevel = "medium"
	ImpactLow    ImpactLevel = "low"
)

// RiskScore is 10*critical + 5*high + 2*medium + 1*low. Zero for no findings.
func RiskScore(findings []Finding) int {
	return Summarize(findings).RiskScore()
}

// RiskScore applies the severity weights to the counts
func (s Summary) RiskScore() int {
	return WeightCritical*s.Critical + WeightHigh*s.High + WeightMedium*s.Medium + WeightLow*s.Low
}

// ScoreSeverity derives a severity from an OWASP category and impact level.
// The built-in analyzers use the catalog severities instead; this is exposed for manual triage.
func ScoreSeverity(owaspCategory string, impact ImpactLevel) Severity {
	if impact == ImpactHigh &&
		(strings.Contains(owaspCategory, "Injection") || strings.Contains(owaspCategory, "Broken Access Control")) {
		return SeverityCritical
	}
	switch impact {
	case ImpactHigh:
		return SeverityHigh
	case ImpactMedium:
		return SeverityMedium
	}
	return SeverityLow
}
