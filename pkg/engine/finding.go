package engine

import (
	"fmt"
	"strings"
	"time"
)

// Severity ranks a finding's risk
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Severities lists every severity from most to least severe
var Severities = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// Rank orders severities: CRITICAL=3 ... LOW=0, unknown=-1
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityHigh:
		return 2
	case SeverityMedium:
		return 1
	case SeverityLow:
		return 0
	}
	return -1
}

func (s Severity) Valid() bool { return s.Rank() >= 0 }

// ParseSeverity accepts any casing
func ParseSeverity(v string) (Severity, error) {
	s := Severity(strings.ToUpper(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("invalid severity: %q", v)
	}
	return s, nil
}

// Status is the reviewer-facing state of a single finding
type Status string

const (
	StatusOpen          Status = "OPEN"
	StatusInReview      Status = "IN_REVIEW"
	StatusConfirmed     Status = "CONFIRMED"
	StatusFalsePositive Status = "FALSE_POSITIVE"
	StatusFixed         Status = "FIXED"
	StatusAcceptedRisk  Status = "ACCEPTED_RISK"
)

func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(v)))
	switch s {
	case StatusOpen, StatusInReview, StatusConfirmed, StatusFalsePositive, StatusFixed, StatusAcceptedRisk:
		return s, nil
	}
	return "", fmt.Errorf("invalid finding status: %q", v)
}

// Provenance records who produced a finding. Re-scans only replace ENGINE findings.
type Provenance string

const (
	ProvenanceEngine Provenance = "ENGINE"
	ProvenanceManual Provenance = "MANUAL"
)

// Compliance holds secondary framework mappings of a finding
type Compliance struct {
	OWASPTop10 string `json:"owaspTop10,omitempty" yaml:"owasp_top10"`
	ISO27001   string `json:"iso27001Control,omitempty" yaml:"iso27001"`
	NISTCSF    string `json:"nistCsfFunction,omitempty" yaml:"nist_csf"`
}

// Finding represents a single issue reported by an analyzer
type Finding struct {
	ID                  string     `json:"id"`
	RuleID              string     `json:"ruleId,omitempty"`
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	OWASPCategory       string     `json:"owaspCategory"`
	Severity            Severity   `json:"severity"`
	Impact              string     `json:"impact"`
	Recommendation      string     `json:"recommendation"`
	AffectedFileOrRoute string     `json:"affectedFileOrRoute"`
	Compliance          Compliance `json:"compliance,omitempty"`
	Timestamp           time.Time  `json:"timestamp"`
}

// Key identifies a finding independently of its generated ID and timestamp
func (f Finding) Key() string {
	return f.Title + "|" + f.AffectedFileOrRoute + "|" + string(f.Severity)
}

// Summary counts findings per severity
type Summary struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
}

func (s Summary) Total() int { return s.Critical + s.High + s.Medium + s.Low }

// Summarize counts findings per severity
func Summarize(findings []Finding) Summary {
	var s Summary
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			s.Critical++
		case SeverityHigh:
			s.High++
		case SeverityMedium:
			s.Medium++
		case SeverityLow:
			s.Low++
		}
	}
	return s
}

// ScanResult is the orchestrator's output for one root
type ScanResult struct {
	Timestamp time.Time `json:"timestamp"`
	Root      string    `json:"root,omitempty"`
	Findings  []Finding `json:"findings"`
	RiskScore int       `json:"riskScore"`
	Summary   Summary   `json:"summary"`
	Warnings  []Warning `json:"warnings,omitempty"`
}

// Warning is a non-fatal scan-level problem (unreadable file, bad manifest, failed analyzer)
type Warning struct {
	Analyzer string `json:"analyzer,omitempty"`
	Path     string `json:"path,omitempty"`
	Message  string `json:"message"`
}

func (w Warning) String() string {
	var sb strings.Builder
	if w.Analyzer != "" {
		sb.WriteString("[" + w.Analyzer + "] ")
	}
	if w.Path != "" {
		sb.WriteString(w.Path + ": ")
	}
	sb.WriteString(w.Message)
	return sb.String()
}
