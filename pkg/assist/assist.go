package assist

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/user/secaudit/pkg/logger"
)

var piiPatterns = []struct {
	re          *regexp.Regexp
	replacement string
}{
	{regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), "[REDACTED_IP]"},
	{regexp.MustCompile(`\b(?:\d{4}[-\s]?){3}\d{4}\b`), "[REDACTED_CC]"},
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[REDACTED_SSN]"},
}

// StripPII replaces e-mail addresses, IPv4 addresses, card numbers and SSNs with placeholders
func StripPII(text string) string {
	for _, p := range piiPatterns {
		text = p.re.ReplaceAllString(text, p.replacement)
	}
	return text
}

// Assistant rewrites finding text
type Assistant struct {
	Provider Provider
}

func New(p Provider) *Assistant {
	return &Assistant{Provider: p}
}

// Offline reports whether no real provider is behind the assistant
func (a *Assistant) Offline() bool {
	_, ok := a.Provider.(OfflineProvider)
	return ok
}

// Refine rewrites a finding description to be concise and impact-focused.
// Offline, the description comes back unchanged.
func (a *Assistant) Refine(ctx context.Context, description string) (string, error) {
	if strings.TrimSpace(description) == "" {
		return "", fmt.Errorf("nothing to refine")
	}
	if a.Offline() {
		return description, nil
	}
	logger.Debugf("Refining description (%d bytes)", len(description))
	out, err := a.Provider.Generate(ctx, refinePrompt, StripPII(description))
	if err != nil {
		return "", fmt.Errorf("refine failed: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Remediation drafts remediation steps for a finding
func (a *Assistant) Remediation(ctx context.Context, title, description string) (string, error) {
	if a.Offline() {
		return "", ErrOffline
	}
	prompt := fmt.Sprintf("Issue: %s\nContext: %s", StripPII(title), StripPII(description))
	out, err := a.Provider.Generate(ctx, remediatePrompt, prompt)
	if err != nil {
		return "", fmt.Errorf("remediation failed: %w", err)
	}
	return strings.TrimSpace(out), nil
}
