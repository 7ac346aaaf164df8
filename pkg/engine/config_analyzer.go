package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// ConfigAnalyzer checks repository hygiene around env files and .gitignore
type ConfigAnalyzer struct {
	Catalog *Catalog
}

func (a *ConfigAnalyzer) Name() string { return "config" }

func (a *ConfigAnalyzer) Scan(ctx context.Context, t *Target) ([]Finding, error) {
	var findings []Finding
	add := func(ruleID, affected string) error {
		r, ok := a.Catalog.Rule(ruleID)
		if !ok {
			return nil
		}
		f, err := r.Render(affected, nil)
		if err != nil {
			return err
		}
		findings = append(findings, t.stamp(f))
		return nil
	}

	if t.Exists(".env") && !t.Exists(".env.example") {
		if err := add("config.missing-env-example", ".env"); err != nil {
			return findings, err
		}
	}

	data, err := os.ReadFile(filepath.Join(t.Root, ".gitignore"))
	switch {
	case os.IsNotExist(err):
		if err := add("config.missing-gitignore", ".gitignore"); err != nil {
			return findings, err
		}
	case err != nil:
		t.Warn(a.Name(), ".gitignore", "skipped: %v", err)
	default:
		content := string(data)
		if !strings.Contains(content, ".env") {
			if err := add("config.env-not-ignored", ".gitignore"); err != nil {
				return findings, err
			}
		}
		if !strings.Contains(content, "node_modules") {
			if err := add("config.deps-not-ignored", ".gitignore"); err != nil {
				return findings, err
			}
		}
	}
	return findings, nil
}
