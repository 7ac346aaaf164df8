package engine

import "context"

// APIAnalyzer applies API hardening heuristics: rate limiting, SQL concatenation, eval, debug prints
type APIAnalyzer struct {
	Catalog *Catalog
}

func (a *APIAnalyzer) Name() string { return "api" }

func (a *APIAnalyzer) Scan(ctx context.Context, t *Target) ([]Finding, error) {
	return contentRules(ctx, t, a.Name(), a.Catalog.RulesFor(a.Name()))
}
