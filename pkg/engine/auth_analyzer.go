package engine

import "context"

// AuthAnalyzer looks for hardcoded secrets, weak hashing and basic auth
type AuthAnalyzer struct {
	Catalog *Catalog
}

func (a *AuthAnalyzer) Name() string { return "auth" }

func (a *AuthAnalyzer) Scan(ctx context.Context, t *Target) ([]Finding, error) {
	return contentRules(ctx, t, a.Name(), a.Catalog.RulesFor(a.Name()))
}
