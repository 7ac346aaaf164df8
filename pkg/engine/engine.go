package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/user/secaudit/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// ErrMissingRoot is returned when the project root is unset, absent or not a directory
var ErrMissingRoot = errors.New("project root is missing")

// ResolveRoot returns the absolute, symlink-resolved root. It fails with ErrMissingRoot
// unless root names an existing directory.
func ResolveRoot(root string) (string, error) {
	if strings.TrimSpace(root) == "" {
		return "", ErrMissingRoot
	}
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}
	info, err := os.Stat(root)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrMissingRoot, root, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrMissingRoot, root)
	}
	return root, nil
}

// Engine runs the registered analyzers over one root and aggregates their findings
type Engine struct {
	Walker    *Walker
	Analyzers []Analyzer
	Parallel  bool
	Timeout   time.Duration
}

// NewEngine creates an engine with the built-in analyzers in their fixed order:
// dependency, auth, api, config.
func NewEngine(c *Catalog) *Engine {
	return &Engine{
		Walker: NewWalker(),
		Analyzers: []Analyzer{
			&DependencyAnalyzer{Catalog: c},
			&AuthAnalyzer{Catalog: c},
			&APIAnalyzer{Catalog: c},
			&ConfigAnalyzer{Catalog: c},
		},
	}
}

// Register appends an analyzer after the built-in ones
func (e *Engine) Register(a Analyzer) {
	e.Analyzers = append(e.Analyzers, a)
}

// Run scans root, which must be an existing directory. Findings are concatenated in analyzer registration order regardless of Parallel.
// A failing analyzer only drops its own contribution and records a warning.
func (e *Engine) Run(ctx context.Context, root, scope string) (*ScanResult, error) {
	root, err := ResolveRoot(root)
	if err != nil {
		return nil, err
	}

	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	logger.Debugf("Starting audit scan for: %s", root)
	walker := e.Walker
	if walker == nil {
		walker = NewWalker()
	}
	files, walkWarnings := walker.Walk(root)
	logger.Debugf("Walker found %d candidate files", len(files))

	target := NewTarget(root, files)
	target.Scope = scope
	for _, w := range walkWarnings {
		target.Warn("walker", w.Path, "%s", w.Message)
	}

	slots := make([][]Finding, len(e.Analyzers))
	if e.Parallel {
		g, gctx := errgroup.WithContext(ctx)
		for i, a := range e.Analyzers {
			i, a := i, a
			g.Go(func() error {
				slots[i] = e.runOne(gctx, a, target)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, a := range e.Analyzers {
			slots[i] = e.runOne(ctx, a, target)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("scan of %s aborted: %w", root, err)
	}

	findings := make([]Finding, 0)
	for _, s := range slots {
		findings = append(findings, s...)
	}

	summary := Summarize(findings)
	result := &ScanResult{
		Timestamp: time.Now().UTC(),
		Root:      root,
		Findings:  findings,
		RiskScore: summary.RiskScore(),
		Summary:   summary,
		Warnings:  target.Warnings(),
	}
	logger.Debugf("Scan complete: %d findings, risk score %d, %d warnings", len(findings), result.RiskScore, len(result.Warnings))
	return result, nil
}

func (e *Engine) runOne(ctx context.Context, a Analyzer, t *Target) (out []Finding) {
	defer func() {
		if r := recover(); r != nil {
			t.Warn(a.Name(), "", "analyzer panicked: %v", r)
			out = nil
		}
	}()
	if ctx.Err() != nil {
		return nil
	}
	findings, err := a.Scan(ctx, t)
	if err != nil {
		if ctx.Err() == nil {
			t.Warn(a.Name(), "", "analyzer failed: %v", err)
		}
		return nil
	}
	logger.Debugf("Analyzer %s produced %d findings", a.Name(), len(findings))
	return findings
}
