package engine

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

// writeTree materializes files (relative path -> content) under a temp root
func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir %s: %v", name, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return root
}

func scanWith(t *testing.T, a Analyzer, root string) ([]Finding, *Target) {
	t.Helper()
	files, _ := NewWalker().Walk(root)
	target := NewTarget(root, files)
	findings, err := a.Scan(testContext(t), target)
	if err != nil {
		t.Fatalf("%s scan failed: %v", a.Name(), err)
	}
	return findings, target
}

func severities(findings []Finding) []string {
	out := make([]string, 0, len(findings))
	for _, f := range findings {
		out = append(out, string(f.Severity))
	}
	sort.Strings(out)
	return out
}

func catalogForTest(t *testing.T) *Catalog {
	t.Helper()
	c, err := DefaultCatalog()
	if err != nil {
		t.Fatalf("Failed to load catalog: %v", err)
	}
	return c
}
