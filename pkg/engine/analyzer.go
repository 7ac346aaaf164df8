package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Analyzer inspects a file tree and emits findings. Implementations are stateless and read-only.
type Analyzer interface {
	Name() string
	Scan(ctx context.Context, t *Target) ([]Finding, error)
}

// Target is the file tree handed to every analyzer of one run
type Target struct {
	Root  string
	Files []string // sorted absolute paths from the walker
	Scope string   // reserved, not consumed by analyzers

	now      func() time.Time
	mu       sync.Mutex
	warnings []Warning
}

// NewTarget builds a target over a pre-walked file list
func NewTarget(root string, files []string) *Target {
	return &Target{Root: root, Files: files, now: time.Now}
}

// Rel renders an absolute path relative to the root
func (t *Target) Rel(path string) string {
	return relPath(t.Root, path)
}

// Warn records a scan-level warning. Safe for concurrent analyzers.
func (t *Target) Warn(analyzer, path, format string, args ...interface{}) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.warnings = append(t.warnings, Warning{Analyzer: analyzer, Path: path, Message: fmt.Sprintf(format, args...)})
}

// Warnings returns a copy of the recorded warnings
func (t *Target) Warnings() []Warning {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Warning, len(t.warnings))
	copy(out, t.warnings)
	return out
}

// ErrBinaryFile is returned by ReadSource for files that look binary
var ErrBinaryFile = errors.New("binary file")

// ReadSource reads a source file, rejecting binary content
func (t *Target) ReadSource(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	head := data
	if len(head) > 8000 {
		head = head[:8000]
	}
	if bytes.IndexByte(head, 0) >= 0 {
		return nil, ErrBinaryFile
	}
	return data, nil
}

// Exists reports whether a root-relative path exists
func (t *Target) Exists(name string) bool {
	_, err := os.Stat(filepath.Join(t.Root, name))
	return err == nil
}

// stamp assigns a fresh identifier and timestamp to a rendered finding
func (t *Target) stamp(f Finding) Finding {
	f.ID = uuid.NewString()
	now := time.Now
	if t.now != nil {
		now = t.now
	}
	f.Timestamp = now().UTC()
	return f
}

// contentRules runs pattern rules file by file. One finding per matching pattern per file.
// Unreadable files are skipped with a warning.
func contentRules(ctx context.Context, t *Target, analyzer string, rules []*Rule) ([]Finding, error) {
	var findings []Finding
	for _, path := range t.Files {
		if err := ctx.Err(); err != nil {
			return findings, err
		}
		rel := t.Rel(path)
		content, err := t.ReadSource(path)
		if err != nil {
			t.Warn(analyzer, rel, "skipped: %v", err)
			continue
		}
		for _, r := range rules {
			for _, re := range r.Matches(content) {
				f, err := r.Render(rel, map[string]string{"Pattern": re.String()})
				if err != nil {
					return findings, err
				}
				findings = append(findings, t.stamp(f))
			}
		}
	}
	return findings, nil
}
