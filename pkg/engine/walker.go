package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultIgnoreDirs are directory names never descended into
var DefaultIgnoreDirs = []string{"node_modules", "dist", ".git"}

// DefaultExtensions are the source file extensions analyzers look at
var DefaultExtensions = []string{".ts", ".js", ".tsx", ".jsx"}

const (
	DefaultMaxDepth    = 32
	DefaultMaxFiles    = 20000
	DefaultMaxFileSize = 2 << 20 // 2 MiB
)

// Walker enumerates candidate source files under a root.
// Symlinks are never followed, so cyclic links cannot cause infinite recursion.
type Walker struct {
	IgnoreDirs  []string
	Extensions  []string
	MaxDepth    int
	MaxFiles    int
	MaxFileSize int64
}

// NewWalker returns a walker with the default ignore set, extensions and limits
func NewWalker() *Walker {
	return &Walker{
		IgnoreDirs:  DefaultIgnoreDirs,
		Extensions:  DefaultExtensions,
		MaxDepth:    DefaultMaxDepth,
		MaxFiles:    DefaultMaxFiles,
		MaxFileSize: DefaultMaxFileSize,
	}
}

var errFileCeiling = errors.New("file ceiling reached")

// Walk returns sorted absolute paths of matching files plus any warnings.
// A missing root yields an empty list.
func (w *Walker) Walk(root string) ([]string, []Warning) {
	if _, err := os.Stat(root); err != nil {
		return nil, nil
	}

	ignore := make(map[string]bool, len(w.IgnoreDirs))
	for _, d := range w.IgnoreDirs {
		ignore[d] = true
	}
	exts := make(map[string]bool, len(w.Extensions))
	for _, e := range w.Extensions {
		exts[strings.ToLower(e)] = true
	}

	var files []string
	var warnings []Warning

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			warnings = append(warnings, Warning{Path: relPath(root, path), Message: err.Error()})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path == root {
				return nil
			}
			if ignore[d.Name()] {
				return filepath.SkipDir
			}
			if w.MaxDepth > 0 && depth(root, path) > w.MaxDepth {
				warnings = append(warnings, Warning{Path: relPath(root, path), Message: "max depth exceeded, directory skipped"})
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !exts[strings.ToLower(filepath.Ext(d.Name()))] {
			return nil
		}
		if w.MaxFileSize > 0 {
			if info, err := d.Info(); err == nil && info.Size() > w.MaxFileSize {
				warnings = append(warnings, Warning{
					Path:    relPath(root, path),
					Message: fmt.Sprintf("file larger than %d bytes, skipped", w.MaxFileSize),
				})
				return nil
			}
		}
		if w.MaxFiles > 0 && len(files) >= w.MaxFiles {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("file ceiling of %d reached, walk truncated", w.MaxFiles)})
			return errFileCeiling
		}
		files = append(files, path)
		return nil
	})
	if err != nil && !errors.Is(err, errFileCeiling) {
		warnings = append(warnings, Warning{Message: err.Error()})
	}

	sort.Strings(files)
	return files, warnings
}

func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return 0
	}
	return len(strings.Split(rel, string(filepath.Separator)))
}

// relPath renders path relative to root with forward slashes
func relPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.ToSlash(path)
	}
	return filepath.ToSlash(rel)
}
