// Package watch re-runs a callback when files under a root change.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/user/secaudit/pkg/logger"
)

const DefaultDebounce = 300 * time.Millisecond

// Watcher fires OnChange once per burst of file events
type Watcher struct {
	Root       string
	IgnoreDirs []string
	Debounce   time.Duration
	OnChange   func()
}

// Run blocks until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) error {
	if _, err := os.Stat(w.Root); err != nil {
		return err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	if err := w.addRecursive(fw, w.Root); err != nil {
		return err
	}

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.ignored(ev.Name) {
				continue
			}
			// New directories are not watched automatically
			if ev.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(fw, ev.Name)
				}
			}
			logger.Debugf("watch: %s", ev)
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, w.OnChange)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warnf("watch error: %v", err)
		}
	}
}

func (w *Watcher) addRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.ignored(path) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}

func (w *Watcher) ignored(path string) bool {
	rel, err := filepath.Rel(w.Root, path)
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		for _, dir := range w.IgnoreDirs {
			if part == dir {
				return true
			}
		}
	}
	return false
}
