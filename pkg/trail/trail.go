// Package trail keeps an append-only JSON-lines log of user actions.
package trail

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type Entry struct {
	TimestampUtc string            `json:"timestampUtc"`
	ActorID      string            `json:"actorId"`
	Role         string            `json:"role,omitempty"`
	Action       string            `json:"action"`
	EntityType   string            `json:"entityType"`
	EntityID     string            `json:"entityId,omitempty"`
	Details      map[string]string `json:"details,omitempty"`
	Forced       bool              `json:"forced,omitempty"`
}

// Trail appends entries to one file
type Trail struct {
	Path string
	mu   sync.Mutex
}

func New(path string) *Trail {
	return &Trail{Path: path}
}

// Append writes entry as one line. Callers treat a failure as fatal to the action being logged.
func (t *Trail) Append(entry Entry) error {
	if entry.Action == "" {
		return errors.New("trail entry has no action")
	}
	entry.TimestampUtc = time.Now().UTC().Format(time.RFC3339)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(t.Path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(t.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = f.Write(append(data, '\n'))
	return err
}

// Tail returns the last n entries, oldest first. n <= 0 returns all.
func (t *Trail) Tail(n int) ([]Entry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, err := os.Open(t.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []Entry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", t.Path, line, err)
		}
		out = append(out, e)
		if n > 0 && len(out) > n {
			out = out[1:]
		}
	}
	return out, sc.Err()
}
