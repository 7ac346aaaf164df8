package trail

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAppendAndTail(t *testing.T) {
	tr := New(filepath.Join(t.TempDir(), "logs", "audit.log"))

	for _, action := range []string{"scan.run", "scan.status", "finding.update"} {
		if err := tr.Append(Entry{ActorID: "alice", Action: action, EntityType: "scan", EntityID: "s1"}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if err := tr.Append(Entry{ActorID: "root", Action: "scan.status", EntityType: "scan", Forced: true, Details: map[string]string{"to": "ARCHIVED"}}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	data, _ := os.ReadFile(tr.Path)
	if got := strings.Count(string(data), "\n"); got != 4 {
		t.Errorf("Expected 4 lines, got %d", got)
	}

	last, err := tr.Tail(2)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(last) != 2 || last[0].Action != "finding.update" || !last[1].Forced || last[1].Details["to"] != "ARCHIVED" {
		t.Errorf("Unexpected tail %+v", last)
	}
	if last[0].TimestampUtc == "" {
		t.Error("Expected timestamp to be set")
	}
}

func TestAppendRejectsEmptyAction(t *testing.T) {
	tr := New(filepath.Join(t.TempDir(), "audit.log"))
	if err := tr.Append(Entry{ActorID: "alice"}); err == nil {
		t.Error("Expected error")
	}
}

func TestAppendFailsOnUnwritablePath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatal(err)
	}
	tr := New(filepath.Join(blocker, "audit.log"))
	if err := tr.Append(Entry{Action: "scan.run"}); err == nil {
		t.Error("Expected write failure")
	}
}

func TestTailMissingFile(t *testing.T) {
	entries, err := New(filepath.Join(t.TempDir(), "none.log")).Tail(5)
	if err != nil || len(entries) != 0 {
		t.Errorf("Expected empty result, got %v %v", entries, err)
	}
}
