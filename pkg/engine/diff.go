package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Diff classifies findings of a run against a baseline run
type Diff struct {
	New       []Finding `json:"new"`
	Fixed     []Finding `json:"fixed"`
	Unchanged []Finding `json:"unchanged"`
}

// Compare matches findings on (title, affected file, severity); generated IDs and timestamps are ignored
func Compare(current, baseline []Finding) Diff {
	base := make(map[string]int)
	for _, f := range baseline {
		base[f.Key()]++
	}
	var d Diff
	seen := make(map[string]int)
	for _, f := range current {
		k := f.Key()
		if seen[k] < base[k] {
			d.Unchanged = append(d.Unchanged, f)
		} else {
			d.New = append(d.New, f)
		}
		seen[k]++
	}
	used := make(map[string]int)
	for _, f := range baseline {
		k := f.Key()
		used[k]++
		if used[k] > seen[k] {
			d.Fixed = append(d.Fixed, f)
		}
	}
	return d
}

// KeySet returns the sorted finding keys of a result, used to check run-to-run determinism
func KeySet(findings []Finding) []string {
	keys := make([]string, 0, len(findings))
	for _, f := range findings {
		keys = append(keys, f.Key())
	}
	sort.Strings(keys)
	return keys
}

// SaveSnapshot writes a scan result as JSON for later comparison
func SaveSnapshot(path string, r *ScanResult) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// LoadSnapshot reads a result written by SaveSnapshot
func LoadSnapshot(path string) (*ScanResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var r ScanResult
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %v", path, err)
	}
	return &r, nil
}
