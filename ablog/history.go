package ablog

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

const historyFileName = "test_results.json"

// TestResult is one archived A/B test outcome.
type TestResult struct {
	Name      string                   `json:"name"`
	Timestamp time.Time                `json:"timestamp"`
	Metrics   map[string]VariantResult `json:"metrics"`
}

// History persists completed test results as a JSON list on disk.
type History struct {
	path string
}

// NewHistory creates (if needed) dir and returns a History backed by a
// single JSON file inside it.
func NewHistory(dir string) (*History, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &History{path: filepath.Join(dir, historyFileName)}, nil
}

// Save appends a result stamped with the current time.
func (h *History) Save(name string, metrics map[string]VariantResult) error {
	results, err := h.load()
	if err != nil {
		return err
	}
	results = append(results, TestResult{
		Name:      name,
		Timestamp: time.Now(),
		Metrics:   metrics,
	})
	return h.store(results)
}

// All returns every archived result in insertion order.
func (h *History) All() ([]TestResult, error) {
	return h.load()
}

// Latest returns the most recently saved result, ok=false when empty.
func (h *History) Latest() (TestResult, bool) {
	results, err := h.load()
	if err != nil || len(results) == 0 {
		return TestResult{}, false
	}
	return results[len(results)-1], true
}

// Delete removes every archived result with the given name.
func (h *History) Delete(name string) error {
	results, err := h.load()
	if err != nil {
		return err
	}
	kept := results[:0]
	for _, r := range results {
		if r.Name != name {
			kept = append(kept, r)
		}
	}
	return h.store(kept)
}

func (h *History) load() ([]TestResult, error) {
	data, err := os.ReadFile(h.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var results []TestResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, err
	}
	return results, nil
}

func (h *History) store(results []TestResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(h.path, data, 0o644)
}
