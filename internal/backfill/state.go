package backfill

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultStatePath is where import progress is kept between runs.
const DefaultStatePath = "~/.tribunal/import-state.json"

// ImportState tracks progress for resumable import runs.
type ImportState struct {
	StartedAt       time.Time      `json:"started_at"`
	LastProcessedAt time.Time      `json:"last_processed_at"`
	LinesDone       map[string]int `json:"lines_done"`
	Imported        int            `json:"imported"`
	Skipped         int            `json:"skipped"`
	Failed          int            `json:"failed"`
	Errors          []string       `json:"errors"`

	path string // not serialized
}

// LoadState loads the import state from path, or creates a new one.
func LoadState(path string) (*ImportState, error) {
	if path == "" {
		path = DefaultStatePath
	}
	p := expandHome(path)

	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return &ImportState{
				StartedAt: time.Now().UTC(),
				LinesDone: make(map[string]int),
				path:      p,
			}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}

	var s ImportState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	if s.LinesDone == nil {
		s.LinesDone = make(map[string]int)
	}
	s.path = p
	return &s, nil
}

// Path returns the file the state is saved to.
func (s *ImportState) Path() string {
	return s.path
}

// Save persists the state to disk.
func (s *ImportState) Save() error {
	s.LastProcessedAt = time.Now().UTC()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	return os.WriteFile(s.path, data, 0o644)
}

// IsProcessed returns true if the given line of file was handled by an earlier run.
func (s *ImportState) IsProcessed(file string, line int) bool {
	return line <= s.LinesDone[file]
}

// MarkProcessed records that every line of file up to line has been handled.
func (s *ImportState) MarkProcessed(file string, line int) {
	if s.LinesDone == nil {
		s.LinesDone = make(map[string]int)
	}
	if line > s.LinesDone[file] {
		s.LinesDone[file] = line
	}
}

// AddError records a processing error.
func (s *ImportState) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && path[1] == '/' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
