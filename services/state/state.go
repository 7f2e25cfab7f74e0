package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"cryptobot/services/engine"
)

// Record is the last alert sent per symbol, keyed by the bar it fired on
// so re-running over the same data never re-alerts.
type Record struct {
	Signal      engine.Signal `json:"signal"`
	BarTime     int64         `json:"bar_time_ms"`
	Fingerprint string        `json:"fingerprint"`
}

// Store persists alert state as a JSON file. Writes go through a temp
// file and rename so a crash mid-write cannot truncate the state.
type Store struct {
	path    string
	records map[string]Record
}

// Load reads the state file, starting empty when it does not exist yet.
func Load(path string) (*Store, error) {
	s := &Store{path: path, records: make(map[string]Record)}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state load: %w", err)
	}
	if err := json.Unmarshal(data, &s.records); err != nil {
		return nil, fmt.Errorf("state parse %s: %w", path, err)
	}
	return s, nil
}

// ShouldSend reports whether an alert for this symbol/bar/signal has not
// been sent yet. NEUTRAL never alerts.
func (s *Store) ShouldSend(symbol string, sig engine.Signal, barTime int64) bool {
	if sig == engine.SignalNeutral {
		return false
	}
	prev, ok := s.records[symbol]
	if !ok {
		return true
	}
	return prev.Signal != sig || prev.BarTime != barTime
}

// Update records a sent alert and persists immediately.
func (s *Store) Update(symbol string, sig engine.Signal, barTime int64, fingerprint string) error {
	s.records[symbol] = Record{Signal: sig, BarTime: barTime, Fingerprint: fingerprint}
	return s.flush()
}

func (s *Store) flush() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("state marshal: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("state mkdir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("state write: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("state rename: %w", err)
	}
	return nil
}
