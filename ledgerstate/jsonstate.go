// Package ledgerstate provides fingerprint-set collaborators for drivers: a
// versioned JSON state file and a SQLite-backed store. The pipeline itself
// only ever sees the read-only dedup.Set view; recording newly emitted
// fingerprints is the driver's move, made after the entries are written out.
package ledgerstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// CurrentVersion is the state file format version.
const CurrentVersion = 1

// FingerprintRecord tracks one fingerprint across repeated imports.
type FingerprintRecord struct {
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
	Count     int       `json:"count"`
	SourceID  string    `json:"sourceId"`
}

// StateMetadata carries aggregate statistics about the state file.
type StateMetadata struct {
	LastUpdated       time.Time `json:"lastUpdated"`
	TotalFingerprints int       `json:"totalFingerprints"`
}

// State is the JSON fingerprint state. It satisfies dedup.Set.
type State struct {
	Version      int                           `json:"version"`
	Fingerprints map[string]*FingerprintRecord `json:"fingerprints"`
	Metadata     StateMetadata                 `json:"metadata"`
}

// NewState creates an empty state.
func NewState() *State {
	return &State{
		Version:      CurrentVersion,
		Fingerprints: make(map[string]*FingerprintRecord),
		Metadata:     StateMetadata{LastUpdated: time.Now()},
	}
}

// Contains reports whether the fingerprint was already recorded.
func (s *State) Contains(fingerprint string) bool {
	_, ok := s.Fingerprints[fingerprint]
	return ok
}

// Record notes a fingerprint observation. New fingerprints get a fresh
// record; repeats update lastSeen and the count.
func (s *State) Record(fingerprint, sourceID string, timestamp time.Time) error {
	if fingerprint == "" {
		return fmt.Errorf("fingerprint cannot be empty")
	}
	if rec, exists := s.Fingerprints[fingerprint]; exists {
		rec.LastSeen = timestamp
		rec.Count++
		return nil
	}
	s.Fingerprints[fingerprint] = &FingerprintRecord{
		FirstSeen: timestamp,
		LastSeen:  timestamp,
		Count:     1,
		SourceID:  sourceID,
	}
	return nil
}

// LoadState loads a state file. The os.IsNotExist error passes through so
// callers can start fresh on first run.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	if state.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported state file version %d (current: %d)", state.Version, CurrentVersion)
	}
	if state.Fingerprints == nil {
		state.Fingerprints = make(map[string]*FingerprintRecord)
	}
	return &state, nil
}

// SaveState writes the state atomically: temp file, then rename.
func SaveState(state *State, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	state.Metadata.LastUpdated = time.Now()
	state.Metadata.TotalFingerprints = len(state.Fingerprints)

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
