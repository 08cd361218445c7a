package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// StaticSource loads an infrastructure snapshot from a JSON file.
// Used for testing, offline analysis, and CI pipelines.
type StaticSource struct {
	filePath string
	snap     *Snapshot
}

// NewStaticSource creates a source that reads from a JSON file.
func NewStaticSource(filePath string) *StaticSource {
	return &StaticSource{filePath: filePath}
}

// NewStaticSourceFromSnapshot creates a source from a pre-built snapshot.
func NewStaticSourceFromSnapshot(snap *Snapshot) *StaticSource {
	return &StaticSource{snap: snap}
}

// Ping checks that the snapshot file exists.
func (s *StaticSource) Ping(ctx context.Context) error {
	if s.snap != nil {
		return nil
	}
	if _, err := os.Stat(s.filePath); err != nil {
		return fmt.Errorf("static snapshot file: %w", err)
	}
	return nil
}

// BackendType returns "static".
func (s *StaticSource) BackendType() string {
	return "static"
}

// Fetch loads the snapshot from the JSON file.
func (s *StaticSource) Fetch(ctx context.Context) (*Snapshot, error) {
	if s.snap != nil {
		return s.snap, nil
	}

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot file: %w", err)
	}

	if len(snap.Clusters) == 0 {
		return nil, ErrNoClusters
	}

	return &snap, nil
}
