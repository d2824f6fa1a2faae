package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/amankumarsingh77/directory_pipeline/models"
)

// Log is the cumulative, append-only record of everything discovered so far.
// It is what keeps a URL from being discovered twice across runs.
type Log interface {
	// Known reports which of the given normalized keys are already logged.
	Known(ctx context.Context, keys []string) (map[string]bool, error)
	Append(ctx context.Context, items []models.DiscoveredAgent) error
}

// FileLog keeps the log as one JSON array. Read-then-append, single writer.
type FileLog struct {
	path string
}

func NewFileLog(path string) (*FileLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create discovery log dir: %w", err)
	}
	return &FileLog{path: path}, nil
}

func (l *FileLog) load() ([]models.DiscoveredAgent, error) {
	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read discovery log: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	var items []models.DiscoveredAgent
	if err = json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to decode discovery log %s: %w", l.path, err)
	}
	return items, nil
}

func (l *FileLog) Known(_ context.Context, keys []string) (map[string]bool, error) {
	items, err := l.load()
	if err != nil {
		return nil, err
	}
	logged := make(map[string]bool, len(items))
	for _, item := range items {
		if key, err := NormalizeURL(item.URL); err == nil {
			logged[key] = true
		}
	}
	known := make(map[string]bool)
	for _, key := range keys {
		if logged[key] {
			known[key] = true
		}
	}
	return known, nil
}

func (l *FileLog) Append(_ context.Context, items []models.DiscoveredAgent) error {
	if len(items) == 0 {
		return nil
	}
	existing, err := l.load()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(append(existing, items...), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal discovery log: %w", err)
	}

	tmp := l.path + ".tmp"
	if err = os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write discovery log: %w", err)
	}
	if err = os.Rename(tmp, l.path); err != nil {
		return fmt.Errorf("failed to replace discovery log: %w", err)
	}
	return nil
}
