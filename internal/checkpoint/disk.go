package checkpoint

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"
)

type DiskRepository struct {
	dir string
	now func() time.Time
}

func NewDiskRepository(dir string) (*DiskRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoint dir %s: %w", dir, err)
	}
	return &DiskRepository{dir: dir, now: time.Now}, nil
}

func (r *DiskRepository) Dir() string {
	return r.dir
}

func (r *DiskRepository) Write(_ context.Context, stage Stage, items any) (string, error) {
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s snapshot: %w", stage, err)
	}

	if !stage.Versioned() {
		return "", r.writeFile(filepath.Join(r.dir, string(stage)+".json"), data, true)
	}

	base := NewVersion(r.now())
	version := base
	for n := 2; n <= maxCollisions; n++ {
		err = r.writeFile(r.path(stage, version), data, false)
		if err == nil {
			return version, nil
		}
		if !os.IsExist(err) {
			return "", err
		}
		version = collisionVersion(base, n)
	}
	return "", fmt.Errorf("failed to write %s snapshot: too many snapshots at %s", stage, base)
}

// writeFile goes through a temp file so a crash never leaves a half-written snapshot.
func (r *DiskRepository) writeFile(path string, data []byte, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return os.ErrExist
		}
	}
	tmp, err := os.CreateTemp(r.dir, ".snapshot-*")
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}
	return nil
}

func (r *DiskRepository) Latest(_ context.Context, stage Stage, out any) (string, error) {
	path, version := filepath.Join(r.dir, string(stage)+".json"), ""
	if stage.Versioned() {
		versions, err := r.versions(stage)
		if err != nil {
			return "", err
		}
		if len(versions) == 0 {
			return "", fmt.Errorf("%w for stage %s in %s", ErrNoCheckpoint, stage, r.dir)
		}
		version = versions[len(versions)-1]
		path = r.path(stage, version)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w for stage %s in %s", ErrNoCheckpoint, stage, r.dir)
		}
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err = json.Unmarshal(data, out); err != nil {
		return "", fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return version, nil
}

func (r *DiskRepository) versions(stage Stage) ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoint dir: %w", err)
	}
	prefix := string(stage) + "-"
	var versions []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		version := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json")
		// digits only: keeps "failed-enriched-*" out of a lookup for "failed-*"
		if version == "" || version[0] < '0' || version[0] > '9' {
			continue
		}
		versions = append(versions, version)
	}
	slices.SortFunc(versions, compareVersions)
	return versions, nil
}

func (r *DiskRepository) path(stage Stage, version string) string {
	return filepath.Join(r.dir, fmt.Sprintf("%s-%s.json", stage, version))
}

func (r *DiskRepository) Close(context.Context) error {
	return nil
}
