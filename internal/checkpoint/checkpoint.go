// Package checkpoint is the boundary between pipeline stages: each stage writes
// one immutable, versioned snapshot and the next stage reads the latest one.
package checkpoint

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Stage string

const (
	StageDiscovered     Stage = "discovered"
	StageRaw            Stage = "raw"
	StageEnriched       Stage = "enriched"
	StageFailedEnriched Stage = "failed-enriched"
	// StageFailedSeed is a single rolling snapshot, overwritten by every seed run.
	StageFailedSeed Stage = "failed-seed"
)

func (s Stage) Versioned() bool {
	return s != StageFailedSeed
}

var ErrNoCheckpoint = errors.New("no checkpoint found")

// Repository stores stage snapshots. items and out are JSON-compatible slices.
type Repository interface {
	Write(ctx context.Context, stage Stage, items any) (string, error)
	Latest(ctx context.Context, stage Stage, out any) (string, error)
	Close(ctx context.Context) error
}

const versionLayout = "2006-01-02T15:04:05.000Z"

// NewVersion turns a timestamp into a sortable key that is safe in file names.
func NewVersion(t time.Time) string {
	return strings.NewReplacer(":", "-", ".", "-").Replace(t.UTC().Format(versionLayout))
}

// maxCollisions bounds the suffixes tried when snapshots share a millisecond.
const maxCollisions = 1000

// collisionVersion names the n-th snapshot written in the same millisecond as
// base. The suffix is zero padded so plain string order stays correct.
func collisionVersion(base string, n int) string {
	return fmt.Sprintf("%s-%03d", base, n)
}

// compareVersions orders versions by timestamp, then by collision suffix
// compared as a number.
func compareVersions(a, b string) int {
	aBase, aN := splitVersion(a)
	bBase, bN := splitVersion(b)
	if c := strings.Compare(aBase, bBase); c != 0 {
		return c
	}
	return cmp.Compare(aN, bN)
}

func splitVersion(v string) (string, int) {
	base, suffix, ok := strings.Cut(v, "Z-")
	if !ok {
		return v, 1
	}
	n, err := strconv.Atoi(suffix)
	if err != nil {
		return v, 1
	}
	return base + "Z", n
}
