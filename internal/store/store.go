// Package store is the relational side of seeding: products keyed by codename
// and the category, label and tag lookup tables keyed by name.
package store

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/amankumarsingh77/directory_pipeline/models"
)

var ErrUnknownEntityKind = errors.New("unknown entity kind")

type Store interface {
	// GetOrCreateEntity returns the row named name, creating it if needed.
	// Concurrent callers creating the same name end up with the same row.
	GetOrCreateEntity(ctx context.Context, kind models.EntityKind, name string) (models.Entity, error)
	// UpsertProducts inserts products or updates the rows with the same
	// codename. Moderation fields of existing rows are left alone.
	UpsertProducts(ctx context.Context, products []models.Product) error
	GetProduct(ctx context.Context, codename string) (*models.Product, error)
	Close() error
}

var ErrProductNotFound = errors.New("product not found")

func entityTable(kind models.EntityKind) (string, error) {
	switch kind {
	case models.EntityCategory, models.EntityLabel, models.EntityTag:
		return string(kind), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEntityKind, kind)
	}
}

func removeInvalidUTF8(s string) string {
	if utf8.ValidString(s) {
		return s
	}
	valid := make([]rune, 0, len(s))
	for i, r := range s {
		if r == utf8.RuneError {
			_, size := utf8.DecodeRuneInString(s[i:])
			if size == 1 {
				continue
			}
		}
		valid = append(valid, r)
	}
	return string(valid)
}
