package mirror

import (
	"context"

	"gcgdocs/internal/model"
)

// Package mirror keeps a denormalized flat tabular copy of the metadata
// table for legacy/offline consumers. The mirror is advisory, never
// authoritative: callers treat write failures as warnings and rely on
// the reconciler to repair drift.

// Store is the mirror of the document metadata table.
type Store interface {
	// Upsert writes one record's mirror row, replacing any row with the
	// same id.
	Upsert(ctx context.Context, rec model.DocumentRecord) error
	// Remove drops the mirror row for id. Removing a missing row is a no-op.
	Remove(ctx context.Context, id string) error
	// UpdateLocation rewrites the organizational key and physical path of
	// one mirror row after a relocation.
	UpdateLocation(ctx context.Context, id string, year int, unit, physicalPath string) error
	// Rows returns every mirror row.
	Rows(ctx context.Context) ([]model.DocumentRecord, error)
	// Replace rewrites the whole mirror with the given rows.
	Replace(ctx context.Context, rows []model.DocumentRecord) error
}
