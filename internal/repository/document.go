package repository

import (
	"context"
	"time"

	"gcgdocs/internal/model"
)

// DocumentRepository is the authoritative metadata store for document
// records, using SQL queries only. No business logic here — strictly
// persistence operations. All writes are single-row and immediately
// visible to subsequent reads; callers serialize concurrent writers with
// record-level locks.
type DocumentRepository interface {
	// Create inserts a new document record and returns the stored row.
	Create(ctx context.Context, rec *model.DocumentRecord) (*model.DocumentRecord, error)

	// FindByID returns a record by its ID. Missing rows surface sql.ErrNoRows.
	FindByID(ctx context.Context, id string) (*model.DocumentRecord, error)

	// FindByPartition returns every record for one (year, itemID) pair.
	FindByPartition(ctx context.Context, year, itemID int) ([]model.DocumentRecord, error)

	// FindAllForYear returns every record in a year partition.
	FindAllForYear(ctx context.Context, year int) ([]model.DocumentRecord, error)

	// Years returns the distinct year partitions present in the store.
	Years(ctx context.Context) ([]int, error)

	// List returns records matching the filter, newest first.
	List(ctx context.Context, f ListFilter) ([]model.DocumentRecord, error)

	// UpdateLocation rewrites the organizational key and physical path of
	// one record after a successful relocation.
	UpdateLocation(ctx context.Context, id string, year int, unit, physicalPath string) error

	// UpdateStatus transitions a record's lifecycle status. orphanedAt is
	// persisted for the orphaned status and cleared otherwise.
	UpdateStatus(ctx context.Context, id string, status model.DocumentStatus, orphanedAt time.Time) error

	// Delete removes a record by ID. Deleting a missing row surfaces
	// sql.ErrNoRows so callers can signal NotFound.
	Delete(ctx context.Context, id string) error
}

// ListFilter narrows List results. Year is required; the rest are
// optional (zero values match everything).
type ListFilter struct {
	Year   int
	Unit   string
	ItemID int
	Status model.DocumentStatus
}
