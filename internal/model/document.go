package model

import "time"

// DocumentStatus is the lifecycle state of a document record.
type DocumentStatus string

const (
	// StatusActive means the record is authoritative and its physical file
	// is expected to exist at PhysicalPath.
	StatusActive DocumentStatus = "active"
	// StatusOrphaned means the reconciler found the physical file missing.
	StatusOrphaned DocumentStatus = "orphaned"
	// StatusDeleted marks a soft-deleted record.
	StatusDeleted DocumentStatus = "deleted"
)

// DocumentRecord represents one uploaded artifact.
// This is a pure domain model with no database-specific dependencies or tags.
// It can be used across layers (HTTP, service, storage) without coupling to persistence.
type DocumentRecord struct {
	ID           string         `json:"id"`
	Year         int            `json:"year"`
	Unit         string         `json:"unit"`
	ItemID       int            `json:"item_id"`
	FileName     string         `json:"file_name"`
	FileSize     int64          `json:"file_size"`
	ContentType  string         `json:"content_type"`
	PhysicalPath string         `json:"physical_path"`
	Status       DocumentStatus `json:"status"`
	UploadedAt   time.Time      `json:"uploaded_at"`
	// OrphanedAt is set when the reconciler marks the record orphaned and
	// drives the purge grace policy. Zero for non-orphaned records.
	OrphanedAt time.Time `json:"orphaned_at,omitempty"`
}

// Consistent reports whether the record's stored physical path matches the
// path resolved from its current organizational key.
func (d DocumentRecord) Consistent(resolved string) bool {
	return d.PhysicalPath == resolved
}
