package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"gcgdocs/internal/model"
	"gcgdocs/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const recordColumns = `id, year, unit, item_id, file_name, file_size, content_type, physical_path, status, uploaded_at, orphaned_at`

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, rec *model.DocumentRecord) (*model.DocumentRecord, error) {
	const q = `
		INSERT INTO document_records (id, year, unit, item_id, file_name, file_size, content_type, physical_path, status, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + recordColumns
	row := r.db.QueryRowContext(ctx, q,
		rec.ID,
		rec.Year,
		rec.Unit,
		rec.ItemID,
		rec.FileName,
		rec.FileSize,
		rec.ContentType,
		rec.PhysicalPath,
		rec.Status,
		rec.UploadedAt,
	)
	return scanRecord(row)
}

// FindByID fetches a single record by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.DocumentRecord, error) {
	const q = `
		SELECT ` + recordColumns + `
		FROM document_records
		WHERE id = $1
	`
	return scanRecord(r.db.QueryRowContext(ctx, q, id))
}

// FindByPartition returns every record for one (year, itemID) pair.
func (r *DocumentPostgres) FindByPartition(ctx context.Context, year, itemID int) ([]model.DocumentRecord, error) {
	const q = `
		SELECT ` + recordColumns + `
		FROM document_records
		WHERE year = $1 AND item_id = $2
		ORDER BY uploaded_at DESC, id DESC
	`
	return r.queryRecords(ctx, q, year, itemID)
}

// FindAllForYear returns every record in a year partition.
func (r *DocumentPostgres) FindAllForYear(ctx context.Context, year int) ([]model.DocumentRecord, error) {
	const q = `
		SELECT ` + recordColumns + `
		FROM document_records
		WHERE year = $1
		ORDER BY uploaded_at DESC, id DESC
	`
	return r.queryRecords(ctx, q, year)
}

// Years returns the distinct year partitions present in the store.
func (r *DocumentPostgres) Years(ctx context.Context) ([]int, error) {
	const q = `SELECT DISTINCT year FROM document_records ORDER BY year`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	years := make([]int, 0)
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, err
		}
		years = append(years, y)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return years, nil
}

// List returns records matching the filter, newest first.
func (r *DocumentPostgres) List(ctx context.Context, f repository.ListFilter) ([]model.DocumentRecord, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + recordColumns + ` FROM document_records WHERE year = $1`)
	args := []any{f.Year}
	if f.Unit != "" {
		args = append(args, f.Unit)
		fmt.Fprintf(&b, " AND unit = $%d", len(args))
	}
	if f.ItemID != 0 {
		args = append(args, f.ItemID)
		fmt.Fprintf(&b, " AND item_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		fmt.Fprintf(&b, " AND status = $%d", len(args))
	}
	b.WriteString(" ORDER BY uploaded_at DESC, id DESC")
	return r.queryRecords(ctx, b.String(), args...)
}

// UpdateLocation rewrites the organizational key and physical path.
func (r *DocumentPostgres) UpdateLocation(ctx context.Context, id string, year int, unit, physicalPath string) error {
	const q = `
		UPDATE document_records
		SET year = $2, unit = $3, physical_path = $4
		WHERE id = $1
	`
	return r.execOne(ctx, q, id, year, unit, physicalPath)
}

// UpdateStatus transitions the lifecycle status of one record.
func (r *DocumentPostgres) UpdateStatus(ctx context.Context, id string, status model.DocumentStatus, orphanedAt time.Time) error {
	const q = `
		UPDATE document_records
		SET status = $2, orphaned_at = $3
		WHERE id = $1
	`
	var at sql.NullTime
	if !orphanedAt.IsZero() {
		at = sql.NullTime{Time: orphanedAt, Valid: true}
	}
	return r.execOne(ctx, q, id, status, at)
}

// Delete removes a record by ID, surfacing sql.ErrNoRows for missing rows.
func (r *DocumentPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM document_records WHERE id = $1`
	return r.execOne(ctx, q, id)
}

func (r *DocumentPostgres) execOne(ctx context.Context, q string, args ...any) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *DocumentPostgres) queryRecords(ctx context.Context, q string, args ...any) ([]model.DocumentRecord, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.DocumentRecord, 0)
	for rows.Next() {
		var d model.DocumentRecord
		var orphanedAt sql.NullTime
		if err := rows.Scan(
			&d.ID,
			&d.Year,
			&d.Unit,
			&d.ItemID,
			&d.FileName,
			&d.FileSize,
			&d.ContentType,
			&d.PhysicalPath,
			&d.Status,
			&d.UploadedAt,
			&orphanedAt,
		); err != nil {
			return nil, err
		}
		if orphanedAt.Valid {
			d.OrphanedAt = orphanedAt.Time
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanRecord(row *sql.Row) (*model.DocumentRecord, error) {
	var d model.DocumentRecord
	var orphanedAt sql.NullTime
	if err := row.Scan(
		&d.ID,
		&d.Year,
		&d.Unit,
		&d.ItemID,
		&d.FileName,
		&d.FileSize,
		&d.ContentType,
		&d.PhysicalPath,
		&d.Status,
		&d.UploadedAt,
		&orphanedAt,
	); err != nil {
		return nil, err
	}
	if orphanedAt.Valid {
		d.OrphanedAt = orphanedAt.Time
	}
	return &d, nil
}
