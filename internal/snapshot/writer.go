package snapshot

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gcgdocs/internal/model"
	"gcgdocs/internal/storage"
)

// Package snapshot implements the full-replace-by-partition write path
// for yearly assessment result tables. A save always carries the
// complete desired state of one year: rows the caller omits are gone
// after the save, which is how deletions are expressed.

// SaveResult reports what one ReplacePartition call did.
type SaveResult struct {
	RowCount          int `json:"row_count"`
	DuplicatesRemoved int `json:"duplicates_removed"`
}

// Writer persists the assessment table as one flat tabular file.
// Callers serialize saves per year with the advisory lock table; the
// internal mutex additionally serializes the whole-file read-modify-write
// across year partitions sharing the file.
type Writer struct {
	table *Table

	mu sync.Mutex
}

// NewWriter creates a snapshot writer over the given backend.
func NewWriter(store storage.FileStore, key string) *Writer {
	return &Writer{table: NewTable(store, key)}
}

// ReplacePartition replaces every row of the year partition with newRows.
// Survivors from other years are kept, the merged set is deduplicated by
// composite key keeping the last occurrence, deterministically ordered,
// and persisted as the full table.
func (w *Writer) ReplacePartition(ctx context.Context, year int, newRows []model.AssessmentRow) (SaveResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	existing, err := w.table.Load(ctx)
	if err != nil {
		return SaveResult{}, err
	}

	merged := make([]model.AssessmentRow, 0, len(existing)+len(newRows))
	for _, r := range existing {
		if r.Year != year {
			merged = append(merged, r)
		}
	}
	for _, r := range newRows {
		// Rows are saved into the named partition regardless of what the
		// caller put in the field.
		r.Year = year
		merged = append(merged, r)
	}

	deduped := Dedup(merged)
	Sort(deduped)

	if err := w.table.Save(ctx, deduped); err != nil {
		return SaveResult{}, err
	}

	yearCount := 0
	for _, r := range deduped {
		if r.Year == year {
			yearCount++
		}
	}
	return SaveResult{
		RowCount:          yearCount,
		DuplicatesRemoved: len(merged) - len(deduped),
	}, nil
}

// DeletePartition removes every row of one year and persists the rest.
// It returns how many rows were dropped.
func (w *Writer) DeletePartition(ctx context.Context, year int) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	existing, err := w.table.Load(ctx)
	if err != nil {
		return 0, err
	}
	kept := make([]model.AssessmentRow, 0, len(existing))
	for _, r := range existing {
		if r.Year != year {
			kept = append(kept, r)
		}
	}
	removed := len(existing) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	Sort(kept)
	if err := w.table.Save(ctx, kept); err != nil {
		return 0, err
	}
	return removed, nil
}

// LoadPartition returns the rows of one year in canonical order.
func (w *Writer) LoadPartition(ctx context.Context, year int) ([]model.AssessmentRow, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	all, err := w.table.Load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]model.AssessmentRow, 0)
	for _, r := range all {
		if r.Year == year {
			out = append(out, r)
		}
	}
	Sort(out)
	return out, nil
}

// Years returns the distinct year partitions present in the table.
func (w *Writer) Years(ctx context.Context) ([]int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	all, err := w.table.Load(ctx)
	if err != nil {
		return nil, err
	}
	seen := map[int]bool{}
	var out []int
	for _, r := range all {
		if !seen[r.Year] {
			seen[r.Year] = true
			out = append(out, r.Year)
		}
	}
	sort.Ints(out)
	return out, nil
}

// Dedup removes rows sharing a composite key, keeping the last
// occurrence. Input order is preserved for the survivors.
func Dedup(rows []model.AssessmentRow) []model.AssessmentRow {
	last := make(map[model.AssessmentKey]int, len(rows))
	for i, r := range rows {
		last[r.Key()] = i
	}
	out := make([]model.AssessmentRow, 0, len(last))
	for i, r := range rows {
		if last[r.Key()] == i {
			out = append(out, r)
		}
	}
	return out
}

// Sort orders rows canonically: (year asc, section asc, type priority
// asc, item number asc), with total rows after every section of their
// year.
func Sort(rows []model.AssessmentRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].Less(rows[j])
	})
}

// Validate rejects rows that cannot participate in the composite key.
func Validate(rows []model.AssessmentRow) error {
	for i, r := range rows {
		switch r.Type {
		case model.RowHeader, model.RowIndicator, model.RowSubtotal, model.RowTotal:
		default:
			return fmt.Errorf("row %d: unknown row type %q", i, r.Type)
		}
		if r.Section == "" && r.Type != model.RowTotal {
			return fmt.Errorf("row %d: section is required", i)
		}
	}
	return nil
}
