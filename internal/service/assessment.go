package service

import (
	"context"
	"fmt"

	"gcgdocs/internal/locks"
	"gcgdocs/internal/model"
	"gcgdocs/internal/snapshot"
)

// AssessmentService defines the use cases for yearly assessment tables.
// A save is always full-replace: the submitted rows become the entire
// year partition.
type AssessmentService interface {
	// Save replaces the year partition with rows and reports row counts.
	Save(ctx context.Context, year int, rows []model.AssessmentRow) (*snapshot.SaveResult, error)

	// Load returns the year partition in canonical order.
	Load(ctx context.Context, year int) ([]model.AssessmentRow, error)

	// DeleteYear drops the year partition, returning how many rows went.
	DeleteYear(ctx context.Context, year int) (int, error)
}

type assessmentService struct {
	writer *snapshot.Writer
	locks  *locks.Table
}

// NewAssessmentService constructs a new AssessmentService.
func NewAssessmentService(w *snapshot.Writer, lt *locks.Table) AssessmentService {
	return &assessmentService{writer: w, locks: lt}
}

func (s *assessmentService) Save(ctx context.Context, year int, rows []model.AssessmentRow) (*snapshot.SaveResult, error) {
	if year == 0 {
		return nil, ErrYearRequired
	}
	if err := snapshot.Validate(rows); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRow, err)
	}

	release, err := s.locks.Acquire(ctx, locks.SnapshotKey(year))
	if err != nil {
		return nil, err
	}
	defer release()

	res, err := s.writer.ReplacePartition(ctx, year, rows)
	if err != nil {
		return nil, fmt.Errorf("save assessment %d: %w", year, err)
	}

	logEvent(map[string]any{
		"component":          "assessments",
		"event":              "partition_saved",
		"year":               year,
		"row_count":          res.RowCount,
		"duplicates_removed": res.DuplicatesRemoved,
	})
	return &res, nil
}

func (s *assessmentService) Load(ctx context.Context, year int) ([]model.AssessmentRow, error) {
	if year == 0 {
		return nil, ErrYearRequired
	}
	return s.writer.LoadPartition(ctx, year)
}

func (s *assessmentService) DeleteYear(ctx context.Context, year int) (int, error) {
	if year == 0 {
		return 0, ErrYearRequired
	}

	release, err := s.locks.Acquire(ctx, locks.SnapshotKey(year))
	if err != nil {
		return 0, err
	}
	defer release()

	removed, err := s.writer.DeletePartition(ctx, year)
	if err != nil {
		return 0, fmt.Errorf("delete assessment %d: %w", year, err)
	}
	return removed, nil
}
