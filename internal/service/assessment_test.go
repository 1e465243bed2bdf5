package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gcgdocs/internal/locks"
	"gcgdocs/internal/model"
	"gcgdocs/internal/snapshot"
)

func newTestAssessmentService(t *testing.T) AssessmentService {
	t.Helper()
	return NewAssessmentService(snapshot.NewWriter(newLocalStore(t), ""), locks.New(0))
}

func TestAssessmentService_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	svc := newTestAssessmentService(t)

	rows := []model.AssessmentRow{
		{Section: "I", ItemNumber: 1, Type: model.RowHeader, Description: "Komitmen"},
		{Section: "I", ItemNumber: 2, Type: model.RowIndicator, Weight: 1.218, Score: 1.0},
		{ItemNumber: 99, Type: model.RowTotal, Score: 85.5},
	}

	res, err := svc.Save(ctx, 2024, rows)
	require.NoError(t, err)
	assert.Equal(t, 3, res.RowCount)
	assert.Equal(t, 0, res.DuplicatesRemoved)

	got, err := svc.Load(ctx, 2024)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// Total rows sort after every section of their year.
	assert.Equal(t, model.RowTotal, got[2].Type)
}

func TestAssessmentService_SaveReplacesPartition(t *testing.T) {
	ctx := context.Background()
	svc := newTestAssessmentService(t)

	first := []model.AssessmentRow{
		{Section: "I", ItemNumber: 1, Type: model.RowIndicator},
		{Section: "I", ItemNumber: 2, Type: model.RowIndicator},
	}
	_, err := svc.Save(ctx, 2024, first)
	require.NoError(t, err)

	// Omitting a row from the next save deletes it.
	second := []model.AssessmentRow{
		{Section: "I", ItemNumber: 1, Type: model.RowIndicator, Score: 0.9},
	}
	res, err := svc.Save(ctx, 2024, second)
	require.NoError(t, err)
	assert.Equal(t, 1, res.RowCount)

	got, err := svc.Load(ctx, 2024)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 0.9, got[0].Score)
}

func TestAssessmentService_Validation(t *testing.T) {
	ctx := context.Background()
	svc := newTestAssessmentService(t)

	_, err := svc.Save(ctx, 0, nil)
	assert.ErrorIs(t, err, ErrYearRequired)

	_, err = svc.Save(ctx, 2024, []model.AssessmentRow{
		{Section: "I", ItemNumber: 1, Type: "bogus"},
	})
	assert.ErrorIs(t, err, ErrInvalidRow)

	_, err = svc.Load(ctx, 0)
	assert.ErrorIs(t, err, ErrYearRequired)

	_, err = svc.DeleteYear(ctx, 0)
	assert.ErrorIs(t, err, ErrYearRequired)
}

func TestAssessmentService_DeleteYear(t *testing.T) {
	ctx := context.Background()
	svc := newTestAssessmentService(t)

	_, err := svc.Save(ctx, 2023, []model.AssessmentRow{{Section: "I", ItemNumber: 1, Type: model.RowIndicator}})
	require.NoError(t, err)
	_, err = svc.Save(ctx, 2024, []model.AssessmentRow{{Section: "I", ItemNumber: 1, Type: model.RowIndicator}})
	require.NoError(t, err)

	removed, err := svc.DeleteYear(ctx, 2023)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	// Deleting again is a no-op.
	removed, err = svc.DeleteYear(ctx, 2023)
	require.NoError(t, err)
	assert.Equal(t, 0, removed)

	got, err := svc.Load(ctx, 2024)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
