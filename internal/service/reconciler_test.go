package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gcgdocs/internal/mirror"
	"gcgdocs/internal/model"
	repoMocks "gcgdocs/internal/repository/mocks"
	"gcgdocs/internal/storage"
)

var reconcileNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testRecord(id string, status model.DocumentStatus) model.DocumentRecord {
	return model.DocumentRecord{
		ID:           id,
		Year:         2024,
		Unit:         "Sekretariat Perusahaan",
		ItemID:       3,
		FileName:     id + ".pdf",
		FileSize:     4,
		ContentType:  "application/pdf",
		PhysicalPath: storage.ResolvePath(2024, "Sekretariat Perusahaan", 3, id+".pdf"),
		Status:       status,
		UploadedAt:   time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func newTestReconciler(t *testing.T, mRepo *repoMocks.MockDocumentRepository, policy ReconcilePolicy) (*Reconciler, *storage.LocalStore, *mirror.CSVStore) {
	t.Helper()
	store := newLocalStore(t)
	mir := mirror.NewCSV(store, "")
	r := NewReconciler(store, mRepo, mir, policy)
	r.now = func() time.Time { return reconcileNow }
	return r, store, mir
}

func TestReconciler_MarksMissingFileOrphaned(t *testing.T) {
	ctx := context.Background()
	mRepo := new(repoMocks.MockDocumentRepository)
	r, _, mir := newTestReconciler(t, mRepo, ReconcilePolicy{})

	active := testRecord("doc-1", model.StatusActive)
	orphaned := active
	orphaned.Status = model.StatusOrphaned
	orphaned.OrphanedAt = reconcileNow

	// Mirror already carries the post-repair row so the mirror scan has
	// nothing left to do.
	require.NoError(t, mir.Upsert(ctx, orphaned))

	mRepo.On("FindAllForYear", ctx, 2024).Return([]model.DocumentRecord{active}, nil).Once()
	mRepo.On("FindByID", ctx, "doc-1").Return(&active, nil).Once()
	mRepo.On("UpdateStatus", ctx, "doc-1", model.StatusOrphaned, reconcileNow).Return(nil).Once()
	mRepo.On("FindAllForYear", ctx, 2024).Return([]model.DocumentRecord{orphaned}, nil).Once()

	report, err := r.Run(ctx, 2024)
	require.NoError(t, err)
	assert.Equal(t, 1, report.OrphanedFound)
	assert.Equal(t, 0, report.OrphanedPurged)
	assert.Equal(t, 0, report.MirrorRowsPruned)
	assert.Equal(t, 0, report.MirrorRowsAdded)
	mRepo.AssertExpectations(t)
}

func TestReconciler_SkipsRecordChangedSinceScan(t *testing.T) {
	ctx := context.Background()
	mRepo := new(repoMocks.MockDocumentRepository)
	r, store, mir := newTestReconciler(t, mRepo, ReconcilePolicy{})

	stale := testRecord("doc-1", model.StatusActive)
	// By re-check time the record moved elsewhere; the scan must not
	// orphan it based on the old path.
	moved := stale
	moved.PhysicalPath = storage.ResolvePath(2024, "Tata Kelola TI", 3, "doc-1.pdf")
	moved.Unit = "Tata Kelola TI"
	putFile(t, store, moved.PhysicalPath, "isi")
	require.NoError(t, mir.Upsert(ctx, moved))

	mRepo.On("FindAllForYear", ctx, 2024).Return([]model.DocumentRecord{stale}, nil).Once()
	mRepo.On("FindByID", ctx, "doc-1").Return(&moved, nil).Once()
	mRepo.On("FindAllForYear", ctx, 2024).Return([]model.DocumentRecord{moved}, nil).Once()

	report, err := r.Run(ctx, 2024)
	require.NoError(t, err)
	assert.True(t, report.Empty())
	mRepo.AssertNotCalled(t, "UpdateStatus")
}

func TestReconciler_RestoresReappearedFile(t *testing.T) {
	ctx := context.Background()
	mRepo := new(repoMocks.MockDocumentRepository)
	r, store, mir := newTestReconciler(t, mRepo, ReconcilePolicy{Purge: true})

	orphaned := testRecord("doc-1", model.StatusOrphaned)
	orphaned.OrphanedAt = reconcileNow.Add(-48 * time.Hour)
	restored := orphaned
	restored.Status = model.StatusActive
	restored.OrphanedAt = time.Time{}

	putFile(t, store, orphaned.PhysicalPath, "isi")
	require.NoError(t, mir.Upsert(ctx, restored))

	mRepo.On("FindAllForYear", ctx, 2024).Return([]model.DocumentRecord{orphaned}, nil).Once()
	mRepo.On("UpdateStatus", ctx, "doc-1", model.StatusActive, time.Time{}).Return(nil).Once()
	mRepo.On("FindAllForYear", ctx, 2024).Return([]model.DocumentRecord{restored}, nil).Once()

	report, err := r.Run(ctx, 2024)
	require.NoError(t, err)
	assert.True(t, report.Empty())
	mRepo.AssertNotCalled(t, "Delete")
	mRepo.AssertExpectations(t)
}

func TestReconciler_PurgePolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("expired orphan is purged", func(t *testing.T) {
		mRepo := new(repoMocks.MockDocumentRepository)
		r, _, mir := newTestReconciler(t, mRepo, ReconcilePolicy{Purge: true, PurgeGrace: time.Hour})

		orphaned := testRecord("doc-1", model.StatusOrphaned)
		orphaned.OrphanedAt = reconcileNow.Add(-2 * time.Hour)
		require.NoError(t, mir.Upsert(ctx, orphaned))

		mRepo.On("FindAllForYear", ctx, 2024).Return([]model.DocumentRecord{orphaned}, nil).Once()
		mRepo.On("Delete", ctx, "doc-1").Return(nil).Once()
		mRepo.On("FindAllForYear", ctx, 2024).Return([]model.DocumentRecord{}, nil).Once()

		report, err := r.Run(ctx, 2024)
		require.NoError(t, err)
		assert.Equal(t, 1, report.OrphanedPurged)

		rows, err := mir.Rows(ctx)
		require.NoError(t, err)
		assert.Empty(t, rows)
		mRepo.AssertExpectations(t)
	})

	t.Run("grace period holds the purge", func(t *testing.T) {
		mRepo := new(repoMocks.MockDocumentRepository)
		r, _, mir := newTestReconciler(t, mRepo, ReconcilePolicy{Purge: true, PurgeGrace: time.Hour})

		orphaned := testRecord("doc-1", model.StatusOrphaned)
		orphaned.OrphanedAt = reconcileNow.Add(-time.Minute)
		require.NoError(t, mir.Upsert(ctx, orphaned))

		mRepo.On("FindAllForYear", ctx, 2024).Return([]model.DocumentRecord{orphaned}, nil)

		report, err := r.Run(ctx, 2024)
		require.NoError(t, err)
		assert.Equal(t, 0, report.OrphanedPurged)
		mRepo.AssertNotCalled(t, "Delete")
	})

	t.Run("purge disabled keeps orphans forever", func(t *testing.T) {
		mRepo := new(repoMocks.MockDocumentRepository)
		r, _, mir := newTestReconciler(t, mRepo, ReconcilePolicy{Purge: false})

		orphaned := testRecord("doc-1", model.StatusOrphaned)
		orphaned.OrphanedAt = reconcileNow.Add(-1000 * time.Hour)
		require.NoError(t, mir.Upsert(ctx, orphaned))

		mRepo.On("FindAllForYear", ctx, 2024).Return([]model.DocumentRecord{orphaned}, nil)

		report, err := r.Run(ctx, 2024)
		require.NoError(t, err)
		assert.Equal(t, 0, report.OrphanedPurged)
		mRepo.AssertNotCalled(t, "Delete")
	})
}

func TestReconciler_RepairsMirror(t *testing.T) {
	ctx := context.Background()
	mRepo := new(repoMocks.MockDocumentRepository)
	r, store, mir := newTestReconciler(t, mRepo, ReconcilePolicy{})

	rec1 := testRecord("doc-1", model.StatusActive)
	rec2 := testRecord("doc-2", model.StatusActive)
	rec2.ItemID = 4
	rec2.PhysicalPath = storage.ResolvePath(2024, "Sekretariat Perusahaan", 4, "doc-2.pdf")
	putFile(t, store, rec1.PhysicalPath, "satu")
	putFile(t, store, rec2.PhysicalPath, "dua")

	// Mirror drifted three ways: doc-1 points at a stale path, doc-2 is
	// missing entirely, and a ghost row survives a failed delete.
	stale1 := rec1
	stale1.PhysicalPath = "gcg-documents/2023/Lama/3/doc-1.pdf"
	ghost := testRecord("ghost", model.StatusActive)
	require.NoError(t, mir.Upsert(ctx, stale1))
	require.NoError(t, mir.Upsert(ctx, ghost))

	mRepo.On("FindAllForYear", ctx, 2024).Return([]model.DocumentRecord{rec1, rec2}, nil)
	mRepo.On("FindByID", ctx, "ghost").Return(nil, sql.ErrNoRows)

	report, err := r.Run(ctx, 2024)
	require.NoError(t, err)
	assert.Equal(t, 1, report.MirrorRowsPruned)
	assert.Equal(t, 2, report.MirrorRowsAdded)

	rows, err := mir.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	byID := map[string]model.DocumentRecord{}
	for _, row := range rows {
		byID[row.ID] = row
	}
	assert.Equal(t, rec1.PhysicalPath, byID["doc-1"].PhysicalPath)
	assert.Equal(t, rec2.PhysicalPath, byID["doc-2"].PhysicalPath)
}

func TestReconciler_AllYears(t *testing.T) {
	ctx := context.Background()
	mRepo := new(repoMocks.MockDocumentRepository)
	r, _, _ := newTestReconciler(t, mRepo, ReconcilePolicy{})

	mRepo.On("Years", ctx).Return([]int{2023, 2024}, nil)
	mRepo.On("FindAllForYear", ctx, 2023).Return([]model.DocumentRecord{}, nil)
	mRepo.On("FindAllForYear", ctx, 2024).Return([]model.DocumentRecord{}, nil)

	report, err := r.Run(ctx, 0)
	require.NoError(t, err)
	assert.True(t, report.Empty())
	mRepo.AssertExpectations(t)
}

func TestReconciler_AllYearsIncludesMirrorOnlyYears(t *testing.T) {
	ctx := context.Background()
	mRepo := new(repoMocks.MockDocumentRepository)
	r, _, mir := newTestReconciler(t, mRepo, ReconcilePolicy{})

	// The last metadata record for 2020 is gone but its mirror row
	// survived a failed delete; a full run must still visit 2020 and
	// prune the row even though the metadata store forgot the year.
	ghost := testRecord("ghost-old", model.StatusActive)
	ghost.Year = 2020
	ghost.PhysicalPath = storage.ResolvePath(2020, "Sekretariat Perusahaan", 3, "ghost-old.pdf")
	require.NoError(t, mir.Upsert(ctx, ghost))

	mRepo.On("Years", ctx).Return([]int{2024}, nil)
	mRepo.On("FindAllForYear", ctx, 2020).Return([]model.DocumentRecord{}, nil)
	mRepo.On("FindAllForYear", ctx, 2024).Return([]model.DocumentRecord{}, nil)
	mRepo.On("FindByID", ctx, "ghost-old").Return(nil, sql.ErrNoRows)

	report, err := r.Run(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, report.MirrorRowsPruned)

	rows, err := mir.Rows(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
	mRepo.AssertExpectations(t)
}

func TestReconciler_IdempotentOnConsistentState(t *testing.T) {
	ctx := context.Background()
	mRepo := new(repoMocks.MockDocumentRepository)
	r, store, mir := newTestReconciler(t, mRepo, ReconcilePolicy{Purge: true})

	rec := testRecord("doc-1", model.StatusActive)
	putFile(t, store, rec.PhysicalPath, "isi")
	require.NoError(t, mir.Upsert(ctx, rec))

	mRepo.On("FindAllForYear", ctx, 2024).Return([]model.DocumentRecord{rec}, nil)

	for i := 0; i < 2; i++ {
		report, err := r.Run(ctx, 2024)
		require.NoError(t, err)
		assert.True(t, report.Empty())
	}
}
