package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gcgdocs/internal/locks"
	mirrorMocks "gcgdocs/internal/mirror/mocks"
	"gcgdocs/internal/model"
	repoMocks "gcgdocs/internal/repository/mocks"
	"gcgdocs/internal/storage"
)

func newLocalStore(t *testing.T) *storage.LocalStore {
	t.Helper()
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	return store
}

func putFile(t *testing.T, store *storage.LocalStore, key, content string) {
	t.Helper()
	_, err := store.Put(context.Background(), key, strings.NewReader(content), storage.PutObjectOptions{})
	require.NoError(t, err)
}

func TestRelocator_Relocate(t *testing.T) {
	ctx := context.Background()

	rec := func() *model.DocumentRecord {
		return &model.DocumentRecord{
			ID:           "doc-1",
			Year:         2023,
			Unit:         "Sekretariat Perusahaan",
			ItemID:       5,
			FileName:     "notulen.pdf",
			PhysicalPath: storage.ResolvePath(2023, "Sekretariat Perusahaan", 5, "notulen.pdf"),
			Status:       model.StatusActive,
		}
	}

	t.Run("moves the tree then updates metadata and mirror", func(t *testing.T) {
		store := newLocalStore(t)
		mRepo := new(repoMocks.MockDocumentRepository)
		mMirror := new(mirrorMocks.MockStore)
		r := NewRelocator(store, mRepo, mMirror, locks.New(0))

		cur := rec()
		putFile(t, store, cur.PhysicalPath, "isi")

		newPath := storage.ResolvePath(2024, "Tata Kelola TI", 5, "notulen.pdf")
		mRepo.On("FindByID", ctx, "doc-1").Return(cur, nil)
		mRepo.On("UpdateLocation", ctx, "doc-1", 2024, "Tata Kelola TI", newPath).Return(nil)
		mMirror.On("UpdateLocation", ctx, "doc-1", 2024, "Tata Kelola TI", newPath).Return(nil)

		res, err := r.Relocate(ctx, "doc-1", 2024, "Tata Kelola TI")
		require.NoError(t, err)
		assert.True(t, res.Relocated)
		assert.Equal(t, newPath, res.Document.PhysicalPath)
		assert.Empty(t, res.Warnings)

		moved, err := store.Exists(ctx, storage.ResolveDir(2024, "Tata Kelola TI", 5))
		require.NoError(t, err)
		assert.True(t, moved)
		left, err := store.Exists(ctx, storage.ResolveDir(2023, "Sekretariat Perusahaan", 5))
		require.NoError(t, err)
		assert.False(t, left)

		mRepo.AssertExpectations(t)
		mMirror.AssertExpectations(t)
	})

	t.Run("same directory is metadata-only", func(t *testing.T) {
		store := newLocalStore(t)
		mRepo := new(repoMocks.MockDocumentRepository)
		mMirror := new(mirrorMocks.MockStore)
		r := NewRelocator(store, mRepo, mMirror, locks.New(0))

		cur := rec()
		// Same normalized directory, different display name.
		newUnit := " Sekretariat Perusahaan "
		mRepo.On("FindByID", ctx, "doc-1").Return(cur, nil)
		mRepo.On("UpdateLocation", ctx, "doc-1", 2023, newUnit,
			storage.ResolvePath(2023, newUnit, 5, "notulen.pdf")).Return(nil)

		res, err := r.Relocate(ctx, "doc-1", 2023, newUnit)
		require.NoError(t, err)
		assert.False(t, res.Relocated)
		mRepo.AssertExpectations(t)
	})

	t.Run("destination with files fails closed", func(t *testing.T) {
		store := newLocalStore(t)
		mRepo := new(repoMocks.MockDocumentRepository)
		mMirror := new(mirrorMocks.MockStore)
		r := NewRelocator(store, mRepo, mMirror, locks.New(0))

		cur := rec()
		putFile(t, store, cur.PhysicalPath, "isi")
		putFile(t, store, storage.ResolvePath(2024, "Tata Kelola TI", 5, "lain.pdf"), "lain")

		mRepo.On("FindByID", ctx, "doc-1").Return(cur, nil)

		_, err := r.Relocate(ctx, "doc-1", 2024, "Tata Kelola TI")
		assert.ErrorIs(t, err, ErrConflict)

		// Source must be intact: no merge, no partial move.
		src, err2 := store.Exists(ctx, cur.PhysicalPath)
		require.NoError(t, err2)
		assert.True(t, src)
		mRepo.AssertExpectations(t)
	})

	t.Run("metadata failure moves the tree back", func(t *testing.T) {
		store := newLocalStore(t)
		mRepo := new(repoMocks.MockDocumentRepository)
		mMirror := new(mirrorMocks.MockStore)
		r := NewRelocator(store, mRepo, mMirror, locks.New(0))

		cur := rec()
		putFile(t, store, cur.PhysicalPath, "isi")

		mRepo.On("FindByID", ctx, "doc-1").Return(cur, nil)
		mRepo.On("UpdateLocation", ctx, "doc-1", 2024, "Tata Kelola TI",
			storage.ResolvePath(2024, "Tata Kelola TI", 5, "notulen.pdf")).
			Return(errors.New("db fail"))

		_, err := r.Relocate(ctx, "doc-1", 2024, "Tata Kelola TI")
		var relErr *RelocateError
		require.ErrorAs(t, err, &relErr)
		assert.Equal(t, StepMetadata, relErr.Step)

		// The tree came back, so metadata still points at a valid path.
		back, err2 := store.Exists(ctx, cur.PhysicalPath)
		require.NoError(t, err2)
		assert.True(t, back)
		mRepo.AssertExpectations(t)
	})

	t.Run("mirror failure is a warning, not an error", func(t *testing.T) {
		store := newLocalStore(t)
		mRepo := new(repoMocks.MockDocumentRepository)
		mMirror := new(mirrorMocks.MockStore)
		r := NewRelocator(store, mRepo, mMirror, locks.New(0))

		cur := rec()
		putFile(t, store, cur.PhysicalPath, "isi")

		newPath := storage.ResolvePath(2024, "Tata Kelola TI", 5, "notulen.pdf")
		mRepo.On("FindByID", ctx, "doc-1").Return(cur, nil)
		mRepo.On("UpdateLocation", ctx, "doc-1", 2024, "Tata Kelola TI", newPath).Return(nil)
		mMirror.On("UpdateLocation", ctx, "doc-1", 2024, "Tata Kelola TI", newPath).
			Return(errors.New("csv locked"))

		res, err := r.Relocate(ctx, "doc-1", 2024, "Tata Kelola TI")
		require.NoError(t, err)
		assert.True(t, res.Relocated)
		assert.Len(t, res.Warnings, 1)
	})

	t.Run("unknown id maps to not found", func(t *testing.T) {
		mRepo := new(repoMocks.MockDocumentRepository)
		r := NewRelocator(newLocalStore(t), mRepo, new(mirrorMocks.MockStore), locks.New(0))

		mRepo.On("FindByID", ctx, "missing").Return(nil, sql.ErrNoRows)

		_, err := r.Relocate(ctx, "missing", 2024, "Tata Kelola TI")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("validation", func(t *testing.T) {
		r := NewRelocator(newLocalStore(t), new(repoMocks.MockDocumentRepository), new(mirrorMocks.MockStore), locks.New(0))

		_, err := r.Relocate(ctx, "", 2024, "TI")
		assert.ErrorIs(t, err, ErrIDRequired)
		_, err = r.Relocate(ctx, "id", 0, "TI")
		assert.ErrorIs(t, err, ErrYearRequired)
		_, err = r.Relocate(ctx, "id", 2024, "")
		assert.ErrorIs(t, err, ErrUnitRequired)
	})
}
