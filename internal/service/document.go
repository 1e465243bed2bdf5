package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"gcgdocs/internal/locks"
	"gcgdocs/internal/mirror"
	"gcgdocs/internal/model"
	"gcgdocs/internal/repository"
	"gcgdocs/internal/storage"
)

// UploadInput carries everything needed to store one document.
type UploadInput struct {
	Year        int
	Unit        string
	ItemID      int
	FileName    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// UploadResult is the outcome of an upload. Warnings report degraded but
// successful operations (mirror desync) so an operator can decide
// whether to run the reconciler.
type UploadResult struct {
	Document *model.DocumentRecord `json:"document"`
	Warnings []string              `json:"warnings,omitempty"`
}

// DeleteResult is the outcome of a document deletion.
type DeleteResult struct {
	Success  bool     `json:"success"`
	Warnings []string `json:"warnings,omitempty"`
}

// DocumentService defines the use cases for handling documents.
type DocumentService interface {
	// Upload writes the content to the file tree, inserts the metadata row,
	// and mirrors it best-effort. Any prior active record for the same
	// (year, itemID) partition is replaced.
	Upload(ctx context.Context, in UploadInput) (*UploadResult, error)

	// Reassign moves a document to a new (year, unit) organizational key.
	Reassign(ctx context.Context, id string, newYear int, newUnit string) (*ReassignResult, error)

	// Get returns a single record by its ID.
	Get(ctx context.Context, id string) (*model.DocumentRecord, error)

	// Download streams the stored bytes of a document.
	Download(ctx context.Context, id string) (io.ReadCloser, *model.DocumentRecord, error)

	// List returns records matching the filter.
	List(ctx context.Context, f repository.ListFilter) ([]model.DocumentRecord, error)

	// Delete removes the physical file (tolerant of it already being gone),
	// the metadata row, and the mirror row.
	Delete(ctx context.Context, id string) (*DeleteResult, error)

	// HasFiles reports whether a partition currently holds real files.
	HasFiles(ctx context.Context, year int, unit string, itemID int) (bool, error)
}

type documentService struct {
	store     storage.FileStore
	repo      repository.DocumentRepository
	mirror    mirror.Store
	locks     *locks.Table
	relocator *Relocator
}

// NewDocumentService constructs a new DocumentService.
func NewDocumentService(store storage.FileStore, repo repository.DocumentRepository, mir mirror.Store, lt *locks.Table) DocumentService {
	return &documentService{
		store:     store,
		repo:      repo,
		mirror:    mir,
		locks:     lt,
		relocator: NewRelocator(store, repo, mir, lt),
	}
}

func (s *documentService) Upload(ctx context.Context, in UploadInput) (*UploadResult, error) {
	if in.Content == nil {
		return nil, ErrReaderNil
	}
	if in.Year == 0 {
		return nil, ErrYearRequired
	}
	if in.Unit == "" {
		return nil, ErrUnitRequired
	}
	if in.ItemID == 0 {
		return nil, ErrItemRequired
	}
	if in.FileName == "" {
		return nil, ErrFileRequired
	}

	release, err := s.locks.Acquire(ctx, locks.DocumentKey(in.Year, in.ItemID))
	if err != nil {
		return nil, err
	}
	defer release()

	var warnings []string

	// Single-document-per-item: predecessors for this partition go first,
	// so at most one active record survives per (year, itemID).
	predecessors, err := s.repo.FindByPartition(ctx, in.Year, in.ItemID)
	if err != nil {
		return nil, fmt.Errorf("find predecessors: %w", err)
	}
	for _, old := range predecessors {
		// A predecessor that survives in the metadata store must fail the
		// upload: inserting the new record anyway would leave two records
		// claiming the same (year, itemID) partition.
		w, err := s.removeRecord(ctx, old)
		if err != nil {
			return nil, fmt.Errorf("replace predecessor: %w", err)
		}
		if w != "" {
			warnings = append(warnings, w)
		}
	}

	key := storage.ResolvePath(in.Year, in.Unit, in.ItemID, in.FileName)
	objInfo, err := s.store.Put(ctx, key, in.Content, storage.PutObjectOptions{
		Size:        in.Size,
		ContentType: in.ContentType,
		Metadata: map[string]string{
			"original-filename": in.FileName,
		},
	})
	if err != nil {
		// The metadata insert must not happen when the physical write
		// failed, so no record can ever point at a missing file.
		return nil, fmt.Errorf("upload to storage: %w", err)
	}

	rec := &model.DocumentRecord{
		ID:           uuid.New().String(),
		Year:         in.Year,
		Unit:         in.Unit,
		ItemID:       in.ItemID,
		FileName:     in.FileName,
		FileSize:     objInfo.Size,
		ContentType:  objInfo.ContentType,
		PhysicalPath: key,
		Status:       model.StatusActive,
		UploadedAt:   time.Now().UTC(),
	}
	stored, err := s.repo.Create(ctx, rec)
	if err != nil {
		// Rollback: remove the just-written file so the tree carries no
		// bytes the metadata store does not know about.
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			return nil, fmt.Errorf("db save failed: %v; rollback delete failed: %v", err, delErr)
		}
		return nil, fmt.Errorf("db save failed: %w", err)
	}

	if err := s.mirror.Upsert(ctx, *stored); err != nil {
		warnings = append(warnings, mirrorWarning("upsert", stored.ID, err))
	}

	return &UploadResult{Document: stored, Warnings: warnings}, nil
}

func (s *documentService) Reassign(ctx context.Context, id string, newYear int, newUnit string) (*ReassignResult, error) {
	return s.relocator.Relocate(ctx, id, newYear, newUnit)
}

func (s *documentService) Get(ctx context.Context, id string) (*model.DocumentRecord, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (s *documentService) Download(ctx context.Context, id string) (io.ReadCloser, *model.DocumentRecord, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	rc, _, err := s.store.Get(ctx, rec.PhysicalPath)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	return rc, rec, nil
}

func (s *documentService) List(ctx context.Context, f repository.ListFilter) ([]model.DocumentRecord, error) {
	if f.Year == 0 {
		return nil, ErrYearRequired
	}
	return s.repo.List(ctx, f)
}

func (s *documentService) Delete(ctx context.Context, id string) (*DeleteResult, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, locks.DocumentKey(rec.Year, rec.ItemID))
	if err != nil {
		return nil, err
	}
	defer release()

	res := &DeleteResult{Success: true}
	w, err := s.removeRecord(ctx, *rec)
	if err != nil {
		return nil, err
	}
	if w != "" {
		res.Warnings = append(res.Warnings, w)
	}
	return res, nil
}

// removeRecord deletes one record's file, metadata row, and mirror row.
// The physical delete tolerates an already-missing file so the operation
// is idempotent. A metadata delete failure is an error, not a warning:
// the row is the authoritative state and callers must not proceed as if
// it were gone. Only a mirror failure degrades to a warning.
func (s *documentService) removeRecord(ctx context.Context, rec model.DocumentRecord) (string, error) {
	if err := s.store.Delete(ctx, rec.PhysicalPath); err != nil {
		logEvent(map[string]any{
			"component": "documents",
			"event":     "physical_delete_failed",
			"level":     "warn",
			"id":        rec.ID,
			"path":      rec.PhysicalPath,
			"error":     err.Error(),
		})
	}
	if err := s.repo.Delete(ctx, rec.ID); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("metadata delete failed for %s: %w", rec.ID, err)
	}
	if err := s.mirror.Remove(ctx, rec.ID); err != nil {
		return mirrorWarning("remove", rec.ID, err), nil
	}
	return "", nil
}

func (s *documentService) HasFiles(ctx context.Context, year int, unit string, itemID int) (bool, error) {
	if year == 0 {
		return false, ErrYearRequired
	}
	return s.store.Exists(ctx, storage.ResolveDir(year, unit, itemID))
}

func mirrorWarning(op, id string, err error) string {
	logEvent(map[string]any{
		"component": "mirror",
		"event":     "mirror_write_failed",
		"level":     "warn",
		"op":        op,
		"id":        id,
		"error":     err.Error(),
	})
	return fmt.Sprintf("mirror %s failed for %s: %v", op, id, err)
}
