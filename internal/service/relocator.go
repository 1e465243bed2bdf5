package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"gcgdocs/internal/locks"
	"gcgdocs/internal/mirror"
	"gcgdocs/internal/model"
	"gcgdocs/internal/repository"
	"gcgdocs/internal/storage"
)

// ReassignResult is the outcome of a relocation.
type ReassignResult struct {
	Relocated bool                  `json:"relocated"`
	Document  *model.DocumentRecord `json:"document"`
	Warnings  []string              `json:"warnings,omitempty"`
}

// Relocator moves a document's physical subtree and path references when
// its organizational key changes. The move itself is a rename-style
// primitive: after any failure either the old or the new tree is fully
// present, never a partial split.
type Relocator struct {
	store  storage.FileStore
	repo   repository.DocumentRepository
	mirror mirror.Store
	locks  *locks.Table
}

// NewRelocator constructs a Relocator.
func NewRelocator(store storage.FileStore, repo repository.DocumentRepository, mir mirror.Store, lt *locks.Table) *Relocator {
	return &Relocator{store: store, repo: repo, mirror: mir, locks: lt}
}

// Relocate moves document id to the (newYear, newUnit) organizational
// key. Update order is file tree, then metadata store, then best-effort
// mirror; a mirror failure is reported as a warning, never an error.
func (r *Relocator) Relocate(ctx context.Context, id string, newYear int, newUnit string) (*ReassignResult, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	if newYear == 0 {
		return nil, ErrYearRequired
	}
	if newUnit == "" {
		return nil, ErrUnitRequired
	}

	rec, err := r.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	// Both the source and the destination partitions are write-locked for
	// the duration, in sorted order so two opposing relocations cannot
	// deadlock each other.
	keys := []string{locks.DocumentKey(rec.Year, rec.ItemID)}
	if k := locks.DocumentKey(newYear, rec.ItemID); k != keys[0] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		release, err := r.locks.Acquire(ctx, k)
		if err != nil {
			return nil, err
		}
		defer release()
	}

	oldDir := storage.ResolveDir(rec.Year, rec.Unit, rec.ItemID)
	newDir := storage.ResolveDir(newYear, newUnit, rec.ItemID)
	newPath := storage.ResolvePath(newYear, newUnit, rec.ItemID, rec.FileName)

	if oldDir == newDir {
		// Same physical location; only the display name of the unit may
		// differ. Metadata still follows the request.
		if rec.Unit != newUnit || rec.Year != newYear {
			if err := r.repo.UpdateLocation(ctx, id, newYear, newUnit, newPath); err != nil {
				return nil, fmt.Errorf("update metadata: %w", err)
			}
			rec.Year, rec.Unit, rec.PhysicalPath = newYear, newUnit, newPath
		}
		return &ReassignResult{Relocated: false, Document: rec}, nil
	}

	if err := r.store.MoveTree(ctx, oldDir, newDir); err != nil {
		if errors.Is(err, storage.ErrDestinationExists) {
			// Fail closed: never silently merge directory contents.
			return nil, fmt.Errorf("%w: %s", ErrConflict, newDir)
		}
		// Metadata is untouched and still points at the old, valid tree.
		return nil, &RelocateError{Step: StepMove, OldPath: oldDir, NewPath: newDir, Err: err}
	}

	if err := r.repo.UpdateLocation(ctx, id, newYear, newUnit, newPath); err != nil {
		// The tree already moved; try to put it back so metadata keeps
		// pointing at a valid path. If even that fails the step detail
		// gives an operator both paths for manual repair.
		if mvErr := r.store.MoveTree(ctx, newDir, oldDir); mvErr != nil {
			return nil, &RelocateError{Step: StepMetadata, OldPath: oldDir, NewPath: newDir,
				Err: fmt.Errorf("%v; move back failed: %v", err, mvErr)}
		}
		return nil, &RelocateError{Step: StepMetadata, OldPath: oldDir, NewPath: newDir, Err: err}
	}

	result := &ReassignResult{Relocated: true}
	if err := r.mirror.UpdateLocation(ctx, id, newYear, newUnit, newPath); err != nil {
		result.Warnings = append(result.Warnings, mirrorWarning("update_location", id, err))
	}

	rec.Year, rec.Unit, rec.PhysicalPath = newYear, newUnit, newPath
	result.Document = rec
	return result, nil
}
