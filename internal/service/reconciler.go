package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"gcgdocs/internal/mirror"
	"gcgdocs/internal/model"
	"gcgdocs/internal/repository"
	"gcgdocs/internal/storage"
)

// ReconcilePolicy controls what the reconciler does with orphaned
// metadata rows.
type ReconcilePolicy struct {
	// Purge enables removal of orphaned rows.
	Purge bool
	// PurgeGrace is how long a row must stay orphaned before a later scan
	// purges it. Zero purges on the scan after marking.
	PurgeGrace time.Duration
}

// Reconciler detects and repairs divergence between the metadata store,
// the mirror, and the physical file tree. Every scan is idempotent and
// takes no exclusive locks: it reads, then attempts compare-and-repair
// writes that re-check state immediately before anything destructive, so
// a concurrent legitimate write always wins.
type Reconciler struct {
	store  storage.FileStore
	repo   repository.DocumentRepository
	mirror mirror.Store
	policy ReconcilePolicy

	now func() time.Time
}

// NewReconciler constructs a Reconciler.
func NewReconciler(store storage.FileStore, repo repository.DocumentRepository, mir mirror.Store, policy ReconcilePolicy) *Reconciler {
	return &Reconciler{
		store:  store,
		repo:   repo,
		mirror: mir,
		policy: policy,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Run reconciles one year partition, or every known year when year is 0.
// Individual mismatches are repaired and counted, never raised: drift is
// expected steady-state noise, not a fatal condition.
func (r *Reconciler) Run(ctx context.Context, year int) (*model.RepairReport, error) {
	years := []int{year}
	if year == 0 {
		var err error
		years, err = r.allYears(ctx)
		if err != nil {
			return nil, err
		}
	}

	report := &model.RepairReport{}
	for _, y := range years {
		rep, err := r.reconcileYear(ctx, y)
		if err != nil {
			return nil, err
		}
		report.Add(rep)
	}

	if !report.Empty() {
		logEvent(map[string]any{
			"component":          "reconciler",
			"event":              "repairs_applied",
			"orphaned_found":     report.OrphanedFound,
			"orphaned_purged":    report.OrphanedPurged,
			"mirror_rows_pruned": report.MirrorRowsPruned,
			"mirror_rows_added":  report.MirrorRowsAdded,
		})
	}
	return report, nil
}

// allYears unions the years the metadata store knows with the years
// present in the mirror. The mirror can hold rows for a year whose last
// metadata record is gone; scanning metadata years alone would leave
// those ghost rows in place forever.
func (r *Reconciler) allYears(ctx context.Context) ([]int, error) {
	years, err := r.repo.Years(ctx)
	if err != nil {
		return nil, fmt.Errorf("list years: %w", err)
	}
	rows, err := r.mirror.Rows(ctx)
	if err != nil {
		return nil, fmt.Errorf("load mirror: %w", err)
	}
	seen := make(map[int]bool, len(years))
	for _, y := range years {
		seen[y] = true
	}
	for _, row := range rows {
		if !seen[row.Year] {
			seen[row.Year] = true
			years = append(years, row.Year)
		}
	}
	sort.Ints(years)
	return years, nil
}

func (r *Reconciler) reconcileYear(ctx context.Context, year int) (model.RepairReport, error) {
	var report model.RepairReport

	records, err := r.repo.FindAllForYear(ctx, year)
	if err != nil {
		return report, fmt.Errorf("load metadata for %d: %w", year, err)
	}

	if err := r.scanFileTree(ctx, records, &report); err != nil {
		return report, err
	}
	if err := r.scanMirror(ctx, year, &report); err != nil {
		return report, err
	}
	return report, nil
}

// scanFileTree verifies that every active record's physical path still
// holds a file, marking violations orphaned. Orphaned rows old enough
// under the purge policy are removed; rows whose file reappeared are
// repaired back to active.
func (r *Reconciler) scanFileTree(ctx context.Context, records []model.DocumentRecord, report *model.RepairReport) error {
	for _, rec := range records {
		switch rec.Status {
		case model.StatusActive:
			exists, err := r.store.Exists(ctx, rec.PhysicalPath)
			if err != nil {
				return fmt.Errorf("check %s: %w", rec.PhysicalPath, err)
			}
			if exists {
				continue
			}
			// Re-check the row right before marking: an upload or delete may
			// have raced the scan, and the transient mismatch is theirs to
			// resolve, not ours.
			cur, err := r.repo.FindByID(ctx, rec.ID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					continue
				}
				return err
			}
			if cur.Status != model.StatusActive || cur.PhysicalPath != rec.PhysicalPath {
				continue
			}
			if err := r.repo.UpdateStatus(ctx, rec.ID, model.StatusOrphaned, r.now()); err != nil {
				return fmt.Errorf("mark orphaned %s: %w", rec.ID, err)
			}
			report.OrphanedFound++

		case model.StatusOrphaned:
			exists, err := r.store.Exists(ctx, rec.PhysicalPath)
			if err != nil {
				return fmt.Errorf("check %s: %w", rec.PhysicalPath, err)
			}
			if exists {
				// File came back (manual restore); repair instead of purging.
				if err := r.repo.UpdateStatus(ctx, rec.ID, model.StatusActive, time.Time{}); err != nil {
					return fmt.Errorf("restore %s: %w", rec.ID, err)
				}
				continue
			}
			if !r.policy.Purge {
				continue
			}
			if r.now().Sub(rec.OrphanedAt) < r.policy.PurgeGrace {
				continue
			}
			if err := r.repo.Delete(ctx, rec.ID); err != nil && !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("purge %s: %w", rec.ID, err)
			}
			if err := r.mirror.Remove(ctx, rec.ID); err != nil {
				mirrorWarning("remove", rec.ID, err)
			}
			report.OrphanedPurged++
		}
	}
	return nil
}

// scanMirror rebuilds the mirror's year partition from the metadata
// store: rows for ids the store no longer knows are pruned, rows the
// mirror lost (a best-effort write that failed) are added, and stale
// rows are rewritten in place.
func (r *Reconciler) scanMirror(ctx context.Context, year int, report *model.RepairReport) error {
	mirrorRows, err := r.mirror.Rows(ctx)
	if err != nil {
		return fmt.Errorf("load mirror: %w", err)
	}

	// The metadata snapshot may have aged while the mirror loaded; fetch
	// the partition fresh so valid keys are as current as possible.
	records, err := r.repo.FindAllForYear(ctx, year)
	if err != nil {
		return fmt.Errorf("load metadata for %d: %w", year, err)
	}
	desired := make(map[string]model.DocumentRecord, len(records))
	for _, rec := range records {
		desired[rec.ID] = rec
	}

	var kept []model.DocumentRecord
	present := make(map[string]bool)
	pruned, stale := 0, 0
	for _, row := range mirrorRows {
		if row.Year != year {
			kept = append(kept, row)
			continue
		}
		want, ok := desired[row.ID]
		if !ok {
			// Re-check before dropping: the record may have been created
			// after the metadata snapshot was taken.
			if _, err := r.repo.FindByID(ctx, row.ID); err == nil {
				kept = append(kept, row)
				present[row.ID] = true
				continue
			} else if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			pruned++
			continue
		}
		present[row.ID] = true
		if !sameRow(row, want) {
			kept = append(kept, want)
			stale++
			continue
		}
		kept = append(kept, row)
	}

	added := 0
	for id, rec := range desired {
		if !present[id] {
			kept = append(kept, rec)
			added++
		}
	}

	if pruned+stale+added > 0 {
		if err := r.mirror.Replace(ctx, kept); err != nil {
			return fmt.Errorf("rewrite mirror: %w", err)
		}
	}
	report.MirrorRowsPruned += pruned
	report.MirrorRowsAdded += added + stale
	return nil
}

// sameRow compares the fields the mirror actually carries. Timestamps
// go through time.Equal so location differences between the database
// driver and the CSV round-trip do not read as drift, and OrphanedAt is
// skipped because the mirror never stores it.
func sameRow(a, b model.DocumentRecord) bool {
	return a.ID == b.ID &&
		a.Year == b.Year &&
		a.Unit == b.Unit &&
		a.ItemID == b.ItemID &&
		a.FileName == b.FileName &&
		a.FileSize == b.FileSize &&
		a.ContentType == b.ContentType &&
		a.PhysicalPath == b.PhysicalPath &&
		a.Status == b.Status &&
		a.UploadedAt.Equal(b.UploadedAt)
}
