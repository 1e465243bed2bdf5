package model

// RepairReport summarizes one reconciliation pass. Mismatches are
// expected steady-state noise, so the reconciler counts them instead of
// failing on individual records.
type RepairReport struct {
	OrphanedFound    int `json:"orphaned_found"`
	OrphanedPurged   int `json:"orphaned_purged"`
	MirrorRowsPruned int `json:"mirror_rows_pruned"`
	MirrorRowsAdded  int `json:"mirror_rows_added"`
}

// Empty reports whether the pass found nothing to repair.
func (r RepairReport) Empty() bool {
	return r == RepairReport{}
}

// Add accumulates another report into this one.
func (r *RepairReport) Add(other RepairReport) {
	r.OrphanedFound += other.OrphanedFound
	r.OrphanedPurged += other.OrphanedPurged
	r.MirrorRowsPruned += other.MirrorRowsPruned
	r.MirrorRowsAdded += other.MirrorRowsAdded
}
