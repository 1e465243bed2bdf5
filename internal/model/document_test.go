package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentRecord_Consistent(t *testing.T) {
	rec := DocumentRecord{PhysicalPath: "gcg-documents/2024/TI/3/a.pdf"}
	assert.True(t, rec.Consistent("gcg-documents/2024/TI/3/a.pdf"))
	assert.False(t, rec.Consistent("gcg-documents/2024/Lama/3/a.pdf"))
}

func TestRepairReport_AddAndEmpty(t *testing.T) {
	var total RepairReport
	assert.True(t, total.Empty())

	total.Add(RepairReport{OrphanedFound: 1, MirrorRowsAdded: 2})
	total.Add(RepairReport{OrphanedPurged: 1, MirrorRowsPruned: 3})

	assert.False(t, total.Empty())
	assert.Equal(t, RepairReport{
		OrphanedFound:    1,
		OrphanedPurged:   1,
		MirrorRowsPruned: 3,
		MirrorRowsAdded:  2,
	}, total)
}
