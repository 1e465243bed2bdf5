package model

// RowType classifies one line of a yearly assessment result table.
type RowType string

const (
	RowHeader    RowType = "header"
	RowIndicator RowType = "indicator"
	RowSubtotal  RowType = "subtotal"
	RowTotal     RowType = "total"
)

// rowTypePriority orders row types inside one section: headers first,
// then indicators, then the section subtotal. Totals sort last within a
// year regardless of section (see AssessmentRow.SortSection).
var rowTypePriority = map[RowType]int{
	RowHeader:    0,
	RowIndicator: 1,
	RowSubtotal:  2,
	RowTotal:     3,
}

// Priority returns the in-section sort rank of the row type.
// Unknown types rank as indicators.
func (t RowType) Priority() int {
	if p, ok := rowTypePriority[t]; ok {
		return p
	}
	return rowTypePriority[RowIndicator]
}

// sentinelSection forces total rows after every real section of a year.
const sentinelSection = "ZZZZZ"

// AssessmentRow is one line of a yearly result table. Rows are unique per
// year by the composite key (Section, ItemNumber, Type).
type AssessmentRow struct {
	Year        int     `json:"year"`
	Section     string  `json:"section"`
	ItemNumber  int     `json:"item_number"`
	Type        RowType `json:"type"`
	Description string  `json:"description"`
	Weight      float64 `json:"weight"`
	Score       float64 `json:"score"`
	Achievement float64 `json:"achievement"`
	Explanation string  `json:"explanation"`
	Assessor    string  `json:"assessor,omitempty"`
}

// Key returns the composite natural key within a year partition.
func (r AssessmentRow) Key() AssessmentKey {
	return AssessmentKey{Year: r.Year, Section: r.Section, ItemNumber: r.ItemNumber, Type: r.Type}
}

// SortSection is the section value used for ordering. Total rows
// substitute a sentinel maximal section so they land after every section
// of their year.
func (r AssessmentRow) SortSection() string {
	if r.Type == RowTotal {
		return sentinelSection
	}
	return r.Section
}

// Less implements the canonical iteration order:
// (year asc, section asc, type priority asc, item number asc).
func (r AssessmentRow) Less(other AssessmentRow) bool {
	if r.Year != other.Year {
		return r.Year < other.Year
	}
	if rs, os := r.SortSection(), other.SortSection(); rs != os {
		return rs < os
	}
	if rp, op := r.Type.Priority(), other.Type.Priority(); rp != op {
		return rp < op
	}
	return r.ItemNumber < other.ItemNumber
}

// AssessmentKey identifies one row of the result table.
type AssessmentKey struct {
	Year       int
	Section    string
	ItemNumber int
	Type       RowType
}
