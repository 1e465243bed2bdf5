package service

import (
	"errors"
	"fmt"
)

var (
	ErrIDRequired   = errors.New("id is required")
	ErrYearRequired = errors.New("year is required")
	ErrUnitRequired = errors.New("organizational unit is required")
	ErrItemRequired = errors.New("item id is required")
	ErrFileRequired = errors.New("file name is required")
	ErrReaderNil    = errors.New("reader is nil")
	// ErrInvalidRow signals an assessment row that cannot participate in
	// the composite key.
	ErrInvalidRow = errors.New("invalid assessment row")

	// ErrNotFound signals an unknown document id or partition.
	ErrNotFound = errors.New("document not found")
	// ErrConflict signals a destination collision: the relocation target
	// already holds files and the move fails closed.
	ErrConflict = errors.New("destination already holds files")
)

// RelocateStep names the phase of a relocation that failed, so the
// caller has enough detail for manual or reconciler-driven repair.
type RelocateStep string

const (
	// StepMove is the physical subtree move.
	StepMove RelocateStep = "move"
	// StepMetadata is the authoritative metadata update after the move.
	StepMetadata RelocateStep = "metadata"
)

// RelocateError carries which step of a relocation failed and both paths
// involved.
type RelocateError struct {
	Step    RelocateStep
	OldPath string
	NewPath string
	Err     error
}

func (e *RelocateError) Error() string {
	return fmt.Sprintf("relocate %s failed (%s -> %s): %v", e.Step, e.OldPath, e.NewPath, e.Err)
}

func (e *RelocateError) Unwrap() error { return e.Err }
