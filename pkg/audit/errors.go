package audit

import (
	"errors"
	"fmt"

	"github.com/user/secaudit/pkg/lifecycle"
)

var (
	// ErrInvalidState is matched by StateError
	ErrInvalidState = errors.New("scan is not in a runnable state")
	// ErrScanFailed wraps any failure after a run started
	ErrScanFailed = errors.New("scan failed")
	// ErrJustificationRequired is returned when lowering a severity without a reason
	ErrJustificationRequired = errors.New("justification is required to lower a finding's severity")
	// ErrForbidden is returned when an actor may not operate on a scan
	ErrForbidden = errors.New("forbidden")
)

// StateError reports a RunScan attempt from a state that does not allow it
type StateError struct {
	ScanID string
	Status lifecycle.Status
}

func (e *StateError) Error() string {
	return fmt.Sprintf("scan %s cannot be run from status %s", e.ScanID, e.Status)
}

func (e *StateError) Is(target error) bool { return target == ErrInvalidState }

// RollbackError means a run failed and the scan could not be reset to PLANNED.
// The scan is left IN_PROGRESS and needs an administrator.
type RollbackError struct {
	ScanID   string
	Cause    error
	Rollback error
}

func (e *RollbackError) Error() string {
	return fmt.Sprintf("scan %s failed (%v) and could not be reset to %s: %v", e.ScanID, e.Cause, lifecycle.Planned, e.Rollback)
}

func (e *RollbackError) Unwrap() []error { return []error{ErrScanFailed, e.Cause} }
