package engine

import (
	"errors"
	"fmt"
)

// SyncError represents a failure detected while reconciling a batch.
//
// Merge conflicts are deliberately NOT errors: dual retention is a valid
// terminal outcome of the merge engine, recorded in the report and the
// audit trail. SyncError covers the genuinely failing paths:
//   - Extraction: the collaborator delivered a malformed batch. Surfaced,
//     never retried by the engine itself.
//   - Store commit: a transient storage fault. The owning pipeline step
//     retries these per its retry policy.
type SyncError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// MachineID identifies the affected batch source, when known.
	MachineID string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes sync errors.
type ErrorCode string

const (
	// ErrCodeExtraction marks a collaborator-fault batch (contract
	// violation, unreadable payload).
	ErrCodeExtraction ErrorCode = "EXTRACTION"

	// ErrCodeStoreCommit marks a transient canonical-store failure.
	ErrCodeStoreCommit ErrorCode = "STORE_COMMIT"
)

func (e *SyncError) Error() string {
	if e.MachineID != "" {
		return fmt.Sprintf("%s: %s (machine=%s)", e.Code, e.Message, e.MachineID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// NewExtractionError wraps a batch contract violation.
func NewExtractionError(machineID string, err error) *SyncError {
	return &SyncError{
		Code:      ErrCodeExtraction,
		Message:   "batch violates extraction contract",
		MachineID: machineID,
		Err:       err,
	}
}

// NewStoreCommitError wraps a canonical-store commit failure.
func NewStoreCommitError(machineID string, err error) *SyncError {
	return &SyncError{
		Code:      ErrCodeStoreCommit,
		Message:   "canonical store commit failed",
		MachineID: machineID,
		Err:       err,
	}
}

// IsExtractionError reports whether err is a collaborator-fault batch
// error. Uses errors.As to handle wrapped errors.
func IsExtractionError(err error) bool {
	var se *SyncError
	return errors.As(err, &se) && se.Code == ErrCodeExtraction
}

// IsStoreCommitError reports whether err is a transient store failure
// worth retrying.
func IsStoreCommitError(err error) bool {
	var se *SyncError
	return errors.As(err, &se) && se.Code == ErrCodeStoreCommit
}
