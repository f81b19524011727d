// Package errors defines application-specific error types and sentinel errors.
package errors

import (
	"errors"
	"fmt"

	"github.com/jittakal/ringstore/pkg/record"
)

// Sentinel errors for ring operations.
var (
	ErrUnalignedLength = errors.New("length is not a multiple of the object size")
	ErrWritesClosed    = errors.New("ring is closed for writes")
	ErrNotClosed       = errors.New("ring is not draining yet")
	ErrInvalidGeometry = errors.New("invalid ring geometry")
	ErrInvalidPolicy   = errors.New("invalid lap policy")
	ErrAllocation      = errors.New("cannot allocate ring storage")
	ErrRingFrozen      = errors.New("ring is frozen until the reader catches up")
	ErrRingClosed      = errors.New("ring is closed")
)

// Sentinel errors for the service around the rings.
var (
	ErrConsumerClosed = errors.New("consumer is closed")
	ErrInvalidPayload = errors.New("invalid payload")
	ErrWriterClosed   = errors.New("storage writer is closed")
	ErrConnectionLost = errors.New("connection lost")
)

// TransferError represents a failed push or pull on a stream's ring.
type TransferError struct {
	Stream    record.StreamID
	Operation string
	Requested int
	Done      int
	Err       error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer error: stream=%s operation=%s requested=%d done=%d: %v",
		e.Stream, e.Operation, e.Requested, e.Done, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// ValidationError represents a payload validation failure.
type ValidationError struct {
	Stream record.StreamID
	Offset int64
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: stream=%s offset=%d: %s",
		e.Stream, e.Offset, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidPayload
}

// StorageError represents a storage operation failure.
type StorageError struct {
	Operation string
	Path      string
	Err       error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: operation=%s path=%s: %v",
		e.Operation, e.Path, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// CommitError represents an offset commit failure.
type CommitError struct {
	Stream record.StreamID
	Offset int64
	Err    error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit error: stream=%s offset=%d: %v",
		e.Stream, e.Offset, e.Err)
}

func (e *CommitError) Unwrap() error {
	return e.Err
}

// Retryable defines an interface for errors that can indicate if they are retryable.
type Retryable interface {
	error
	IsRetryable() bool
}

// IsRetryable checks if an error is retryable.
// It first checks if the error implements the Retryable interface,
// then falls back to checking specific error types and sentinel errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var retryable Retryable
	if errors.As(err, &retryable) {
		return retryable.IsRetryable()
	}

	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return storageErr.IsRetryable()
	}

	// A frozen ring thaws as soon as the reader pulls.
	if errors.Is(err, ErrRingFrozen) || errors.Is(err, ErrConnectionLost) {
		return true
	}

	return false
}

// IsRetryable determines if a StorageError is retryable based on the operation type.
func (e *StorageError) IsRetryable() bool {
	return e.Operation == "write" || e.Operation == "upload" || e.Operation == "create"
}

// IsRetryable determines if a TransferError is retryable.
func (e *TransferError) IsRetryable() bool {
	return IsRetryable(e.Err)
}
