package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jittakal/ringstore/pkg/record"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrUnalignedLength", ErrUnalignedLength},
		{"ErrWritesClosed", ErrWritesClosed},
		{"ErrNotClosed", ErrNotClosed},
		{"ErrInvalidGeometry", ErrInvalidGeometry},
		{"ErrInvalidPolicy", ErrInvalidPolicy},
		{"ErrAllocation", ErrAllocation},
		{"ErrRingFrozen", ErrRingFrozen},
		{"ErrRingClosed", ErrRingClosed},
		{"ErrConsumerClosed", ErrConsumerClosed},
		{"ErrInvalidPayload", ErrInvalidPayload},
		{"ErrWriterClosed", ErrWriterClosed},
		{"ErrConnectionLost", ErrConnectionLost},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Errorf("%s should not be nil", tt.name)
			}
			if tt.err.Error() == "" {
				t.Errorf("%s should have an error message", tt.name)
			}
		})
	}
}

func TestTransferError(t *testing.T) {
	transferErr := &TransferError{
		Stream:    record.StreamID{Topic: "samples", Partition: 2},
		Operation: "push",
		Requested: 64,
		Done:      32,
		Err:       ErrUnalignedLength,
	}

	if transferErr.Error() == "" {
		t.Error("TransferError should have an error message")
	}

	if !errors.Is(transferErr, ErrUnalignedLength) {
		t.Error("TransferError should wrap the ring error")
	}
}

func TestValidationError(t *testing.T) {
	err := &ValidationError{
		Stream: record.StreamID{Topic: "samples", Partition: 0},
		Offset: 7,
		Reason: "payload is 31 bytes, want multiple of 32",
	}

	if err.Error() == "" {
		t.Error("ValidationError should have an error message")
	}

	if !errors.Is(err, ErrInvalidPayload) {
		t.Error("ValidationError should match ErrInvalidPayload")
	}
}

func TestStorageError(t *testing.T) {
	baseErr := errors.New("disk full")
	storageErr := &StorageError{
		Operation: "write",
		Path:      "/data/samples-0.raw",
		Err:       baseErr,
	}

	if storageErr.Error() == "" {
		t.Error("StorageError should have an error message")
	}

	if !errors.Is(storageErr, baseErr) {
		t.Error("StorageError should wrap base error")
	}
}

func TestCommitError(t *testing.T) {
	baseErr := errors.New("broker unavailable")
	commitErr := &CommitError{
		Stream: record.StreamID{Topic: "samples", Partition: 1},
		Offset: 99,
		Err:    baseErr,
	}

	if !errors.Is(commitErr, baseErr) {
		t.Error("CommitError should wrap base error")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"frozen ring", ErrRingFrozen, true},
		{"wrapped frozen ring", fmt.Errorf("push: %w", ErrRingFrozen), true},
		{"connection lost", ErrConnectionLost, true},
		{"writes closed", ErrWritesClosed, false},
		{"unaligned", ErrUnalignedLength, false},
		{"storage write", &StorageError{Operation: "write", Err: errors.New("x")}, true},
		{"storage upload", &StorageError{Operation: "upload", Err: errors.New("x")}, true},
		{"storage close", &StorageError{Operation: "close", Err: errors.New("x")}, false},
		{"transfer frozen", &TransferError{Operation: "push", Err: ErrRingFrozen}, true},
		{"transfer draining", &TransferError{Operation: "push", Err: ErrWritesClosed}, false},
		{"validation", &ValidationError{Reason: "bad"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.want)
			}
		})
	}
}
