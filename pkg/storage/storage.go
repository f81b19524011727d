// Package storage defines interfaces for record storage operations.
//
// This package provides abstractions for writing records pulled from rings
// to various storage backends (S3, GCS, Azure Blob, local filesystem).
package storage

import (
	"context"

	"github.com/jittakal/ringstore/pkg/record"
)

// Writer writes records to storage.
type Writer interface {
	// Write writes records to storage at the specified path.
	// Returns the number of bytes written.
	Write(ctx context.Context, records []record.Record, path string, format record.FileFormat) (int64, error)

	// Close closes the writer and releases resources.
	Close() error
}

// Router determines storage paths for records based on partitioning strategy.
type Router interface {
	// Route returns the storage directory for a stream's records of the
	// given layout at a Unix timestamp (seconds).
	Route(stream record.StreamID, layout string, timestamp int64) string
}

// RotationPolicy determines when to rotate (flush) accumulated records to storage.
type RotationPolicy interface {
	// ShouldRotate returns true if the records should be written based on stats.
	ShouldRotate(stats record.FileStats) bool
}
