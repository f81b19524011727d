// Package encoder defines interfaces for encoding records to various file formats.
package encoder

import "github.com/jittakal/ringstore/pkg/record"

// Encoder encodes records to a specific file format.
type Encoder interface {
	// Encode writes records to a file and returns file statistics.
	Encode(filePath string, records []record.Record) (*record.FileStats, error)

	// Format returns the file format this encoder produces.
	Format() record.FileFormat

	// FileExtension returns the file extension (e.g., ".parquet", ".raw").
	FileExtension() string
}
