package encoder

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/jittakal/ringstore/pkg/encoder"
	"github.com/jittakal/ringstore/pkg/record"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*RawEncoder)(nil)

// RawEncoder writes record payloads back to back, exactly as they sat in
// the ring. The output can be read again in layout-size chunks.
type RawEncoder struct {
	compression string
}

// NewRawEncoder creates a raw encoder. Supported compressions are
// uncompressed, gzip and zstd.
func NewRawEncoder(compression string) (*RawEncoder, error) {
	switch compression {
	case "", "uncompressed", "none", "gzip", "zstd":
	default:
		return nil, fmt.Errorf("unsupported raw compression: %s", compression)
	}
	return &RawEncoder{compression: compression}, nil
}

// Encode writes records to a raw file.
func (e *RawEncoder) Encode(filePath string, records []record.Record) (*record.FileStats, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	buffered := bufio.NewWriter(file)
	var writer io.Writer = buffered
	var closer io.Closer

	switch e.compression {
	case "gzip":
		gz := gzip.NewWriter(buffered)
		writer, closer = gz, gz
	case "zstd":
		zw, err := zstd.NewWriter(buffered)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd writer: %w", err)
		}
		writer, closer = zw, zw
	}

	first := time.Now()
	for _, rec := range records {
		if _, err := writer.Write(rec.Payload); err != nil {
			return nil, fmt.Errorf("failed to write record %d: %w", rec.Sequence, err)
		}
	}

	if closer != nil {
		if err := closer.Close(); err != nil {
			return nil, fmt.Errorf("failed to close compressor: %w", err)
		}
	}
	if err := buffered.Flush(); err != nil {
		return nil, fmt.Errorf("failed to flush file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return &record.FileStats{
		RecordCount:    len(records),
		SizeBytes:      fileInfo.Size(),
		FirstWriteTime: first,
		LastWriteTime:  time.Now(),
	}, nil
}

// Format returns the file format.
func (e *RawEncoder) Format() record.FileFormat {
	return record.FormatRaw
}

// FileExtension returns the file extension.
func (e *RawEncoder) FileExtension() string {
	switch e.compression {
	case "gzip":
		return ".raw.gz"
	case "zstd":
		return ".raw.zst"
	default:
		return ".raw"
	}
}
