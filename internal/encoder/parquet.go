package encoder

import (
	"fmt"
	"os"
	"time"

	"github.com/jittakal/ringstore/pkg/encoder"
	"github.com/jittakal/ringstore/pkg/record"
	"github.com/parquet-go/parquet-go"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*ParquetEncoder)(nil)

// ObjectParquet is the Parquet schema for stored objects. Decoded fields are
// kept as a JSON string so every layout shares one schema.
type ObjectParquet struct {
	Topic     string     `parquet:"topic,dict"`
	Partition int32      `parquet:"partition"`
	Sequence  int64      `parquet:"sequence"`
	Layout    string     `parquet:"layout,dict"`
	Fields    string     `parquet:"fields"`
	Payload   []byte     `parquet:"payload"`
	PulledAt  *time.Time `parquet:"pulled_at,timestamp(microsecond),optional"`
}

// ParquetEncoder implements encoder.Encoder for Apache Parquet columnar format.
// Supports multiple compression codecs: SNAPPY (default), GZIP, LZ4, ZSTD.
type ParquetEncoder struct {
	compressionName string
	layouts         layoutCache
}

// NewParquetEncoder creates a new Parquet encoder with specified compression.
func NewParquetEncoder(compression string) *ParquetEncoder {
	return &ParquetEncoder{
		compressionName: compression,
	}
}

// compressionCodec converts string compression name to parquet WriterOption.
func compressionCodec(compression string) parquet.WriterOption {
	switch compression {
	case "snappy", "SNAPPY":
		return parquet.Compression(&parquet.Snappy)
	case "gzip", "GZIP":
		return parquet.Compression(&parquet.Gzip)
	case "lz4", "LZ4":
		return parquet.Compression(&parquet.Lz4Raw)
	case "zstd", "ZSTD":
		return parquet.Compression(&parquet.Zstd)
	case "uncompressed", "UNCOMPRESSED", "none", "NONE":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		return parquet.Compression(&parquet.Snappy)
	}
}

// Encode writes records to a Parquet file.
func (e *ParquetEncoder) Encode(filePath string, records []record.Record) (*record.FileStats, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	rows := make([]ObjectParquet, len(records))
	for i, rec := range records {
		row, err := e.convertToParquetRow(rec)
		if err != nil {
			return nil, fmt.Errorf("failed to convert record %d: %w", i, err)
		}
		rows[i] = row
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	first := time.Now()
	writer := parquet.NewGenericWriter[ObjectParquet](
		file,
		parquet.SchemaOf(new(ObjectParquet)),
		compressionCodec(e.compressionName),
		parquet.CreatedBy("ringstore", "1.0", "0"),
	)

	if _, err := writer.Write(rows); err != nil {
		writer.Close()
		file.Close()
		return nil, fmt.Errorf("failed to write records: %w", err)
	}

	if err := writer.Close(); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to close writer: %w", err)
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

func (e *ParquetEncoder) convertToParquetRow(rec record.Record) (ObjectParquet, error) {
	fields, err := e.layouts.fieldsJSON(rec)
	if err != nil {
		return ObjectParquet{}, err
	}

	row := ObjectParquet{
		Topic:     rec.Stream.Topic,
		Partition: rec.Stream.Partition,
		Sequence:  rec.Sequence,
		Layout:    rec.Layout,
		Fields:    fields,
		Payload:   rec.Payload,
	}
	if !rec.PulledAt.IsZero() {
		pulledAt := rec.PulledAt
		row.PulledAt = &pulledAt
	}
	return row, nil
}

// Format returns the file format.
func (e *ParquetEncoder) Format() record.FileFormat {
	return record.FormatParquet
}

// FileExtension returns the file extension.
func (e *ParquetEncoder) FileExtension() string {
	return ".parquet"
}
