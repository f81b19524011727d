// Package encoder implements file format encoders.
package encoder

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/linkedin/goavro/v2"

	"github.com/jittakal/ringstore/pkg/encoder"
	"github.com/jittakal/ringstore/pkg/record"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*AvroEncoder)(nil)

// AvroEncoder implements encoder.Encoder for Apache Avro binary format.
// Each row carries the stream, the sequence number, the decoded fields as
// JSON and the raw object bytes. Produces OCF (Object Container File) output.
type AvroEncoder struct {
	codec       *goavro.Codec
	compression string
	layouts     layoutCache
}

// NewAvroEncoder creates a new Avro encoder with specified compression.
func NewAvroEncoder(compression string) (*AvroEncoder, error) {
	codec, err := goavro.NewCodec(avroSchema())
	if err != nil {
		return nil, fmt.Errorf("failed to create avro codec: %w", err)
	}

	return &AvroEncoder{
		codec:       codec,
		compression: compression,
	}, nil
}

// avroSchema returns the Avro schema for stored objects.
func avroSchema() string {
	return `{
		"type": "record",
		"name": "RingObject",
		"namespace": "com.ringstore",
		"fields": [
			{"name": "topic", "type": "string"},
			{"name": "partition", "type": "int"},
			{"name": "sequence", "type": "long"},
			{"name": "layout", "type": "string"},
			{"name": "fields", "type": "string"},
			{"name": "payload", "type": "bytes"},
			{"name": "pulled_at", "type": ["null", "string"], "default": null}
		]
	}`
}

func (e *AvroEncoder) gzipped() bool {
	return e.compression == "gzip" || e.compression == "GZIP"
}

// Encode writes records to an Avro file.
func (e *AvroEncoder) Encode(filePath string, records []record.Record) (*record.FileStats, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	first := time.Now()
	if err := e.encodeTo(file, records); err != nil {
		return nil, err
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

// EncodeToBytes encodes records to bytes (useful for testing).
func (e *AvroEncoder) EncodeToBytes(records []record.Record) ([]byte, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	var buf bytes.Buffer
	if err := e.encodeTo(&buf, records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (e *AvroEncoder) encodeTo(w io.Writer, records []record.Record) error {
	var gzipWriter *gzip.Writer
	if e.gzipped() {
		gzipWriter = gzip.NewWriter(w)
		w = gzipWriter
	}

	ocfWriter, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:     w,
		Codec: e.codec,
	})
	if err != nil {
		return fmt.Errorf("failed to create OCF writer: %w", err)
	}

	for _, rec := range records {
		avroMap, err := e.convertToAvroMap(rec)
		if err != nil {
			return fmt.Errorf("failed to convert record: %w", err)
		}
		if err := ocfWriter.Append([]any{avroMap}); err != nil {
			return fmt.Errorf("failed to write record: %w", err)
		}
	}

	if gzipWriter != nil {
		if err := gzipWriter.Close(); err != nil {
			return fmt.Errorf("failed to close gzip writer: %w", err)
		}
	}
	return nil
}

// convertToAvroMap converts a Record to Avro map representation.
func (e *AvroEncoder) convertToAvroMap(rec record.Record) (map[string]any, error) {
	fields, err := e.layouts.fieldsJSON(rec)
	if err != nil {
		return nil, err
	}

	avroMap := map[string]any{
		"topic":     rec.Stream.Topic,
		"partition": rec.Stream.Partition,
		"sequence":  rec.Sequence,
		"layout":    rec.Layout,
		"fields":    fields,
		"payload":   rec.Payload,
		"pulled_at": nil,
	}
	if !rec.PulledAt.IsZero() {
		avroMap["pulled_at"] = goavro.Union("string", rec.PulledAt.Format(time.RFC3339Nano))
	}

	return avroMap, nil
}

// Format returns the file format.
func (e *AvroEncoder) Format() record.FileFormat {
	return record.FormatAvro
}

// FileExtension returns the file extension.
func (e *AvroEncoder) FileExtension() string {
	if e.gzipped() {
		return ".avro.gz"
	}
	return ".avro"
}
