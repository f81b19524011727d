package encoder

import (
	"bytes"
	"compress/gzip"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"

	"github.com/jittakal/ringstore/pkg/record"
)

func TestFactory_CreateEncoder(t *testing.T) {
	tests := []struct {
		name    string
		format  record.FileFormat
		want    string
		wantErr bool
	}{
		{"raw", record.FormatRaw, ".raw", false},
		{"csv", record.FormatCSV, ".csv", false},
		{"parquet", record.FormatParquet, ".parquet", false},
		{"avro", record.FormatAvro, ".avro", false},
		{"unknown", record.FileFormat("json"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := NewFactory(tt.format, "uncompressed").CreateEncoder()
			if (err != nil) != tt.wantErr {
				t.Fatalf("CreateEncoder() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if enc.Format() != tt.format {
				t.Errorf("Format() = %v, want %v", enc.Format(), tt.format)
			}
			if enc.FileExtension() != tt.want {
				t.Errorf("FileExtension() = %v, want %v", enc.FileExtension(), tt.want)
			}
		})
	}
}

func TestSupportedFormats(t *testing.T) {
	for _, format := range SupportedFormats() {
		if len(SupportedCompressions(format)) == 0 {
			t.Errorf("no compressions for %s", format)
		}
		if _, err := NewFactory(format, DefaultCompression(format)).CreateEncoder(); err != nil {
			t.Errorf("default compression for %s rejected: %v", format, err)
		}
	}
}

func TestRawEncoder_RoundTrip(t *testing.T) {
	tests := []struct {
		compression string
		ext         string
		open        func(io.Reader) (io.Reader, error)
	}{
		{"uncompressed", ".raw", func(r io.Reader) (io.Reader, error) { return r, nil }},
		{"gzip", ".raw.gz", func(r io.Reader) (io.Reader, error) { return gzip.NewReader(r) }},
		{"zstd", ".raw.zst", func(r io.Reader) (io.Reader, error) {
			d, err := zstd.NewReader(r)
			if err != nil {
				return nil, err
			}
			return d.IOReadCloser(), nil
		}},
	}

	records := sampleRecords(5)
	var want []byte
	for _, rec := range records {
		want = append(want, rec.Payload...)
	}

	for _, tt := range tests {
		t.Run(tt.compression, func(t *testing.T) {
			enc, err := NewRawEncoder(tt.compression)
			if err != nil {
				t.Fatalf("NewRawEncoder() error = %v", err)
			}
			if enc.FileExtension() != tt.ext {
				t.Errorf("FileExtension() = %v, want %v", enc.FileExtension(), tt.ext)
			}

			path := filepath.Join(t.TempDir(), "objects"+tt.ext)
			stats, err := enc.Encode(path, records)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if stats.RecordCount != 5 {
				t.Errorf("RecordCount = %d, want 5", stats.RecordCount)
			}

			f, err := os.Open(path)
			if err != nil {
				t.Fatalf("Open() error = %v", err)
			}
			defer f.Close()
			r, err := tt.open(f)
			if err != nil {
				t.Fatalf("open reader: %v", err)
			}
			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if !bytes.Equal(got, want) {
				t.Error("raw file does not match pushed payloads")
			}
		})
	}
}

func TestRawEncoder_UnsupportedCompression(t *testing.T) {
	if _, err := NewRawEncoder("brotli"); err == nil {
		t.Error("expected error for unsupported compression")
	}
}

func TestCSVEncoder_Encode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "objects.csv")
	enc := NewCSVEncoder()

	if _, err := enc.Encode(path, sampleRecords(3)); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want header + 3", len(rows))
	}
	if got := rows[0]; got[0] != "sequence" || got[1] != "id" || got[2] != "padding" {
		t.Errorf("header = %v", got)
	}
	if got := rows[3]; got[0] != "2" || got[1] != "2" || got[2] != "pad" {
		t.Errorf("last row = %v", got)
	}
}

func TestCSVEncoder_MixedLayouts(t *testing.T) {
	records := sampleRecords(2)
	records[1].Layout = record.FileAccessLayout.Name()

	if _, err := NewCSVEncoder().Encode(filepath.Join(t.TempDir(), "mixed.csv"), records); err == nil {
		t.Error("expected error for mixed layouts")
	}
}

func TestEncoders_EmptyRecords(t *testing.T) {
	for _, format := range SupportedFormats() {
		enc, err := NewFactory(format, DefaultCompression(format)).CreateEncoder()
		if err != nil {
			t.Fatalf("CreateEncoder(%s) error = %v", format, err)
		}
		if _, err := enc.Encode(filepath.Join(t.TempDir(), "empty"), nil); err == nil {
			t.Errorf("%s: expected error for empty records", format)
		}
	}
}

func TestEncoders_UnknownLayout(t *testing.T) {
	records := sampleRecords(1)
	records[0].Layout = "unknown"

	for _, format := range []record.FileFormat{record.FormatCSV, record.FormatAvro, record.FormatParquet} {
		enc, err := NewFactory(format, "uncompressed").CreateEncoder()
		if err != nil {
			t.Fatalf("CreateEncoder(%s) error = %v", format, err)
		}
		if _, err := enc.Encode(filepath.Join(t.TempDir(), "unknown"), records); err == nil {
			t.Errorf("%s: expected error for unknown layout", format)
		}
	}
}
