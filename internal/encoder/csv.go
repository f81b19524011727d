package encoder

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jittakal/ringstore/pkg/encoder"
	"github.com/jittakal/ringstore/pkg/record"
)

// Ensure implementation satisfies interface at compile time.
var _ encoder.Encoder = (*CSVEncoder)(nil)

// CSVEncoder writes one line per object using the layout's columns,
// preceded by a header line. All records in a file share one layout.
type CSVEncoder struct {
	layouts layoutCache
}

// NewCSVEncoder creates a CSV encoder.
func NewCSVEncoder() *CSVEncoder {
	return &CSVEncoder{}
}

// Encode writes records to a CSV file.
func (e *CSVEncoder) Encode(filePath string, records []record.Record) (*record.FileStats, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("no records to encode")
	}

	layout, err := e.layouts.lookup(records[0].Layout)
	if err != nil {
		return nil, err
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	first := time.Now()
	w := csv.NewWriter(file)
	header := append([]string{"sequence"}, layout.Columns()...)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}

	row := make([]string, len(header))
	for _, rec := range records {
		if rec.Layout != layout.Name() {
			return nil, fmt.Errorf("mixed layouts in one file: %s and %s", layout.Name(), rec.Layout)
		}
		values, err := layout.Decode(rec.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to decode record %d: %w", rec.Sequence, err)
		}
		row[0] = strconv.FormatInt(rec.Sequence, 10)
		for i, v := range values {
			row[i+1] = fmt.Sprint(v)
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write record %d: %w", rec.Sequence, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
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
func (e *CSVEncoder) Format() record.FileFormat {
	return record.FormatCSV
}

// FileExtension returns the file extension.
func (e *CSVEncoder) FileExtension() string {
	return ".csv"
}
