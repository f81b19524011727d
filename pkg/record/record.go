// Package record defines the fixed-size record types carried through rings
// and the metadata attached to them once they leave a ring.
package record

import (
	"fmt"
	"time"
)

// StreamID identifies one producer stream. Each stream owns exactly one ring.
type StreamID struct {
	Topic     string
	Partition int32
}

// String returns a string representation of the stream ID in the format "topic-partition".
func (s StreamID) String() string {
	return fmt.Sprintf("%s-%d", s.Topic, s.Partition)
}

// Record is a single object pulled from a ring, ready for storage.
type Record struct {
	Stream   StreamID
	Sequence int64
	Layout   string
	Payload  []byte
	PulledAt time.Time
}

// LayoutHeader is the optional message header naming the payload layout.
const LayoutHeader = "layout"

// Message is a unit delivered by a source. Its payload holds a whole number
// of packed objects of the stream's layout.
type Message struct {
	Stream     StreamID
	Offset     int64
	Key        []byte
	Payload    []byte
	Headers    map[string]string
	Timestamp  time.Time
	CommitFunc func() error
}

// FileStats contains statistics about buffered or written records.
type FileStats struct {
	RecordCount    int
	SizeBytes      int64
	FirstWriteTime time.Time
	LastWriteTime  time.Time
}

// FileFormat represents the storage file format.
type FileFormat string

const (
	FormatRaw     FileFormat = "raw"
	FormatCSV     FileFormat = "csv"
	FormatAvro    FileFormat = "avro"
	FormatParquet FileFormat = "parquet"
)

// Split slices packed objects into records. Sequence numbers start at firstSeq
// and increase by one per object. The payload of each record aliases data.
func Split(stream StreamID, layout Layout, data []byte, firstSeq int64, pulledAt time.Time) ([]Record, error) {
	size := layout.Size()
	if len(data)%size != 0 {
		return nil, fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrObjectSize, len(data), size)
	}

	records := make([]Record, 0, len(data)/size)
	for off := 0; off < len(data); off += size {
		records = append(records, Record{
			Stream:   stream,
			Sequence: firstSeq + int64(off/size),
			Layout:   layout.Name(),
			Payload:  data[off : off+size : off+size],
			PulledAt: pulledAt,
		})
	}
	return records, nil
}
