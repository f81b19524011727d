package storage

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jittakal/ringstore/pkg/record"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeMetrics records calls for assertions.
type fakeMetrics struct {
	mu     sync.Mutex
	files  int
	errors map[string]int
}

func (m *fakeMetrics) IncFilesWritten(topic string, partition int32, format string, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files++
}

func (m *fakeMetrics) ObserveFileSize(topic string, partition int32, format string, size float64) {}

func (m *fakeMetrics) ObserveStorageWriteDuration(topic string, partition int32, duration float64) {}

func (m *fakeMetrics) IncStorageErrors(backend string, operation string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errors == nil {
		m.errors = make(map[string]int)
	}
	m.errors[backend+"/"+operation]++
}

func testRecords(n int, firstSeq int64) []record.Record {
	stream := record.StreamID{Topic: "samples", Partition: 3}
	packed := make([]byte, n*record.SampleSize)
	for i := range n {
		record.Sample{ID: uint64(firstSeq) + uint64(i)}.Put(packed[i*record.SampleSize:])
	}
	records, err := record.Split(stream, record.SampleLayout, packed, firstSeq, time.Now())
	if err != nil {
		panic(err)
	}
	return records
}
