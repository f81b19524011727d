package record

import (
	"errors"
	"testing"
	"time"
)

func TestStreamID_String(t *testing.T) {
	tests := []struct {
		name   string
		stream StreamID
		want   string
	}{
		{
			name:   "basic stream",
			stream: StreamID{Topic: "samples", Partition: 0},
			want:   "samples-0",
		},
		{
			name:   "partition 10",
			stream: StreamID{Topic: "file-access", Partition: 10},
			want:   "file-access-10",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.stream.String(); got != tt.want {
				t.Errorf("StreamID.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSplit(t *testing.T) {
	stream := StreamID{Topic: "samples", Partition: 1}
	now := time.Now()

	data := make([]byte, 3*SampleSize)
	for i := range 3 {
		Sample{ID: uint64(10 + i)}.Put(data[i*SampleSize:])
	}

	records, err := Split(stream, SampleLayout, data, 100, now)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("len(records) = %d, want 3", len(records))
	}

	for i, rec := range records {
		if rec.Sequence != int64(100+i) {
			t.Errorf("records[%d].Sequence = %d, want %d", i, rec.Sequence, 100+i)
		}
		if rec.Layout != "sample" {
			t.Errorf("records[%d].Layout = %q, want sample", i, rec.Layout)
		}
		if rec.Stream != stream {
			t.Errorf("records[%d].Stream = %v, want %v", i, rec.Stream, stream)
		}
		s, err := ParseSample(rec.Payload)
		if err != nil {
			t.Fatalf("ParseSample() error = %v", err)
		}
		if s.ID != uint64(10+i) {
			t.Errorf("records[%d] id = %d, want %d", i, s.ID, 10+i)
		}
		if cap(rec.Payload) != SampleSize {
			t.Errorf("records[%d] payload cap = %d, want %d", i, cap(rec.Payload), SampleSize)
		}
	}
}

func TestSplit_Unaligned(t *testing.T) {
	_, err := Split(StreamID{}, SampleLayout, make([]byte, SampleSize+1), 0, time.Now())
	if !errors.Is(err, ErrObjectSize) {
		t.Errorf("Split() error = %v, want ErrObjectSize", err)
	}
}
