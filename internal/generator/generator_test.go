package generator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	apperrors "github.com/jittakal/ringstore/internal/errors"
	"github.com/jittakal/ringstore/pkg/record"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestGenerator(t *testing.T, config Config) *Generator {
	t.Helper()
	g, err := New(config, discardLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return g
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"valid", Config{Layout: record.SampleLayout, Partitions: 1, ObjectsPerMessage: 1}, false},
		{"no layout", Config{Partitions: 1, ObjectsPerMessage: 1}, true},
		{"no partitions", Config{Layout: record.SampleLayout, ObjectsPerMessage: 1}, true},
		{"no objects", Config{Layout: record.SampleLayout, Partitions: 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.config.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGenerator_NextSample(t *testing.T) {
	g := newTestGenerator(t, Config{Layout: record.SampleLayout, Partitions: 1, ObjectsPerMessage: 3})
	stream := record.StreamID{Topic: "samples", Partition: 0}

	var ids []uint64
	for want := range int64(3) {
		msg := g.Next(stream)
		if msg.Offset != want {
			t.Errorf("Offset = %d, want %d", msg.Offset, want)
		}
		if len(msg.Payload) != 3*record.SampleSize {
			t.Fatalf("payload = %d bytes, want %d", len(msg.Payload), 3*record.SampleSize)
		}
		if msg.Headers[record.LayoutHeader] != "sample" {
			t.Errorf("Headers = %v", msg.Headers)
		}
		for off := 0; off < len(msg.Payload); off += record.SampleSize {
			s, err := record.ParseSample(msg.Payload[off : off+record.SampleSize])
			if err != nil {
				t.Fatalf("ParseSample() error = %v", err)
			}
			ids = append(ids, s.ID)
		}
	}

	for i, id := range ids {
		if id != uint64(i) {
			t.Fatalf("ids = %v, want 0..8", ids)
		}
	}

	other := g.Next(record.StreamID{Topic: "samples", Partition: 1})
	if s, _ := record.ParseSample(other.Payload[:record.SampleSize]); s.ID != 0 || other.Offset != 0 {
		t.Errorf("second stream should start at zero, got id %d offset %d", s.ID, other.Offset)
	}
}

func TestGenerator_NextFileAccess(t *testing.T) {
	g := newTestGenerator(t, Config{Layout: record.FileAccessLayout, Partitions: 1, ObjectsPerMessage: 5})
	msg := g.Next(record.StreamID{Topic: "file-access"})

	prev := int64(0)
	for off := 0; off < len(msg.Payload); off += record.FileAccessSize {
		a, err := record.ParseFileAccess(msg.Payload[off : off+record.FileAccessSize])
		if err != nil {
			t.Fatalf("ParseFileAccess() error = %v", err)
		}
		if a.Pos <= prev || a.Pos%512 != 0 {
			t.Errorf("Pos = %d after %d, want increasing multiples of 512", a.Pos, prev)
		}
		if a.Ino == 0 || a.Sec == 0 {
			t.Errorf("access = %+v", a)
		}
		prev = a.Pos
	}
}

func TestGenerator_NextMigration(t *testing.T) {
	g := newTestGenerator(t, Config{Layout: record.MigrationLayout, Partitions: 1, ObjectsPerMessage: 2})
	msg := g.Next(record.StreamID{Topic: "sched"})

	for off := 0; off < len(msg.Payload); off += record.MigrationSize {
		m, err := record.ParseMigration(msg.Payload[off : off+record.MigrationSize])
		if err != nil {
			t.Fatalf("ParseMigration() error = %v", err)
		}
		if m.PID < 1 || m.SrcCPU < 0 || m.SrcCPU > 63 || m.DstCPU < 0 || m.DstCPU > 63 {
			t.Errorf("migration = %+v", m)
		}
	}
}

func TestGenerator_ConsumeLimit(t *testing.T) {
	g := newTestGenerator(t, Config{
		Topics:            []string{"samples"},
		Layout:            record.SampleLayout,
		Partitions:        2,
		ObjectsPerMessage: 1,
		MaxMessages:       5,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	messages, _, err := g.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}

	perPartition := map[int32]int{}
	for msg := range messages {
		perPartition[msg.Stream.Partition]++
	}
	if perPartition[0] != 3 || perPartition[1] != 2 {
		t.Errorf("messages per partition = %v, want map[0:3 1:2]", perPartition)
	}
}

func TestGenerator_ConsumeRateLimited(t *testing.T) {
	g := newTestGenerator(t, Config{
		Topics:            []string{"samples"},
		Layout:            record.SampleLayout,
		Partitions:        1,
		ObjectsPerMessage: 1,
		MessagesPerSecond: 50,
		MaxMessages:       6,
	})

	start := time.Now()
	messages, _, err := g.Consume(context.Background())
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	count := 0
	for range messages {
		count++
	}
	if count != 6 {
		t.Fatalf("received %d messages, want 6", count)
	}
	// Five waits of 20ms after the first token.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("elapsed = %v, limiter not applied", elapsed)
	}
}

func TestGenerator_ConsumeCancel(t *testing.T) {
	g := newTestGenerator(t, Config{Topics: []string{"samples"}, Layout: record.SampleLayout, Partitions: 1, ObjectsPerMessage: 1})

	ctx, cancel := context.WithCancel(context.Background())
	messages, _, err := g.Consume(ctx)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	<-messages
	cancel()

	for range messages {
	}
}

func TestGenerator_Commit(t *testing.T) {
	g := newTestGenerator(t, Config{Layout: record.SampleLayout, Partitions: 1, ObjectsPerMessage: 1})
	stream := record.StreamID{Topic: "samples"}

	if got := g.Committed(stream); got != -1 {
		t.Errorf("Committed() = %d, want -1", got)
	}
	for _, offset := range []int64{3, 1, 7} {
		if err := g.Commit(context.Background(), stream, offset); err != nil {
			t.Fatalf("Commit() error = %v", err)
		}
	}
	if got := g.Committed(stream); got != 7 {
		t.Errorf("Committed() = %d, want 7", got)
	}
}

func TestGenerator_Closed(t *testing.T) {
	g := newTestGenerator(t, Config{Topics: []string{"samples"}, Layout: record.SampleLayout, Partitions: 1, ObjectsPerMessage: 1})
	if err := g.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if err := g.Subscribe(context.Background(), []string{"x"}); !errors.Is(err, apperrors.ErrConsumerClosed) {
		t.Errorf("Subscribe() error = %v", err)
	}
	if _, _, err := g.Consume(context.Background()); !errors.Is(err, apperrors.ErrConsumerClosed) {
		t.Errorf("Consume() error = %v", err)
	}
	if err := g.Commit(context.Background(), record.StreamID{}, 1); !errors.Is(err, apperrors.ErrConsumerClosed) {
		t.Errorf("Commit() error = %v", err)
	}
}

func TestGenerator_SubscribeWithoutTopics(t *testing.T) {
	g := newTestGenerator(t, Config{Layout: record.SampleLayout, Partitions: 1, ObjectsPerMessage: 1})
	if err := g.Subscribe(context.Background(), nil); err == nil {
		t.Error("expected error for empty topics")
	}
	if _, _, err := g.Consume(context.Background()); err == nil {
		t.Error("expected error when consuming without topics")
	}
}
