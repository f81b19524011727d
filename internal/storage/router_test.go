package storage

import (
	"testing"
	"time"

	"github.com/jittakal/ringstore/pkg/record"
)

func TestDefaultRouter_Route(t *testing.T) {
	ts := time.Date(2024, 3, 15, 23, 59, 0, 0, time.UTC).Unix()
	stream := record.StreamID{Topic: "file-access", Partition: 4}

	tests := []struct {
		name   string
		router *DefaultRouter
		want   string
	}{
		{
			name:   "s3 with base path",
			router: NewRouter("s3", "bucket", "/raw/"),
			want:   "s3://bucket/raw/file-access/file_access/dt=2024-03-15/pid=4/",
		},
		{
			name:   "gcs without base path",
			router: NewRouter("gs", "bucket", ""),
			want:   "gs://bucket/file-access/file_access/dt=2024-03-15/pid=4/",
		},
		{
			name:   "file backend",
			router: NewRouter("file", "", ""),
			want:   "file://file-access/file_access/dt=2024-03-15/pid=4/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.router.Route(stream, "file_access", ts); got != tt.want {
				t.Errorf("Route() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewRouterFor(t *testing.T) {
	tests := []struct {
		cfg  BackendConfig
		want string
	}{
		{BackendConfig{Backend: "s3", BasePath: "objects", S3: S3Config{Bucket: "b"}}, "s3://b/objects/"},
		{BackendConfig{Backend: "azure", Azure: AzureConfig{ContainerName: "c"}}, "wasbs://c/"},
		{BackendConfig{Backend: "gcs", GCS: GCSConfig{Bucket: "g"}}, "gs://g/"},
		{BackendConfig{Backend: "file", BasePath: "ignored"}, "file://"},
	}

	stream := record.StreamID{Topic: "t", Partition: 0}
	for _, tt := range tests {
		t.Run(tt.cfg.Backend, func(t *testing.T) {
			got := NewRouterFor(tt.cfg).Route(stream, "sample", 0)
			want := tt.want + "t/sample/dt=1970-01-01/pid=0/"
			if got != want {
				t.Errorf("Route() = %v, want %v", got, want)
			}
		})
	}
}

func TestCompositePolicy_ShouldRotate(t *testing.T) {
	old := time.Now().Add(-2 * time.Minute)

	tests := []struct {
		name   string
		config PolicyConfig
		stats  record.FileStats
		want   bool
	}{
		{
			name:   "empty never rotates",
			config: PolicyConfig{MaxRecordsPerFile: 1},
			stats:  record.FileStats{},
			want:   false,
		},
		{
			name:   "count reached",
			config: PolicyConfig{MaxRecordsPerFile: 10},
			stats:  record.FileStats{RecordCount: 10},
			want:   true,
		},
		{
			name:   "size reached",
			config: PolicyConfig{MaxFileSizeMB: 1},
			stats:  record.FileStats{RecordCount: 1, SizeBytes: 1024 * 1024},
			want:   true,
		},
		{
			name:   "age reached",
			config: PolicyConfig{MaxDurationSeconds: 60},
			stats:  record.FileStats{RecordCount: 1, FirstWriteTime: old},
			want:   true,
		},
		{
			name:   "below all limits",
			config: PolicyConfig{MaxFileSizeMB: 1, MaxRecordsPerFile: 10, MaxDurationSeconds: 600},
			stats:  record.FileStats{RecordCount: 5, SizeBytes: 100, FirstWriteTime: old},
			want:   false,
		},
		{
			name:   "size strategy ignores count",
			config: PolicyConfig{MaxFileSizeMB: 1, MaxRecordsPerFile: 10, Strategy: "size"},
			stats:  record.FileStats{RecordCount: 50, SizeBytes: 100},
			want:   false,
		},
		{
			name:   "count strategy ignores age",
			config: PolicyConfig{MaxRecordsPerFile: 10, MaxDurationSeconds: 60, Strategy: "count"},
			stats:  record.FileStats{RecordCount: 5, FirstWriteTime: old},
			want:   false,
		},
		{
			name:   "time strategy",
			config: PolicyConfig{MaxRecordsPerFile: 1, MaxDurationSeconds: 60, Strategy: "time"},
			stats:  record.FileStats{RecordCount: 5, FirstWriteTime: old},
			want:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewPolicy(tt.config).ShouldRotate(tt.stats); got != tt.want {
				t.Errorf("ShouldRotate() = %v, want %v", got, tt.want)
			}
		})
	}
}
