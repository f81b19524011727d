package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/jittakal/ringstore/pkg/record"
	"github.com/jittakal/ringstore/pkg/storage"
)

// Ensure implementations satisfy interfaces.
var (
	_ storage.Router         = (*DefaultRouter)(nil)
	_ storage.RotationPolicy = (*CompositePolicy)(nil)
)

// DefaultRouter implements Hive-style partitioning for storage paths.
type DefaultRouter struct {
	protocol string
	bucket   string
	basePath string
}

// NewRouter creates a new storage router.
func NewRouter(protocol, bucket, basePath string) *DefaultRouter {
	return &DefaultRouter{
		protocol: protocol,
		bucket:   bucket,
		basePath: strings.Trim(basePath, "/"),
	}
}

// Route returns the storage path for a stream's objects at the given timestamp.
// Format: protocol://bucket/basePath/topic/layout/dt=YYYY-MM-DD/pid=N/
func (r *DefaultRouter) Route(stream record.StreamID, layout string, timestamp int64) string {
	date := time.Unix(timestamp, 0).UTC().Format("2006-01-02")

	segments := make([]string, 0, 6)
	if r.bucket != "" {
		segments = append(segments, r.bucket)
	}
	if r.basePath != "" {
		segments = append(segments, r.basePath)
	}
	segments = append(segments,
		stream.Topic,
		layout,
		"dt="+date,
		fmt.Sprintf("pid=%d", stream.Partition),
	)

	return fmt.Sprintf("%s://%s/", r.protocol, strings.Join(segments, "/"))
}

// NewPolicy creates a new rotation policy (alias for NewCompositePolicy).
func NewPolicy(config PolicyConfig) *CompositePolicy {
	return NewCompositePolicy(config)
}

// RotationStrategy determines when to rotate files.
type RotationStrategy string

const (
	StrategyComposite RotationStrategy = "composite"
	StrategySizeOnly  RotationStrategy = "size"
	StrategyTimeOnly  RotationStrategy = "time"
	StrategyCount     RotationStrategy = "count"
)

// PolicyConfig configures rotation behavior.
type PolicyConfig struct {
	MaxFileSizeMB      int64
	MaxRecordsPerFile  int
	MaxDurationSeconds int
	Strategy           string
}

// CompositePolicy rotates based on multiple criteria. The strategy selects
// which of them apply; composite applies all.
type CompositePolicy struct {
	maxSizeBytes int64
	maxRecords   int
	maxDuration  time.Duration
}

// NewCompositePolicy creates a new composite rotation policy.
func NewCompositePolicy(config PolicyConfig) *CompositePolicy {
	p := &CompositePolicy{
		maxSizeBytes: config.MaxFileSizeMB * 1024 * 1024,
		maxRecords:   config.MaxRecordsPerFile,
		maxDuration:  time.Duration(config.MaxDurationSeconds) * time.Second,
	}

	switch RotationStrategy(config.Strategy) {
	case StrategySizeOnly:
		p.maxRecords, p.maxDuration = 0, 0
	case StrategyTimeOnly:
		p.maxSizeBytes, p.maxRecords = 0, 0
	case StrategyCount:
		p.maxSizeBytes, p.maxDuration = 0, 0
	}
	return p
}

// ShouldRotate returns true if any rotation condition is met.
func (p *CompositePolicy) ShouldRotate(stats record.FileStats) bool {
	if stats.RecordCount == 0 {
		return false
	}

	if p.maxSizeBytes > 0 && stats.SizeBytes >= p.maxSizeBytes {
		return true
	}

	if p.maxRecords > 0 && stats.RecordCount >= p.maxRecords {
		return true
	}

	if p.maxDuration > 0 && !stats.FirstWriteTime.IsZero() {
		if time.Since(stats.FirstWriteTime) >= p.maxDuration {
			return true
		}
	}

	return false
}
