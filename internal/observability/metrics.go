package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jittakal/ringstore/pkg/ring"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Ring metrics, labelled by ring name.
	RingPendingNodes *prometheus.GaugeVec
	RingDraining     *prometheus.GaugeVec
	RingFrozen       *prometheus.GaugeVec
	RingLaps         *prometheus.GaugeVec

	// Writer side
	MessagesConsumed *prometheus.CounterVec
	InvalidMessages  *prometheus.CounterVec
	ObjectsPushed    *prometheus.CounterVec
	ObjectsDropped   *prometheus.CounterVec
	ShortWrites      *prometheus.CounterVec
	PushRetries      *prometheus.CounterVec

	// Reader side
	ObjectsPulled   *prometheus.CounterVec
	FinalObjects    *prometheus.CounterVec
	RecordsBuffered *prometheus.GaugeVec
	FlushDuration   *prometheus.HistogramVec

	// Kafka metrics
	OffsetCommits      *prometheus.CounterVec
	CommitLatency      *prometheus.HistogramVec
	Rebalances         *prometheus.CounterVec
	RebalanceDuration  *prometheus.HistogramVec
	PartitionsAssigned *prometheus.GaugeVec
	DLQPublished       *prometheus.CounterVec

	// Storage metrics
	FilesWritten         *prometheus.CounterVec
	StorageWriteDuration *prometheus.HistogramVec
	FileSize             *prometheus.HistogramVec
	StorageErrors        *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)
	stream := []string{"topic", "partition"}

	return &Metrics{
		RingPendingNodes: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ring_pending_nodes",
				Help: "Nodes holding objects not yet pulled",
			},
			[]string{"ring"},
		),
		RingDraining: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ring_draining",
				Help: "1 once the ring has been closed for writes",
			},
			[]string{"ring"},
		),
		RingFrozen: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ring_frozen",
				Help: "1 while a saturated ring refuses pushes",
			},
			[]string{"ring"},
		),
		RingLaps: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ring_laps",
				Help: "Times the writer caught up with the reader",
			},
			[]string{"ring"},
		),

		MessagesConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "source_messages_consumed_total",
				Help: "Total number of messages taken from the source",
			},
			stream,
		),
		InvalidMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "source_messages_invalid_total",
				Help: "Total number of messages rejected by payload validation",
			},
			stream,
		),
		ObjectsPushed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ring_objects_pushed_total",
				Help: "Total number of objects written into rings",
			},
			stream,
		),
		ObjectsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ring_objects_dropped_total",
				Help: "Total number of objects the rings could not take",
			},
			[]string{"topic", "partition", "reason"},
		),
		ShortWrites: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ring_short_writes_total",
				Help: "Total number of pushes that stored fewer objects than requested",
			},
			stream,
		),
		PushRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ring_push_retries_total",
				Help: "Total number of push retries after a short write",
			},
			stream,
		),

		ObjectsPulled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ring_objects_pulled_total",
				Help: "Total number of objects read out of rings",
			},
			stream,
		),
		FinalObjects: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ring_final_objects_total",
				Help: "Total number of objects recovered from in-progress nodes at drain",
			},
			stream,
		),
		RecordsBuffered: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "flush_records_buffered",
				Help: "Records pulled but not yet written to storage",
			},
			stream,
		),
		FlushDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "flush_duration_seconds",
				Help:    "Duration of one flush pass over all rings",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"phase"},
		),

		OffsetCommits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_offset_commit_total",
				Help: "Total number of offset commits",
			},
			[]string{"topic", "partition", "status"},
		),
		CommitLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kafka_commit_latency_seconds",
				Help:    "Latency of offset commit operations",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			stream,
		),
		Rebalances: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_rebalance_total",
				Help: "Total number of consumer group rebalances",
			},
			[]string{"group"},
		),
		RebalanceDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kafka_rebalance_duration_seconds",
				Help:    "Duration of consumer group sessions",
				Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
			},
			[]string{"group"},
		),
		PartitionsAssigned: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "kafka_partitions_assigned",
				Help: "Number of partitions currently assigned to this consumer",
			},
			[]string{"topic"},
		),
		DLQPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dlq_messages_published_total",
				Help: "Total number of dead letter messages",
			},
			[]string{"topic", "status"},
		),

		FilesWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "files_written_total",
				Help: "Total number of files written to storage",
			},
			[]string{"topic", "partition", "format", "status"},
		),
		StorageWriteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "storage_write_duration_seconds",
				Help:    "Duration of complete storage write operations including encoding",
				Buckets: prometheus.DefBuckets,
			},
			stream,
		),
		FileSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "file_size_bytes",
				Help:    "Size of files written to storage",
				Buckets: prometheus.ExponentialBuckets(4096, 4, 10), // 4KB to 1GB
			},
			[]string{"topic", "partition", "format"},
		),
		StorageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "storage_errors_total",
				Help: "Total number of storage errors",
			},
			[]string{"backend", "error_type"},
		),
	}
}

func partitionLabel(partition int32) string {
	return strconv.FormatInt(int64(partition), 10)
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// ObserveRing publishes the gauges derived from a ring snapshot.
func (m *Metrics) ObserveRing(stats ring.Stats) {
	m.RingPendingNodes.WithLabelValues(stats.Name).Set(float64(stats.PendingNodes))
	m.RingDraining.WithLabelValues(stats.Name).Set(boolGauge(stats.State == ring.StateDraining))
	m.RingFrozen.WithLabelValues(stats.Name).Set(boolGauge(stats.Frozen))
	m.RingLaps.WithLabelValues(stats.Name).Set(float64(stats.Laps))
}

// IncMessagesConsumed increments messages consumed counter.
func (m *Metrics) IncMessagesConsumed(topic string, partition int32) {
	m.MessagesConsumed.WithLabelValues(topic, partitionLabel(partition)).Inc()
}

// IncInvalidMessages increments the rejected messages counter.
func (m *Metrics) IncInvalidMessages(topic string, partition int32) {
	m.InvalidMessages.WithLabelValues(topic, partitionLabel(partition)).Inc()
}

// AddObjectsPushed adds to the pushed objects counter.
func (m *Metrics) AddObjectsPushed(topic string, partition int32, n int) {
	m.ObjectsPushed.WithLabelValues(topic, partitionLabel(partition)).Add(float64(n))
}

// AddObjectsDropped adds to the dropped objects counter.
func (m *Metrics) AddObjectsDropped(topic string, partition int32, reason string, n int) {
	m.ObjectsDropped.WithLabelValues(topic, partitionLabel(partition), reason).Add(float64(n))
}

// IncShortWrites increments the short write counter.
func (m *Metrics) IncShortWrites(topic string, partition int32) {
	m.ShortWrites.WithLabelValues(topic, partitionLabel(partition)).Inc()
}

// IncPushRetries increments the push retry counter.
func (m *Metrics) IncPushRetries(topic string, partition int32) {
	m.PushRetries.WithLabelValues(topic, partitionLabel(partition)).Inc()
}

// AddObjectsPulled adds to the pulled objects counter.
func (m *Metrics) AddObjectsPulled(topic string, partition int32, n int) {
	m.ObjectsPulled.WithLabelValues(topic, partitionLabel(partition)).Add(float64(n))
}

// AddFinalObjects adds to the final objects counter.
func (m *Metrics) AddFinalObjects(topic string, partition int32, n int) {
	m.FinalObjects.WithLabelValues(topic, partitionLabel(partition)).Add(float64(n))
}

// SetRecordsBuffered sets the buffered records gauge.
func (m *Metrics) SetRecordsBuffered(topic string, partition int32, count int) {
	m.RecordsBuffered.WithLabelValues(topic, partitionLabel(partition)).Set(float64(count))
}

// ObserveFlushDuration observes the duration of a flush pass.
func (m *Metrics) ObserveFlushDuration(phase string, duration float64) {
	m.FlushDuration.WithLabelValues(phase).Observe(duration)
}

// IncRebalances increments rebalances counter.
func (m *Metrics) IncRebalances(groupID string) {
	m.Rebalances.WithLabelValues(groupID).Inc()
}

// IncOffsetCommits increments offset commits counter.
func (m *Metrics) IncOffsetCommits(topic string, partition int32, status string) {
	m.OffsetCommits.WithLabelValues(topic, partitionLabel(partition), status).Inc()
}

// ObserveRebalanceDuration observes rebalance duration.
func (m *Metrics) ObserveRebalanceDuration(groupID string, duration float64) {
	m.RebalanceDuration.WithLabelValues(groupID).Observe(duration)
}

// ObserveCommitLatency observes commit latency.
func (m *Metrics) ObserveCommitLatency(topic string, partition int32, duration float64) {
	m.CommitLatency.WithLabelValues(topic, partitionLabel(partition)).Observe(duration)
}

// SetPartitionsAssigned sets partitions assigned gauge.
func (m *Metrics) SetPartitionsAssigned(topic string, count float64) {
	m.PartitionsAssigned.WithLabelValues(topic).Set(count)
}

// IncDLQPublished increments the dead letter counter.
func (m *Metrics) IncDLQPublished(topic string, status string) {
	m.DLQPublished.WithLabelValues(topic, status).Inc()
}

// IncFilesWritten increments files written counter.
func (m *Metrics) IncFilesWritten(topic string, partition int32, format string, status string) {
	m.FilesWritten.WithLabelValues(topic, partitionLabel(partition), format, status).Inc()
}

// ObserveFileSize observes file size.
func (m *Metrics) ObserveFileSize(topic string, partition int32, format string, size float64) {
	m.FileSize.WithLabelValues(topic, partitionLabel(partition), format).Observe(size)
}

// ObserveStorageWriteDuration observes storage write duration.
func (m *Metrics) ObserveStorageWriteDuration(topic string, partition int32, duration float64) {
	m.StorageWriteDuration.WithLabelValues(topic, partitionLabel(partition)).Observe(duration)
}

// IncStorageErrors increments storage errors counter.
func (m *Metrics) IncStorageErrors(backend string, operation string) {
	m.StorageErrors.WithLabelValues(backend, operation).Inc()
}
