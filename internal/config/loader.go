// Package config loads the service configuration from YAML and environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/viper"

	"github.com/jittakal/ringstore/internal/config/dto"
	"github.com/jittakal/ringstore/pkg/record"
)

// Loader handles configuration loading and validation
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader. Every key can be overridden
// by an APP_ environment variable, e.g. APP_RING_NODE_COUNT.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load loads configuration from file and environment variables. A missing
// file is not an error; defaults and environment still apply.
func (l *Loader) Load(path string) (*dto.ApplicationConfig, error) {
	l.setDefaults()

	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	for _, key := range l.v.AllKeys() {
		value := l.v.GetString(key)
		if strings.Contains(value, "${") {
			l.v.Set(key, os.ExpandEnv(value))
		}
	}

	var config dto.ApplicationConfig
	if err := l.v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func (l *Loader) setDefaults() {
	l.v.SetDefault("application.name", "ringstore")
	l.v.SetDefault("application.version", "1.0.0")
	l.v.SetDefault("application.environment", "development")

	// Ring geometry of the original benchmark: 8 nodes of 6 objects.
	l.v.SetDefault("ring.node_count", 8)
	l.v.SetDefault("ring.objects_per_node", 6)
	l.v.SetDefault("ring.layout", "sample")
	l.v.SetDefault("ring.lap_policy", "stop")
	l.v.SetDefault("ring.max_bytes", 1<<30)

	l.v.SetDefault("source.type", "generator")
	l.v.SetDefault("source.topics", []string{"samples"})
	l.v.SetDefault("source.generator.partitions", 1)
	l.v.SetDefault("source.generator.objects_per_message", 4)
	l.v.SetDefault("source.generator.messages_per_second", 10.0)
	l.v.SetDefault("source.generator.burst", 1)
	l.v.SetDefault("source.generator.max_messages", 0)

	l.v.SetDefault("kafka.security_protocol", "PLAINTEXT")
	l.v.SetDefault("kafka.consumer.auto_offset_reset", "earliest")
	l.v.SetDefault("kafka.consumer.max_poll_interval_ms", 300000)
	l.v.SetDefault("kafka.consumer.session_timeout_ms", 30000)
	l.v.SetDefault("kafka.consumer.heartbeat_interval_ms", 10000)
	l.v.SetDefault("kafka.consumer.channel_buffer_size", 100)
	l.v.SetDefault("kafka.dlq.enabled", false)
	l.v.SetDefault("kafka.dlq.topic_suffix", ".dlq")
	l.v.SetDefault("kafka.dlq.max_retries", 3)

	l.v.SetDefault("ingest.max_attempts", 5)
	l.v.SetDefault("ingest.initial_backoff_ms", 10)
	l.v.SetDefault("ingest.max_backoff_ms", 1000)
	l.v.SetDefault("ingest.backoff_multiplier", 2.0)

	l.v.SetDefault("flush.period_ms", 100)
	l.v.SetDefault("flush.grain", 6)

	l.v.SetDefault("storage.backend", "file")
	l.v.SetDefault("storage.format", "raw")
	l.v.SetDefault("storage.file.base_path", "./data")
	l.v.SetDefault("storage.s3.sse_enabled", true)

	l.v.SetDefault("file_rotation.max_file_size_mb", 128)
	l.v.SetDefault("file_rotation.max_records_per_file", 100000)
	l.v.SetDefault("file_rotation.max_duration_seconds", 300)
	l.v.SetDefault("file_rotation.strategy", "composite")

	l.v.SetDefault("observability.logging.level", "info")
	l.v.SetDefault("observability.logging.format", "json")
	l.v.SetDefault("observability.logging.output", "stdout")
	l.v.SetDefault("observability.metrics.enabled", true)
	l.v.SetDefault("observability.metrics.port", 9090)
	l.v.SetDefault("observability.health.port", 8080)

	l.v.SetDefault("shutdown.grace_period_seconds", 30)
	l.v.SetDefault("shutdown.drain_timeout_seconds", 60)
}

var (
	lapPolicies        = []string{"stop", "freeze"}
	sourceTypes        = []string{"generator", "kafka"}
	storageFormats     = []string{"raw", "csv", "avro", "parquet"}
	rotationStrategies = []string{"composite", "size", "time", "count"}
)

// Validate validates the configuration
func (l *Loader) Validate(config *dto.ApplicationConfig) error {
	if err := validateRing(config.Ring); err != nil {
		return err
	}
	if err := validateSource(config); err != nil {
		return err
	}

	if config.Ingest.MaxAttempts < 1 {
		return fmt.Errorf("ingest.max_attempts must be at least 1, got %d", config.Ingest.MaxAttempts)
	}
	if config.Flush.Grain < 1 {
		return fmt.Errorf("flush.grain must be at least 1, got %d", config.Flush.Grain)
	}
	if config.Flush.PeriodMS < 1 {
		return fmt.Errorf("flush.period_ms must be at least 1, got %d", config.Flush.PeriodMS)
	}

	if err := validateStorage(config.Storage); err != nil {
		return err
	}

	if !slices.Contains(rotationStrategies, config.FileRotation.Strategy) {
		return fmt.Errorf("unsupported rotation strategy: %s", config.FileRotation.Strategy)
	}

	if config.Observability.Metrics.Port < 1 || config.Observability.Metrics.Port > 65535 {
		return fmt.Errorf("invalid metrics port: %d", config.Observability.Metrics.Port)
	}
	if config.Observability.Health.Port < 1 || config.Observability.Health.Port > 65535 {
		return fmt.Errorf("invalid health port: %d", config.Observability.Health.Port)
	}

	return nil
}

func validateRing(ring dto.RingConfig) error {
	if ring.NodeCount < 2 {
		return fmt.Errorf("ring.node_count must be at least 2, got %d", ring.NodeCount)
	}
	if ring.ObjectsPerNode < 1 {
		return fmt.Errorf("ring.objects_per_node must be at least 1, got %d", ring.ObjectsPerNode)
	}
	if _, err := record.LookupLayout(ring.Layout); err != nil {
		return fmt.Errorf("ring.layout: %w", err)
	}
	if !slices.Contains(lapPolicies, ring.LapPolicy) {
		return fmt.Errorf("unsupported ring.lap_policy: %s", ring.LapPolicy)
	}
	return nil
}

func validateSource(config *dto.ApplicationConfig) error {
	if !slices.Contains(sourceTypes, config.Source.Type) {
		return fmt.Errorf("unsupported source type: %s", config.Source.Type)
	}
	if len(config.Source.Topics) == 0 {
		return errors.New("source.topics is required")
	}

	switch config.Source.Type {
	case "generator":
		gen := config.Source.Generator
		if gen.Partitions < 1 {
			return fmt.Errorf("source.generator.partitions must be at least 1, got %d", gen.Partitions)
		}
		if gen.ObjectsPerMessage < 1 {
			return fmt.Errorf("source.generator.objects_per_message must be at least 1, got %d", gen.ObjectsPerMessage)
		}
	case "kafka":
		if len(config.Kafka.BootstrapServers) == 0 {
			return errors.New("kafka.bootstrap_servers is required")
		}
		if config.Kafka.Consumer.GroupID == "" {
			return errors.New("kafka.consumer.group_id is required")
		}
	}
	return nil
}

func validateStorage(storage dto.StorageConfig) error {
	switch storage.Backend {
	case "s3":
		if storage.S3.Bucket == "" {
			return errors.New("storage.s3.bucket is required for S3 backend")
		}
		if storage.S3.Region == "" {
			return errors.New("storage.s3.region is required for S3 backend")
		}
	case "azure":
		if storage.Azure.AccountName == "" {
			return errors.New("storage.azure.account_name is required for Azure backend")
		}
		if storage.Azure.Container == "" {
			return errors.New("storage.azure.container is required for Azure backend")
		}
	case "gcs":
		if storage.GCS.Bucket == "" {
			return errors.New("storage.gcs.bucket is required for GCS backend")
		}
	case "file":
		if storage.File.BasePath == "" {
			return errors.New("storage.file.base_path is required for file backend")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s", storage.Backend)
	}

	if !slices.Contains(storageFormats, storage.Format) {
		return fmt.Errorf("unsupported storage format: %s", storage.Format)
	}
	return nil
}
