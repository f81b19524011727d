// Package dto holds the configuration structures decoded by the loader.
package dto

import (
	"time"
)

// ApplicationConfig is the root configuration structure
type ApplicationConfig struct {
	Application   ApplicationInfo     `mapstructure:"application"`
	Ring          RingConfig          `mapstructure:"ring"`
	Source        SourceConfig        `mapstructure:"source"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Ingest        IngestConfig        `mapstructure:"ingest"`
	Flush         FlushConfig         `mapstructure:"flush"`
	Storage       StorageConfig       `mapstructure:"storage"`
	FileRotation  FileRotationConfig  `mapstructure:"file_rotation"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Shutdown      ShutdownConfig      `mapstructure:"shutdown"`
}

// ApplicationInfo contains application metadata
type ApplicationInfo struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// RingConfig is the geometry shared by every per-stream ring.
type RingConfig struct {
	NodeCount      int    `mapstructure:"node_count"`
	ObjectsPerNode int    `mapstructure:"objects_per_node"`
	Layout         string `mapstructure:"layout"`
	LapPolicy      string `mapstructure:"lap_policy"`
	MaxBytes       int64  `mapstructure:"max_bytes"`
}

// SourceConfig selects where messages come from.
type SourceConfig struct {
	Type      string          `mapstructure:"type"`
	Topics    []string        `mapstructure:"topics"`
	Generator GeneratorConfig `mapstructure:"generator"`
}

// GeneratorConfig configures the synthetic source.
type GeneratorConfig struct {
	Partitions        int     `mapstructure:"partitions"`
	ObjectsPerMessage int     `mapstructure:"objects_per_message"`
	MessagesPerSecond float64 `mapstructure:"messages_per_second"`
	Burst             int     `mapstructure:"burst"`
	MaxMessages       int64   `mapstructure:"max_messages"`
}

// KafkaConfig contains Kafka-related configuration
type KafkaConfig struct {
	BootstrapServers      []string       `mapstructure:"bootstrap_servers"`
	SecurityProtocol      string         `mapstructure:"security_protocol"`
	SASLMechanism         string         `mapstructure:"sasl_mechanism"`
	SASLUsername          string         `mapstructure:"sasl_username"`
	SASLPassword          string         `mapstructure:"sasl_password"`
	AWSRegion             string         `mapstructure:"aws_region"`
	TLSInsecureSkipVerify bool           `mapstructure:"tls_insecure_skip_verify"`
	Consumer              ConsumerConfig `mapstructure:"consumer"`
	DLQ                   DLQConfig      `mapstructure:"dlq"`
}

// ConsumerConfig contains Kafka consumer configuration
type ConsumerConfig struct {
	GroupID             string `mapstructure:"group_id"`
	AutoOffsetReset     string `mapstructure:"auto_offset_reset"`
	MaxPollIntervalMS   int    `mapstructure:"max_poll_interval_ms"`
	SessionTimeoutMS    int    `mapstructure:"session_timeout_ms"`
	HeartbeatIntervalMS int    `mapstructure:"heartbeat_interval_ms"`
	ChannelBufferSize   int    `mapstructure:"channel_buffer_size"`
}

// DLQConfig contains dead letter queue configuration
type DLQConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	TopicSuffix string `mapstructure:"topic_suffix"`
	MaxRetries  int    `mapstructure:"max_retries"`
}

// IngestConfig controls retries of short writes before objects are dropped.
type IngestConfig struct {
	MaxAttempts       int     `mapstructure:"max_attempts"`
	InitialBackoffMS  int     `mapstructure:"initial_backoff_ms"`
	MaxBackoffMS      int     `mapstructure:"max_backoff_ms"`
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier"`
}

// InitialBackoff returns the first retry delay.
func (c IngestConfig) InitialBackoff() time.Duration {
	return time.Duration(c.InitialBackoffMS) * time.Millisecond
}

// MaxBackoff returns the retry delay cap.
func (c IngestConfig) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffMS) * time.Millisecond
}

// FlushConfig controls the reader: how often it wakes and how many objects
// it pulls per call.
type FlushConfig struct {
	PeriodMS int `mapstructure:"period_ms"`
	Grain    int `mapstructure:"grain"`
}

// Period returns the flush period.
func (c FlushConfig) Period() time.Duration {
	return time.Duration(c.PeriodMS) * time.Millisecond
}

// StorageConfig contains storage backend configuration
type StorageConfig struct {
	Backend     string      `mapstructure:"backend"`
	Format      string      `mapstructure:"format"`
	Compression string      `mapstructure:"compression"`
	BasePath    string      `mapstructure:"base_path"`
	S3          S3Config    `mapstructure:"s3"`
	Azure       AzureConfig `mapstructure:"azure"`
	GCS         GCSConfig   `mapstructure:"gcs"`
	File        FileConfig  `mapstructure:"file"`
}

// S3Config contains AWS S3 configuration
type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	SSEEnabled   bool   `mapstructure:"sse_enabled"`
	SSEKMSKeyID  string `mapstructure:"sse_kms_key_id"`
}

// AzureConfig contains Azure Blob Storage configuration
type AzureConfig struct {
	AccountName string `mapstructure:"account_name"`
	AccountKey  string `mapstructure:"account_key"`
	Container   string `mapstructure:"container"`
	Endpoint    string `mapstructure:"endpoint"`
}

// GCSConfig contains Google Cloud Storage configuration
type GCSConfig struct {
	Bucket                string `mapstructure:"bucket"`
	ProjectID             string `mapstructure:"project_id"`
	CredentialsFile       string `mapstructure:"credentials_file"`
	CredentialsJSON       string `mapstructure:"credentials_json"`
	Endpoint              string `mapstructure:"endpoint"`
	UseDefaultCredential  bool   `mapstructure:"use_default_credential"`
	WithoutAuthentication bool   `mapstructure:"without_authentication"`
}

// FileConfig contains local filesystem configuration
type FileConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// FileRotationConfig contains file rotation settings
type FileRotationConfig struct {
	MaxFileSizeMB      int64  `mapstructure:"max_file_size_mb"`
	MaxRecordsPerFile  int    `mapstructure:"max_records_per_file"`
	MaxDurationSeconds int    `mapstructure:"max_duration_seconds"`
	Strategy           string `mapstructure:"strategy"`
}

// ObservabilityConfig contains observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	Health  HealthConfig  `mapstructure:"health"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// HealthConfig contains health check settings
type HealthConfig struct {
	Port int `mapstructure:"port"`
}

// ShutdownConfig bounds how long the drain may take.
type ShutdownConfig struct {
	GracePeriodSeconds  int `mapstructure:"grace_period_seconds"`
	DrainTimeoutSeconds int `mapstructure:"drain_timeout_seconds"`
}

// GracePeriod returns the HTTP shutdown grace period.
func (c ShutdownConfig) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodSeconds) * time.Second
}

// DrainTimeout returns the budget for draining every ring.
func (c ShutdownConfig) DrainTimeout() time.Duration {
	return time.Duration(c.DrainTimeoutSeconds) * time.Second
}
