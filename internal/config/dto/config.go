package dto

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// ApplicationConfig is the root configuration structure
type ApplicationConfig struct {
	Application   ApplicationInfo     `mapstructure:"application"`
	Ring          RingConfig          `mapstructure:"ring"`
	Socket        SocketConfig        `mapstructure:"socket"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Archive       ArchiveConfig       `mapstructure:"archive"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Shutdown      ShutdownConfig      `mapstructure:"shutdown"`
}

// ApplicationInfo contains application metadata
type ApplicationInfo struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// RingConfig sizes the circular log
type RingConfig struct {
	Capacity       int `mapstructure:"capacity"`
	MaxRecordBytes int `mapstructure:"max_record_bytes"`
}

// SocketConfig contains TCP front end configuration
type SocketConfig struct {
	Enabled         bool            `mapstructure:"enabled"`
	Address         string          `mapstructure:"address"`
	Port            int             `mapstructure:"port"`
	ReadBufferBytes int             `mapstructure:"read_buffer_bytes"`
	SeekCommand     string          `mapstructure:"seek_command"`
	Timestamp       TimestampConfig `mapstructure:"timestamp"`
}

// ListenAddress returns the host:port the server listens on.
func (c *SocketConfig) ListenAddress() string {
	return net.JoinHostPort(c.Address, strconv.Itoa(c.Port))
}

// TimestampConfig contains periodic timestamp record settings
type TimestampConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	IntervalSeconds int    `mapstructure:"interval_seconds"`
	Format          string `mapstructure:"format"`
	LockTimeoutMS   int    `mapstructure:"lock_timeout_ms"`
	MaxRetries      int    `mapstructure:"max_retries"`
}

// Interval returns the time between timestamp records.
func (c *TimestampConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// LockTimeout returns how long one attempt may wait for the log.
func (c *TimestampConfig) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMS) * time.Millisecond
}

// KafkaConfig contains Kafka-related configuration
type KafkaConfig struct {
	Enabled          bool           `mapstructure:"enabled"`
	BootstrapServers []string       `mapstructure:"bootstrap_servers"`
	SecurityProtocol string         `mapstructure:"security_protocol"`
	SASLMechanism    string         `mapstructure:"sasl_mechanism"`
	SASLUsername     string         `mapstructure:"sasl_username"`
	SASLPassword     string         `mapstructure:"sasl_password"`
	Region           string         `mapstructure:"region"`
	TLSSkipVerify    bool           `mapstructure:"tls_skip_verify"`
	Consumer         ConsumerConfig `mapstructure:"consumer"`
	DLQ              DLQConfig      `mapstructure:"dlq"`
}

// ConsumerConfig contains Kafka consumer configuration
type ConsumerConfig struct {
	GroupID             string   `mapstructure:"group_id"`
	Topics              []string `mapstructure:"topics"`
	AutoOffsetReset     string   `mapstructure:"auto_offset_reset"`
	EnableAutoCommit    bool     `mapstructure:"enable_auto_commit"`
	MaxPollIntervalMS   int      `mapstructure:"max_poll_interval_ms"`
	SessionTimeoutMS    int      `mapstructure:"session_timeout_ms"`
	HeartbeatIntervalMS int      `mapstructure:"heartbeat_interval_ms"`
}

// DLQConfig contains dead letter queue configuration
type DLQConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	TopicSuffix string `mapstructure:"topic_suffix"`
	MaxRetries  int    `mapstructure:"max_retries"`
}

// ArchiveConfig contains eviction archive configuration
type ArchiveConfig struct {
	Enabled              bool           `mapstructure:"enabled"`
	Name                 string         `mapstructure:"name"`
	Backend              string         `mapstructure:"backend"`
	Format               string         `mapstructure:"format"`
	Compression          string         `mapstructure:"compression"`
	QueueSize            int            `mapstructure:"queue_size"`
	FlushIntervalSeconds int            `mapstructure:"flush_interval_seconds"`
	S3                   S3Config       `mapstructure:"s3"`
	Azure                AzureConfig    `mapstructure:"azure"`
	GCS                  GCSConfig      `mapstructure:"gcs"`
	File                 FileConfig     `mapstructure:"file"`
	Rotation             RotationConfig `mapstructure:"rotation"`
}

// FlushInterval returns how often the archive checks its rotation policy.
func (c *ArchiveConfig) FlushInterval() time.Duration {
	return time.Duration(c.FlushIntervalSeconds) * time.Second
}

// S3Config contains AWS S3 configuration
type S3Config struct {
	Bucket       string `mapstructure:"bucket"`
	Region       string `mapstructure:"region"`
	BasePath     string `mapstructure:"base_path"`
	Endpoint     string `mapstructure:"endpoint"`
	UsePathStyle bool   `mapstructure:"use_path_style"`
	SSEEnabled   bool   `mapstructure:"sse_enabled"`
	SSEKMSKeyID  string `mapstructure:"sse_kms_key_id"`
}

// AzureConfig contains Azure Blob Storage configuration
type AzureConfig struct {
	AccountName string `mapstructure:"account_name"`
	Container   string `mapstructure:"container"`
	BasePath    string `mapstructure:"base_path"`
	// Endpoint overrides the blob endpoint, e.g. for Azurite.
	Endpoint string `mapstructure:"endpoint"`
}

// GCSConfig contains Google Cloud Storage configuration
type GCSConfig struct {
	Bucket               string `mapstructure:"bucket"`
	ProjectID            string `mapstructure:"project_id"`
	BasePath             string `mapstructure:"base_path"`
	CredentialsFile      string `mapstructure:"credentials_file"`
	CredentialsJSON      string `mapstructure:"credentials_json"`
	UseDefaultCredential bool   `mapstructure:"use_default_credential"`
}

// FileConfig contains local filesystem configuration
type FileConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// RotationConfig contains archive file rotation settings
type RotationConfig struct {
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
	Tag    string `mapstructure:"tag"`
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// HealthConfig contains health check settings
type HealthConfig struct {
	Port          int    `mapstructure:"port"`
	LivenessPath  string `mapstructure:"liveness_path"`
	ReadinessPath string `mapstructure:"readiness_path"`
}

// ShutdownConfig contains shutdown settings
type ShutdownConfig struct {
	GracePeriodSeconds  int `mapstructure:"grace_period_seconds"`
	ForceTimeoutSeconds int `mapstructure:"force_timeout_seconds"`
}

// GracePeriod returns how long in-flight work may take to finish.
func (c *ShutdownConfig) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodSeconds) * time.Second
}

// ForceTimeout bounds the cleanup that runs after the grace period.
func (c *ShutdownConfig) ForceTimeout() time.Duration {
	return time.Duration(c.ForceTimeoutSeconds) * time.Second
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.Application.Name == "" {
		return fmt.Errorf("application name is required")
	}
	if c.Ring.Capacity < 1 {
		return fmt.Errorf("ring capacity must be at least 1")
	}
	if !c.Socket.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("at least one of socket or kafka must be enabled")
	}
	return nil
}

// Validate validates Kafka configuration.
func (c *KafkaConfig) Validate() error {
	if len(c.BootstrapServers) == 0 {
		return fmt.Errorf("kafka bootstrap servers are required")
	}
	if len(c.Consumer.Topics) == 0 {
		return fmt.Errorf("kafka consumer topics are required")
	}
	if c.Consumer.GroupID == "" {
		return fmt.Errorf("kafka consumer group ID is required")
	}
	return nil
}

// Validate validates S3 configuration.
func (c *S3Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("s3 bucket is required")
	}
	if c.Region == "" {
		return fmt.Errorf("s3 region is required")
	}
	return nil
}

// Validate validates Azure configuration.
func (c *AzureConfig) Validate() error {
	if c.AccountName == "" {
		return fmt.Errorf("azure account name is required")
	}
	if c.Container == "" {
		return fmt.Errorf("azure container is required")
	}
	return nil
}

// Validate validates GCS configuration.
func (c *GCSConfig) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("gcs bucket is required")
	}
	return nil
}

// Validate validates file configuration.
func (c *FileConfig) Validate() error {
	if c.BasePath == "" {
		return fmt.Errorf("file base path is required")
	}
	return nil
}
