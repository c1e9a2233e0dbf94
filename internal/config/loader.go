package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jittakal/ringlog/internal/config/dto"
	"github.com/spf13/viper"
)

// Loader handles configuration loading and validation
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load loads configuration from file and environment variables
func (l *Loader) Load(path string) (*dto.ApplicationConfig, error) {
	// Set defaults
	l.setDefaults()

	// Load from file if provided
	if path != "" {
		l.v.SetConfigFile(path)
		if err := l.v.ReadInConfig(); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Only expand values that reference ${...}
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
	// Application defaults
	l.v.SetDefault("application.name", "ringlog")
	l.v.SetDefault("application.version", "1.0.0")
	l.v.SetDefault("application.environment", "development")

	// Ring defaults
	l.v.SetDefault("ring.capacity", 10)
	l.v.SetDefault("ring.max_record_bytes", 4<<20)

	// Socket defaults
	l.v.SetDefault("socket.enabled", true)
	l.v.SetDefault("socket.address", "0.0.0.0")
	l.v.SetDefault("socket.port", 9000)
	l.v.SetDefault("socket.read_buffer_bytes", 1024)
	l.v.SetDefault("socket.seek_command", "AESDCHAR_IOCSEEKTO:")
	l.v.SetDefault("socket.timestamp.enabled", true)
	l.v.SetDefault("socket.timestamp.interval_seconds", 10)
	l.v.SetDefault("socket.timestamp.format", "rfc2822")
	l.v.SetDefault("socket.timestamp.lock_timeout_ms", 500)
	l.v.SetDefault("socket.timestamp.max_retries", 3)

	// Kafka defaults
	l.v.SetDefault("kafka.enabled", false)
	l.v.SetDefault("kafka.security_protocol", "PLAINTEXT")
	l.v.SetDefault("kafka.sasl_mechanism", "PLAIN")
	l.v.SetDefault("kafka.region", "us-east-1")
	l.v.SetDefault("kafka.tls_skip_verify", false)
	l.v.SetDefault("kafka.consumer.group_id", "ringlog")
	l.v.SetDefault("kafka.consumer.auto_offset_reset", "latest")
	l.v.SetDefault("kafka.consumer.enable_auto_commit", false)
	l.v.SetDefault("kafka.consumer.max_poll_interval_ms", 300000)
	l.v.SetDefault("kafka.consumer.session_timeout_ms", 30000)
	l.v.SetDefault("kafka.consumer.heartbeat_interval_ms", 10000)
	l.v.SetDefault("kafka.dlq.enabled", true)
	l.v.SetDefault("kafka.dlq.topic_suffix", "-dlq")
	l.v.SetDefault("kafka.dlq.max_retries", 3)

	// Archive defaults
	l.v.SetDefault("archive.enabled", false)
	l.v.SetDefault("archive.name", "records")
	l.v.SetDefault("archive.backend", "file")
	l.v.SetDefault("archive.format", "parquet")
	l.v.SetDefault("archive.queue_size", 1024)
	l.v.SetDefault("archive.flush_interval_seconds", 5)
	l.v.SetDefault("archive.file.base_path", "/var/tmp/ringlog-archive")
	l.v.SetDefault("archive.s3.use_path_style", false)
	l.v.SetDefault("archive.s3.sse_enabled", true)
	l.v.SetDefault("archive.rotation.max_file_size_mb", 64)
	l.v.SetDefault("archive.rotation.max_records_per_file", 100000)
	l.v.SetDefault("archive.rotation.max_duration_seconds", 300)
	l.v.SetDefault("archive.rotation.strategy", "any")

	// Observability defaults
	l.v.SetDefault("observability.logging.level", "info")
	l.v.SetDefault("observability.logging.format", "json")
	l.v.SetDefault("observability.logging.output", "stdout")
	l.v.SetDefault("observability.logging.tag", "ringlog")
	l.v.SetDefault("observability.metrics.enabled", true)
	l.v.SetDefault("observability.metrics.port", 9090)
	l.v.SetDefault("observability.metrics.path", "/metrics")
	l.v.SetDefault("observability.health.port", 8080)
	l.v.SetDefault("observability.health.liveness_path", "/health/live")
	l.v.SetDefault("observability.health.readiness_path", "/health/ready")

	// Shutdown defaults
	l.v.SetDefault("shutdown.grace_period_seconds", 30)
	l.v.SetDefault("shutdown.force_timeout_seconds", 60)
}

// Validate validates the configuration
func (l *Loader) Validate(config *dto.ApplicationConfig) error {
	if err := config.Validate(); err != nil {
		return err
	}

	// Ring validation
	if config.Ring.MaxRecordBytes < 1 {
		return fmt.Errorf("invalid ring.max_record_bytes: %d", config.Ring.MaxRecordBytes)
	}

	// Socket validation
	if config.Socket.Enabled {
		if err := validatePort("socket.port", config.Socket.Port); err != nil {
			return err
		}
		if config.Socket.ReadBufferBytes < 1 {
			return fmt.Errorf("invalid socket.read_buffer_bytes: %d", config.Socket.ReadBufferBytes)
		}
		if config.Socket.SeekCommand == "" {
			return errors.New("socket.seek_command is required")
		}
		ts := config.Socket.Timestamp
		if ts.Enabled {
			if ts.IntervalSeconds < 1 {
				return fmt.Errorf("invalid socket.timestamp.interval_seconds: %d", ts.IntervalSeconds)
			}
			if ts.LockTimeoutMS < 1 {
				return fmt.Errorf("invalid socket.timestamp.lock_timeout_ms: %d", ts.LockTimeoutMS)
			}
			if ts.MaxRetries < 1 {
				return fmt.Errorf("invalid socket.timestamp.max_retries: %d", ts.MaxRetries)
			}
		}
	}

	// Kafka validation
	if config.Kafka.Enabled {
		if err := config.Kafka.Validate(); err != nil {
			return err
		}
	}

	// Archive validation
	if config.Archive.Enabled {
		if err := validateArchive(&config.Archive); err != nil {
			return err
		}
	}

	// Port validation
	if err := validatePort("metrics port", config.Observability.Metrics.Port); err != nil {
		return err
	}
	if err := validatePort("health port", config.Observability.Health.Port); err != nil {
		return err
	}

	return nil
}

func validateArchive(archive *dto.ArchiveConfig) error {
	var err error
	switch archive.Backend {
	case "s3":
		err = archive.S3.Validate()
	case "azure":
		err = archive.Azure.Validate()
	case "gcs":
		err = archive.GCS.Validate()
	case "file":
		err = archive.File.Validate()
	default:
		return fmt.Errorf("unsupported archive backend: %s", archive.Backend)
	}
	if err != nil {
		return fmt.Errorf("archive.%s: %w", archive.Backend, err)
	}

	// Format validation
	if archive.Format != "parquet" && archive.Format != "avro" {
		return fmt.Errorf("unsupported archive format: %s", archive.Format)
	}

	// Rotation validation
	if archive.Rotation.Strategy != "any" && archive.Rotation.Strategy != "all" {
		return fmt.Errorf("unsupported rotation strategy: %s", archive.Rotation.Strategy)
	}

	if archive.QueueSize < 1 {
		return fmt.Errorf("invalid archive.queue_size: %d", archive.QueueSize)
	}
	if archive.FlushIntervalSeconds < 1 {
		return fmt.Errorf("invalid archive.flush_interval_seconds: %d", archive.FlushIntervalSeconds)
	}

	return nil
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid %s: %d", name, port)
	}
	return nil
}
