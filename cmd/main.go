package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/jittakal/ringlog/internal/archive"
	"github.com/jittakal/ringlog/internal/buffer"
	"github.com/jittakal/ringlog/internal/config"
	"github.com/jittakal/ringlog/internal/config/dto"
	"github.com/jittakal/ringlog/internal/encoder"
	"github.com/jittakal/ringlog/internal/ingest"
	"github.com/jittakal/ringlog/internal/kafka"
	"github.com/jittakal/ringlog/internal/observability"
	"github.com/jittakal/ringlog/internal/server"
	"github.com/jittakal/ringlog/internal/socket"
	"github.com/jittakal/ringlog/internal/storage"
	"github.com/jittakal/ringlog/internal/validator"
	"github.com/jittakal/ringlog/pkg/record"
	pkgstorage "github.com/jittakal/ringlog/pkg/storage"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func run() error {
	// Parse command-line flags
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	// Priority: CLI flag > CONFIG_PATH env var > default path
	var cfgPath string
	if *configPath != "" {
		cfgPath = *configPath
	} else if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		cfgPath = envPath
	} else {
		cfgPath = "config/application.yaml"
	}

	loader := config.NewLoader()
	cfg, err := loader.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize observability
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
		Output: cfg.Observability.Logging.Output,
		Tag:    cfg.Observability.Logging.Tag,
	})
	logger.Info("starting ringlog",
		"version", cfg.Application.Version,
		"environment", cfg.Application.Environment,
		"capacity", cfg.Ring.Capacity,
	)

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	// Cleanup runs in reverse registration order
	var cleanupFuncs []func() error
	addCleanup := func(name string, fn func() error) {
		cleanupFuncs = append(cleanupFuncs, func() error {
			if err := fn(); err != nil {
				logger.Error("cleanup failed", "component", name, "error", err)
				return err
			}
			return nil
		})
		logger.Debug("registered cleanup", "component", name)
	}
	defer func() {
		for i := len(cleanupFuncs) - 1; i >= 0; i-- {
			_ = cleanupFuncs[i]()
		}
	}()

	// Eviction archive
	var archiver *archive.Archiver
	if cfg.Archive.Enabled {
		archiver, err = newArchiver(cfg, logger, metrics, addCleanup)
		if err != nil {
			return err
		}
	}

	// Record log
	logConfig := buffer.Config{
		Capacity:       cfg.Ring.Capacity,
		MaxRecordBytes: cfg.Ring.MaxRecordBytes,
		Metrics:        metrics,
		Logger:         logger.With("component", "log"),
	}
	if archiver != nil {
		logConfig.OnEvict = archiver.OnEvict
	}
	recordLog, err := buffer.New(logConfig)
	if err != nil {
		return fmt.Errorf("failed to create record log: %w", err)
	}

	healthChecker := server.NewChecker()
	healthChecker.Register("log", func(ctx context.Context) error {
		_, err := recordLog.Stats(ctx)
		return err
	})
	healthChecker.Info("ring", func() string {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()
		stats, err := recordLog.Stats(ctx)
		if err != nil {
			return err.Error()
		}
		return fmt.Sprintf("%d/%d records, %d bytes, %d pending, %d appended, %d evicted",
			stats.Records, stats.Capacity, stats.SizeBytes, stats.PendingBytes, stats.TotalAppended, stats.TotalEvicted)
	})

	// Create context with cancellation on SIGINT and SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	archiveCtx, cancelArchive := context.WithCancel(context.Background())
	defer cancelArchive()
	archiveDone := make(chan error, 1)
	if archiver != nil {
		go func() { archiveDone <- archiver.Run(archiveCtx) }()
	}

	// Socket front end
	if cfg.Socket.Enabled {
		socketServer := socket.NewServer(recordLog, socket.Config{
			Address:         cfg.Socket.ListenAddress(),
			ReadBufferBytes: cfg.Socket.ReadBufferBytes,
			SeekCommand:     cfg.Socket.SeekCommand,
		}, logger.With("component", "socket"), metrics)
		if err := socketServer.Listen(); err != nil {
			return err
		}
		healthChecker.Register("socket", socketServer.Ready)
		g.Go(func() error { return socketServer.Serve(gctx) })

		if cfg.Socket.Timestamp.Enabled {
			injector, err := socket.NewTimestampInjector(recordLog, socket.TimestampConfig{
				Interval:    cfg.Socket.Timestamp.Interval(),
				Format:      cfg.Socket.Timestamp.Format,
				LockTimeout: cfg.Socket.Timestamp.LockTimeout(),
				MaxRetries:  cfg.Socket.Timestamp.MaxRetries,
			}, logger.With("component", "timestamp"), metrics)
			if err != nil {
				return err
			}
			g.Go(func() error { return injector.Run(gctx) })
		}
	}

	// Kafka ingest
	if cfg.Kafka.Enabled {
		processor, err := newIngest(gctx, cfg, recordLog, logger, metrics, addCleanup)
		if err != nil {
			return err
		}
		healthChecker.Info("kafka", func() string { return "consuming " + fmt.Sprint(cfg.Kafka.Consumer.Topics) })
		g.Go(func() error { return processor.Run(gctx) })
	}

	// Start HTTP server
	httpServer := server.NewServer(server.Config{
		HealthPort:     cfg.Observability.Health.Port,
		MetricsPort:    cfg.Observability.Metrics.Port,
		LivenessPath:   cfg.Observability.Health.LivenessPath,
		ReadinessPath:  cfg.Observability.Health.ReadinessPath,
		MetricsPath:    cfg.Observability.Metrics.Path,
		MetricsEnabled: cfg.Observability.Metrics.Enabled,
	}, healthChecker, registry, logger)

	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	addCleanup("http-server", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.ForceTimeout())
		defer cancel()
		return httpServer.Shutdown(ctx)
	})

	logger.Info("application started successfully")

	// Wait for termination signal or a failed component
	<-gctx.Done()
	if ctx.Err() != nil {
		logger.Info("received termination signal")
	}

	// Graceful shutdown
	logger.Info("initiating graceful shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.GracePeriod())
	defer cancel()

	runErr := waitGroup(shutdownCtx, g)
	if runErr != nil {
		logger.Error("component failed", "error", runErr)
	}

	drained, err := recordLog.Close(shutdownCtx)
	if err != nil {
		logger.Error("failed to close record log", "error", err)
	}
	logger.Info("record log closed", "records", len(drained))

	if archiver != nil {
		if err := archiver.Close(shutdownCtx, drained); err != nil {
			logger.Error("failed to flush archive", "error", err)
		}
		cancelArchive()
		if err := <-archiveDone; err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("archiver stopped with error", "error", err)
		}
	}

	logger.Info("application stopped successfully")
	return runErr
}

// waitGroup waits for g or for ctx to expire, whichever comes first.
func waitGroup(ctx context.Context, g *errgroup.Group) error {
	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("components did not stop within grace period: %w", ctx.Err())
	}
}

func newArchiver(
	cfg *dto.ApplicationConfig,
	logger *slog.Logger,
	metrics *observability.Metrics,
	addCleanup func(string, func() error),
) (*archive.Archiver, error) {
	format := record.FormatParquet
	if cfg.Archive.Format == "avro" {
		format = record.FormatAvro
	}

	writer, err := newWriter(cfg, format, logger, metrics)
	if err != nil {
		return nil, err
	}
	// Deferred cleanup closes the writer after the archiver's final flush
	addCleanup("archive-writer", writer.Close)

	router := storage.NewRouter(storageProtocol(cfg.Archive.Backend), storageBucket(cfg), storageBasePath(cfg))
	policy := storage.NewPolicy(storage.PolicyConfig{
		MaxFileSizeMB:      cfg.Archive.Rotation.MaxFileSizeMB,
		MaxRecordsPerFile:  cfg.Archive.Rotation.MaxRecordsPerFile,
		MaxDurationSeconds: cfg.Archive.Rotation.MaxDurationSeconds,
		Strategy:           cfg.Archive.Rotation.Strategy,
	})

	a := archive.New(writer, router, policy, archive.Config{
		Name:            cfg.Archive.Name,
		Format:          format,
		QueueSize:       cfg.Archive.QueueSize,
		FlushInterval:   cfg.Archive.FlushInterval(),
		MaxBatchBytes:   cfg.Archive.Rotation.MaxFileSizeMB * 1024 * 1024,
		MaxBatchRecords: cfg.Archive.Rotation.MaxRecordsPerFile,
	}, logger.With("component", "archive"), metrics)
	return a, nil
}

// newWriter creates the storage writer for the configured backend.
func newWriter(cfg *dto.ApplicationConfig, format record.FileFormat, logger *slog.Logger, metrics *observability.Metrics) (pkgstorage.Writer, error) {
	compression := cfg.Archive.Compression
	if compression == "" {
		compression = encoder.DefaultCompression(format)
	}

	switch cfg.Archive.Backend {
	case "file":
		w, err := storage.NewFileWriter(storage.FileConfig{
			BasePath: cfg.Archive.File.BasePath,
		}, format, compression, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create filesystem writer: %w", err)
		}
		return w, nil
	case "s3":
		w, err := storage.NewS3Writer(storage.S3Config{
			Bucket:       cfg.Archive.S3.Bucket,
			Region:       cfg.Archive.S3.Region,
			Endpoint:     cfg.Archive.S3.Endpoint,
			UsePathStyle: cfg.Archive.S3.UsePathStyle,
			SSEEnabled:   cfg.Archive.S3.SSEEnabled,
			SSEKMSKeyID:  cfg.Archive.S3.SSEKMSKeyID,
		}, format, compression, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 writer: %w", err)
		}
		return w, nil
	case "azure":
		w, err := storage.NewAzureWriter(storage.AzureConfig{
			AccountName:   cfg.Archive.Azure.AccountName,
			AccountKey:    os.Getenv("AZURE_STORAGE_ACCOUNT_KEY"),
			ContainerName: cfg.Archive.Azure.Container,
			Endpoint:      cfg.Archive.Azure.Endpoint,
		}, format, compression, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Blob writer: %w", err)
		}
		return w, nil
	case "gcs":
		credentialsJSON := cfg.Archive.GCS.CredentialsJSON
		if credentialsJSON == "" {
			credentialsJSON = os.Getenv("GCP_CREDENTIALS_JSON")
		}
		w, err := storage.NewGCSWriter(storage.GCSConfig{
			Bucket:               cfg.Archive.GCS.Bucket,
			ProjectID:            cfg.Archive.GCS.ProjectID,
			CredentialsFile:      cfg.Archive.GCS.CredentialsFile,
			CredentialsJSON:      credentialsJSON,
			UseDefaultCredential: cfg.Archive.GCS.UseDefaultCredential,
		}, format, compression, logger, metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCS writer: %w", err)
		}
		return w, nil
	default:
		return nil, fmt.Errorf("unsupported archive backend: %s (supported: file, s3, azure, gcs)", cfg.Archive.Backend)
	}
}

func newIngest(
	ctx context.Context,
	cfg *dto.ApplicationConfig,
	recordLog *buffer.Log,
	logger *slog.Logger,
	metrics *observability.Metrics,
	addCleanup func(string, func() error),
) (*ingest.Processor, error) {
	consumerConfig := kafka.ConsumerConfig{
		BootstrapServers:    cfg.Kafka.BootstrapServers,
		GroupID:             cfg.Kafka.Consumer.GroupID,
		SecurityProtocol:    cfg.Kafka.SecurityProtocol,
		SASLMechanism:       cfg.Kafka.SASLMechanism,
		SASLUsername:        cfg.Kafka.SASLUsername,
		SASLPassword:        cfg.Kafka.SASLPassword,
		Region:              cfg.Kafka.Region,
		TLSSkipVerify:       cfg.Kafka.TLSSkipVerify,
		AutoOffsetReset:     cfg.Kafka.Consumer.AutoOffsetReset,
		EnableAutoCommit:    cfg.Kafka.Consumer.EnableAutoCommit,
		MaxPollIntervalMS:   cfg.Kafka.Consumer.MaxPollIntervalMS,
		SessionTimeoutMS:    cfg.Kafka.Consumer.SessionTimeoutMS,
		HeartbeatIntervalMS: cfg.Kafka.Consumer.HeartbeatIntervalMS,
	}
	kafkaLogger := logger.With("component", "kafka")

	consumer, err := kafka.NewSaramaConsumer(consumerConfig, kafkaLogger, metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}
	addCleanup("kafka-consumer", consumer.Close)

	dlqPublisher, err := kafka.NewDLQPublisher(consumerConfig, kafka.DLQConfig{
		Enabled:     cfg.Kafka.DLQ.Enabled,
		TopicSuffix: cfg.Kafka.DLQ.TopicSuffix,
		MaxRetries:  cfg.Kafka.DLQ.MaxRetries,
	}, kafkaLogger, cfg.Application.Name+"-"+uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("failed to create DLQ publisher: %w", err)
	}
	addCleanup("dlq-publisher", dlqPublisher.Close)

	if err := consumer.Subscribe(ctx, cfg.Kafka.Consumer.Topics); err != nil {
		return nil, fmt.Errorf("failed to subscribe to topics: %w", err)
	}

	return ingest.NewProcessor(
		consumer,
		dlqPublisher,
		recordLog,
		validator.NewRecordValidator(cfg.Ring.MaxRecordBytes),
		kafkaLogger,
		metrics,
	), nil
}

func storageProtocol(backend string) string {
	switch backend {
	case "s3":
		return "s3"
	case "azure":
		return "wasbs"
	case "gcs":
		return "gs"
	default:
		return "file"
	}
}

func storageBucket(cfg *dto.ApplicationConfig) string {
	switch cfg.Archive.Backend {
	case "s3":
		return cfg.Archive.S3.Bucket
	case "azure":
		return cfg.Archive.Azure.Container
	case "gcs":
		return cfg.Archive.GCS.Bucket
	default:
		return "" // File backend uses basePath only, no bucket
	}
}

func storageBasePath(cfg *dto.ApplicationConfig) string {
	switch cfg.Archive.Backend {
	case "s3":
		return cfg.Archive.S3.BasePath
	case "gcs":
		return cfg.Archive.GCS.BasePath
	case "azure":
		return cfg.Archive.Azure.BasePath
	default:
		return "" // FileWriter owns the base directory
	}
}
