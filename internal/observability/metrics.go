package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Ring metrics
	RecordsAppended prometheus.Counter
	RecordsEvicted  prometheus.Counter
	BytesAppended   prometheus.Counter
	RingRecords     prometheus.Gauge
	RingSize        prometheus.Gauge
	PendingBytes    prometheus.Gauge
	LockWait        *prometheus.HistogramVec
	RingErrors      *prometheus.CounterVec

	// Socket metrics
	Connections        prometheus.Counter
	ActiveConnections  prometheus.Gauge
	BytesReceived      prometheus.Counter
	BytesSent          prometheus.Counter
	SeekRequests       *prometheus.CounterVec
	TimestampsInjected *prometheus.CounterVec

	// Consumer metrics
	MessagesConsumed   *prometheus.CounterVec
	MessagesIngested   *prometheus.CounterVec
	DLQPublished       *prometheus.CounterVec
	OffsetCommits      *prometheus.CounterVec
	Rebalances         *prometheus.CounterVec
	RebalanceDuration  *prometheus.HistogramVec
	PartitionsAssigned *prometheus.GaugeVec
	CommitLatency      *prometheus.HistogramVec

	// Archive metrics
	BatchSize            prometheus.Gauge
	BatchRecordCount     prometheus.Gauge
	RecordsDropped       prometheus.Counter
	FilesWritten         *prometheus.CounterVec
	StorageWriteDuration *prometheus.HistogramVec
	FileSize             *prometheus.HistogramVec
	StorageErrors        *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		// Ring metrics
		RecordsAppended: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ring_records_appended_total",
				Help: "Total number of records appended to the ring",
			},
		),
		RecordsEvicted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ring_records_evicted_total",
				Help: "Total number of records displaced by newer records",
			},
		),
		BytesAppended: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ring_bytes_appended_total",
				Help: "Total number of bytes appended to the ring",
			},
		),
		RingRecords: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ring_records",
				Help: "Current number of records in the ring",
			},
		),
		RingSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ring_size_bytes",
				Help: "Current total size of the records in the ring",
			},
		),
		PendingBytes: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ring_pending_bytes",
				Help: "Bytes accumulated while waiting for a record terminator",
			},
		),
		LockWait: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ring_lock_wait_seconds",
				Help:    "Time spent waiting to acquire a log lock",
				Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1, 1.0},
			},
			[]string{"lock"},
		),
		RingErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ring_errors_total",
				Help: "Total number of failed log operations",
			},
			[]string{"operation", "kind"},
		),

		// Socket metrics
		Connections: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "socket_connections_total",
				Help: "Total number of accepted client connections",
			},
		),
		ActiveConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "socket_connections_active",
				Help: "Number of client connections currently open",
			},
		),
		BytesReceived: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "socket_bytes_received_total",
				Help: "Total number of bytes received from clients",
			},
		),
		BytesSent: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "socket_bytes_sent_total",
				Help: "Total number of bytes streamed back to clients",
			},
		),
		SeekRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "socket_seek_requests_total",
				Help: "Total number of seek commands received",
			},
			[]string{"status"},
		),
		TimestampsInjected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timestamps_injected_total",
				Help: "Total number of timestamp records the injector attempted",
			},
			[]string{"status"},
		),

		// Consumer metrics
		MessagesConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_messages_consumed_total",
				Help: "Total number of messages consumed from Kafka",
			},
			[]string{"topic", "partition"},
		),
		MessagesIngested: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_messages_ingested_total",
				Help: "Total number of Kafka messages handled by the ingest loop",
			},
			[]string{"topic", "partition", "status"},
		),
		DLQPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_dlq_published_total",
				Help: "Total number of messages sent to the dead letter queue",
			},
			[]string{"topic", "status"},
		),
		OffsetCommits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kafka_offset_commit_total",
				Help: "Total number of offset commits",
			},
			[]string{"topic", "partition", "status"},
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
				Help:    "Duration of consumer group rebalances",
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
		CommitLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "kafka_commit_latency_seconds",
				Help:    "Latency of offset commit operations",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"topic", "partition"},
		),

		// Archive metrics
		BatchSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "archive_batch_size_bytes",
				Help: "Current size of the eviction batch in bytes",
			},
		),
		BatchRecordCount: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "archive_batch_record_count",
				Help: "Current number of records in the eviction batch",
			},
		),
		RecordsDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "archive_records_dropped_total",
				Help: "Total number of evicted records dropped because the archive queue was full",
			},
		),
		FilesWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_files_written_total",
				Help: "Total number of archive files written to storage",
			},
			[]string{"format", "status"},
		),
		StorageWriteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "archive_write_duration_seconds",
				Help:    "Duration of complete storage write operations including encoding",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"backend"},
		),
		FileSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "archive_file_size_bytes",
				Help:    "Size of archive files written to storage",
				Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KB to 256MB
			},
			[]string{"format"},
		),
		StorageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_errors_total",
				Help: "Total number of archive storage errors",
			},
			[]string{"backend", "operation"},
		),
	}
}

// IncRecordsAppended counts one appended record of the given size.
func (m *Metrics) IncRecordsAppended(bytes int) {
	m.RecordsAppended.Inc()
	m.BytesAppended.Add(float64(bytes))
}

// IncRecordsEvicted increments the evicted records counter.
func (m *Metrics) IncRecordsEvicted() {
	m.RecordsEvicted.Inc()
}

// SetRingState sets the ring occupancy gauges.
func (m *Metrics) SetRingState(records int, sizeBytes int64) {
	m.RingRecords.Set(float64(records))
	m.RingSize.Set(float64(sizeBytes))
}

// SetPendingBytes sets the accumulation buffer gauge.
func (m *Metrics) SetPendingBytes(n int) {
	m.PendingBytes.Set(float64(n))
}

// ObserveLockWait observes time spent acquiring a lock.
func (m *Metrics) ObserveLockWait(lock string, d time.Duration) {
	m.LockWait.WithLabelValues(lock).Observe(d.Seconds())
}

// IncErrors increments the log errors counter.
func (m *Metrics) IncErrors(operation, kind string) {
	m.RingErrors.WithLabelValues(operation, kind).Inc()
}

// ConnectionOpened records an accepted client connection.
func (m *Metrics) ConnectionOpened() {
	m.Connections.Inc()
	m.ActiveConnections.Inc()
}

// ConnectionClosed records a closed client connection.
func (m *Metrics) ConnectionClosed() {
	m.ActiveConnections.Dec()
}

// AddBytesReceived adds to the received bytes counter.
func (m *Metrics) AddBytesReceived(n int) {
	m.BytesReceived.Add(float64(n))
}

// AddBytesSent adds to the sent bytes counter.
func (m *Metrics) AddBytesSent(n int64) {
	m.BytesSent.Add(float64(n))
}

// IncSeekRequests increments the seek command counter.
func (m *Metrics) IncSeekRequests(status string) {
	m.SeekRequests.WithLabelValues(status).Inc()
}

// IncTimestampsInjected increments the timestamp injector counter.
func (m *Metrics) IncTimestampsInjected(status string) {
	m.TimestampsInjected.WithLabelValues(status).Inc()
}

// IncMessagesConsumed increments messages consumed counter.
func (m *Metrics) IncMessagesConsumed(topic string, partition int32) {
	m.MessagesConsumed.WithLabelValues(topic, fmt.Sprintf("%d", partition)).Inc()
}

// IncMessagesIngested increments the ingest outcome counter.
func (m *Metrics) IncMessagesIngested(topic string, partition int32, status string) {
	m.MessagesIngested.WithLabelValues(topic, fmt.Sprintf("%d", partition), status).Inc()
}

// IncDLQPublished increments the DLQ publish counter.
func (m *Metrics) IncDLQPublished(topic string, status string) {
	m.DLQPublished.WithLabelValues(topic, status).Inc()
}

// IncRebalances increments rebalances counter.
func (m *Metrics) IncRebalances(groupID string) {
	m.Rebalances.WithLabelValues(groupID).Inc()
}

// IncOffsetCommits increments offset commits counter.
func (m *Metrics) IncOffsetCommits(topic string, partition int32, status string) {
	m.OffsetCommits.WithLabelValues(topic, fmt.Sprintf("%d", partition), status).Inc()
}

// ObserveRebalanceDuration observes rebalance duration.
func (m *Metrics) ObserveRebalanceDuration(groupID string, duration float64) {
	m.RebalanceDuration.WithLabelValues(groupID).Observe(duration)
}

// ObserveCommitLatency observes commit latency.
func (m *Metrics) ObserveCommitLatency(topic string, partition int32, duration float64) {
	m.CommitLatency.WithLabelValues(topic, fmt.Sprintf("%d", partition)).Observe(duration)
}

// SetPartitionsAssigned sets partitions assigned gauge.
func (m *Metrics) SetPartitionsAssigned(topic string, count float64) {
	m.PartitionsAssigned.WithLabelValues(topic).Set(count)
}

// SetBatchState sets the eviction batch gauges.
func (m *Metrics) SetBatchState(records int, sizeBytes int64) {
	m.BatchRecordCount.Set(float64(records))
	m.BatchSize.Set(float64(sizeBytes))
}

// IncRecordsDropped increments the dropped evictions counter.
func (m *Metrics) IncRecordsDropped() {
	m.RecordsDropped.Inc()
}

// IncFilesWritten increments files written counter.
func (m *Metrics) IncFilesWritten(format string, status string) {
	m.FilesWritten.WithLabelValues(format, status).Inc()
}

// ObserveFileSize observes file size.
func (m *Metrics) ObserveFileSize(format string, size float64) {
	m.FileSize.WithLabelValues(format).Observe(size)
}

// ObserveStorageWriteDuration observes storage write duration.
func (m *Metrics) ObserveStorageWriteDuration(backend string, duration float64) {
	m.StorageWriteDuration.WithLabelValues(backend).Observe(duration)
}

// IncStorageErrors increments storage errors counter.
func (m *Metrics) IncStorageErrors(backend string, operation string) {
	m.StorageErrors.WithLabelValues(backend, operation).Inc()
}
