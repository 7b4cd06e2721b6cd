package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fifolog"

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// Appender metrics
	RecordsAppended   prometheus.Counter
	RecordsDropped    prometheus.Counter
	RecordsRejected   prometheus.Counter
	BufferOccupancy   prometheus.Gauge
	BytesFlushed      prometheus.Counter
	BytesLost         prometheus.Counter
	FlushErrors       *prometheus.CounterVec
	SinkWriteDuration *prometheus.HistogramVec

	// Storage metrics
	SegmentsWritten *prometheus.CounterVec
	SegmentSize     *prometheus.HistogramVec
	FileRotations   *prometheus.CounterVec
	StorageErrors   *prometheus.CounterVec

	// Source metrics
	SourceRecords    *prometheus.CounterVec
	Rebalances       *prometheus.CounterVec
	MessagesConsumed *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		// Appender metrics
		RecordsAppended: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_appended_total",
			Help:      "Total number of records stored in the ring buffer",
		}),
		RecordsDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_dropped_total",
			Help:      "Total number of records discarded because the ring buffer was full",
		}),
		RecordsRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_rejected_total",
			Help:      "Total number of records larger than the ring buffer capacity",
		}),
		BufferOccupancy: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "buffer_occupancy_bytes",
			Help:      "Bytes currently buffered in the ring",
		}),
		BytesFlushed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_flushed_total",
			Help:      "Total number of bytes accepted by the sink",
		}),
		BytesLost: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_lost_total",
			Help:      "Total number of dequeued bytes the sink did not accept",
		}),
		FlushErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "flush_errors_total",
				Help:      "Total number of aborted flushes",
			},
			[]string{"stage"},
		),
		SinkWriteDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sink_write_duration_seconds",
				Help:      "Duration of a single chunk write to the sink",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
			},
			[]string{"backend"},
		),

		// Storage metrics
		SegmentsWritten: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "segments_written_total",
				Help:      "Total number of segments written to storage",
			},
			[]string{"backend", "format", "status"},
		),
		SegmentSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "segment_size_bytes",
				Help:      "Size of encoded segments written to storage",
				Buckets:   prometheus.ExponentialBuckets(256, 2, 12), // 256B to 512KB
			},
			[]string{"backend", "format"},
		),
		FileRotations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "file_rotations_total",
				Help:      "Total number of log file rotations",
			},
			[]string{"reason"},
		),
		StorageErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_errors_total",
				Help:      "Total number of storage errors",
			},
			[]string{"backend", "error_type"},
		),

		// Source metrics
		SourceRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_records_total",
				Help:      "Total number of records read from a source",
			},
			[]string{"source", "status"},
		),
		Rebalances: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "kafka_rebalance_total",
				Help:      "Total number of consumer group rebalances",
			},
			[]string{"group"},
		),
		MessagesConsumed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "kafka_messages_consumed_total",
				Help:      "Total number of messages consumed from Kafka",
			},
			[]string{"topic", "partition"},
		),
	}
}

// IncRecordsAppended increments the appended records counter.
func (m *Metrics) IncRecordsAppended() {
	m.RecordsAppended.Inc()
}

// IncRecordsDropped increments the dropped records counter.
func (m *Metrics) IncRecordsDropped() {
	m.RecordsDropped.Inc()
}

// IncRecordsRejected increments the rejected records counter.
func (m *Metrics) IncRecordsRejected() {
	m.RecordsRejected.Inc()
}

// SetOccupancy sets the buffer occupancy gauge.
func (m *Metrics) SetOccupancy(bytes float64) {
	m.BufferOccupancy.Set(bytes)
}

// AddBytesFlushed adds to the flushed bytes counter.
func (m *Metrics) AddBytesFlushed(bytes float64) {
	m.BytesFlushed.Add(bytes)
}

// AddBytesLost adds to the lost bytes counter.
func (m *Metrics) AddBytesLost(bytes float64) {
	m.BytesLost.Add(bytes)
}

// IncFlushErrors increments flush errors for a stage.
func (m *Metrics) IncFlushErrors(stage string) {
	m.FlushErrors.WithLabelValues(stage).Inc()
}

// ObserveSinkWriteDuration observes sink write duration.
func (m *Metrics) ObserveSinkWriteDuration(backend string, duration float64) {
	m.SinkWriteDuration.WithLabelValues(backend).Observe(duration)
}

// IncSegmentsWritten increments segments written counter.
func (m *Metrics) IncSegmentsWritten(backend, format, status string) {
	m.SegmentsWritten.WithLabelValues(backend, format, status).Inc()
}

// ObserveSegmentSize observes segment size.
func (m *Metrics) ObserveSegmentSize(backend, format string, size float64) {
	m.SegmentSize.WithLabelValues(backend, format).Observe(size)
}

// IncFileRotations increments file rotations counter.
func (m *Metrics) IncFileRotations(reason string) {
	m.FileRotations.WithLabelValues(reason).Inc()
}

// IncStorageErrors increments storage errors counter.
func (m *Metrics) IncStorageErrors(backend string, operation string) {
	m.StorageErrors.WithLabelValues(backend, operation).Inc()
}

// IncSourceRecords increments source records counter.
func (m *Metrics) IncSourceRecords(source, status string) {
	m.SourceRecords.WithLabelValues(source, status).Inc()
}

// IncRebalances increments rebalances counter.
func (m *Metrics) IncRebalances(groupID string) {
	m.Rebalances.WithLabelValues(groupID).Inc()
}

// IncMessagesConsumed increments messages consumed counter.
func (m *Metrics) IncMessagesConsumed(topic string, partition int32) {
	m.MessagesConsumed.WithLabelValues(topic, fmt.Sprintf("%d", partition)).Inc()
}
