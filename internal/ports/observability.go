package ports

import "github.com/ghalamif/sensorboard/internal/domain"

type Observability interface {
	LogInfo(msg string, fields ...Field)
	LogError(msg string, err error, fields ...Field)
	LogCritical(msg string, err error, fields ...Field)

	IncCounter(name string, v float64)
	ObserveLatency(name string, seconds float64)

	SetGauge(name string, v float64)

	RecordArchiveDrop(r domain.Record, err error)
}

type Field struct {
	Key   string
	Value any
}

// Metric names shared by the pipeline and the Prometheus adapter.
const (
	MetricRecordsPushed   = "board_records_pushed_total"
	MetricRecordsEvicted  = "board_records_evicted_total"
	MetricDecodeFallbacks = "board_decode_fallback_total"
	MetricTransportErrors = "board_transport_errors_total"
	MetricArchived        = "board_records_archived_total"
	MetricArchiveDropped  = "board_archive_dropped_total"
	MetricRedraws         = "board_redraws_total"
	MetricWindowLength    = "board_window_length"
	MetricArchiveQueueLen = "board_archive_queue_length"
	MetricArchiveLatency  = "board_archive_latency_seconds"
	MetricRenderLatency   = "board_render_latency_seconds"
)
