package observability

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ghalamif/sensorboard/internal/domain"
	"github.com/ghalamif/sensorboard/internal/ports"
)

type PromObs struct {
	logger   *slog.Logger
	counters map[string]prometheus.Counter
	gauges   map[string]prometheus.Gauge
	histos   map[string]prometheus.Observer
}

// NewPromObs registers the dashboard metrics on reg. A nil reg uses the
// default registerer; a nil logger uses slog.Default.
func NewPromObs(reg prometheus.Registerer, logger *slog.Logger) *PromObs {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = slog.Default()
	}

	pushed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricRecordsPushed,
		Help: "Records pushed into the sliding window.",
	})
	evicted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricRecordsEvicted,
		Help: "Records evicted from the sliding window to make room.",
	})
	fallbacks := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricDecodeFallbacks,
		Help: "Payloads that could not be parsed and were wrapped as text.",
	})
	transport := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricTransportErrors,
		Help: "Transport failures reported by sources.",
	})
	archived := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricArchived,
		Help: "Records written to the archive.",
	})
	archiveDrops := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricArchiveDropped,
		Help: "Records not archived because the archive queue was full or the write failed.",
	})
	redraws := prometheus.NewCounter(prometheus.CounterOpts{
		Name: ports.MetricRedraws,
		Help: "Dashboard frames rendered.",
	})
	windowLen := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: ports.MetricWindowLength,
		Help: "Current number of records in the sliding window.",
	})
	archiveQueue := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: ports.MetricArchiveQueueLen,
		Help: "Records waiting to be archived.",
	})
	archiveLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ports.MetricArchiveLatency,
		Help:    "Time spent writing one batch to the archive.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
	renderLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    ports.MetricRenderLatency,
		Help:    "Time spent building and rendering one frame.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	reg.MustRegister(pushed, evicted, fallbacks, transport, archived, archiveDrops,
		redraws, windowLen, archiveQueue, archiveLatency, renderLatency)

	return &PromObs{
		logger: logger,
		counters: map[string]prometheus.Counter{
			ports.MetricRecordsPushed:   pushed,
			ports.MetricRecordsEvicted:  evicted,
			ports.MetricDecodeFallbacks: fallbacks,
			ports.MetricTransportErrors: transport,
			ports.MetricArchived:        archived,
			ports.MetricArchiveDropped:  archiveDrops,
			ports.MetricRedraws:         redraws,
		},
		gauges: map[string]prometheus.Gauge{
			ports.MetricWindowLength:    windowLen,
			ports.MetricArchiveQueueLen: archiveQueue,
		},
		histos: map[string]prometheus.Observer{
			ports.MetricArchiveLatency: archiveLatency,
			ports.MetricRenderLatency:  renderLatency,
		},
	}
}

func (p *PromObs) LogInfo(msg string, fields ...ports.Field) {
	p.logger.Info(msg, attrs(fields)...)
}

func (p *PromObs) LogError(msg string, err error, fields ...ports.Field) {
	if err != nil {
		p.logger.Error(msg, append(attrs(fields), slog.Any("error", err))...)
	}
}

func (p *PromObs) LogCritical(msg string, err error, fields ...ports.Field) {
	if err != nil {
		p.logger.Error(msg, append(attrs(fields), slog.Any("error", err), slog.Bool("critical", true))...)
	}
}

func (p *PromObs) IncCounter(name string, v float64) {
	if c, ok := p.counters[name]; ok {
		c.Add(v)
	}
}

func (p *PromObs) ObserveLatency(name string, seconds float64) {
	if h, ok := p.histos[name]; ok {
		h.Observe(seconds)
	}
}

func (p *PromObs) SetGauge(name string, v float64) {
	if g, ok := p.gauges[name]; ok {
		g.Set(v)
	}
}

func (p *PromObs) RecordArchiveDrop(r domain.Record, err error) {
	p.IncCounter(ports.MetricArchiveDropped, 1)
	if err != nil {
		p.logger.Warn("archive drop", slog.Uint64("seq", r.Seq), slog.String("source", r.Source), slog.Any("error", err))
	}
}

func attrs(fields []ports.Field) []any {
	out := make([]any, 0, len(fields))
	for _, f := range fields {
		out = append(out, slog.Any(f.Key, f.Value))
	}
	return out
}

var _ ports.Observability = (*PromObs)(nil)
