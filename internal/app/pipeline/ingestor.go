package pipeline

import (
	"sync"

	"github.com/ghalamif/sensorboard/internal/domain"
	"github.com/ghalamif/sensorboard/internal/ports"
)

// Ingestor is the producer side of the window. Sources call Deliver from
// their own goroutines; decoding happens before the window lock is taken
// and archive/capture writes after it is released. With a recorder, push
// and append share recMu so capture frames land in sequence order.
type Ingestor struct {
	window   ports.Window
	decoder  ports.Decoder
	obs      ports.Observability
	recorder ports.Recorder
	archiver *Archiver
	recMu    sync.Mutex
}

type IngestOption func(*Ingestor)

// WithRecorder appends every stored record to r.
func WithRecorder(r ports.Recorder) IngestOption {
	return func(i *Ingestor) { i.recorder = r }
}

// WithArchiver queues every stored record for archiving.
func WithArchiver(a *Archiver) IngestOption {
	return func(i *Ingestor) { i.archiver = a }
}

func NewIngestor(w ports.Window, dec ports.Decoder, obs ports.Observability, opts ...IngestOption) *Ingestor {
	i := &Ingestor{window: w, decoder: dec, obs: obs}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Deliver satisfies ports.Deliver.
func (i *Ingestor) Deliver(msg domain.Message) {
	i.Accept(msg)
}

// Accept decodes msg, pushes the result and returns the records as stored.
// A batch payload holding a JSON array yields one record per element; any
// other message yields exactly one record.
func (i *Ingestor) Accept(msg domain.Message) []domain.Record {
	var stored []domain.Record
	if msg.Batch && msg.Err == nil && len(msg.Fields) == 0 {
		recs := i.decoder.DecodeAll(msg.Payload)
		for j := range recs {
			recs[j].Source = msg.Source
			recs[j].Received = msg.Received
		}
		if len(recs) == 1 {
			i.count(recs[0])
		}
		stored = i.store(func() []domain.Record { return i.window.PushBatch(recs...) })
	} else {
		rec, kind := i.decoder.FromMessage(msg)
		i.countKind(kind, msg)
		stored = i.store(func() []domain.Record { return []domain.Record{i.window.Push(rec)} })
	}

	i.obs.IncCounter(ports.MetricRecordsPushed, float64(len(stored)))
	i.afterPush(stored)
	return stored
}

func (i *Ingestor) count(r domain.Record) {
	if r.Len() == 1 && r.Has(domain.KeyPayload) {
		i.obs.IncCounter(ports.MetricDecodeFallbacks, 1)
	}
}

func (i *Ingestor) countKind(kind domain.Kind, msg domain.Message) {
	switch kind {
	case domain.KindPayload:
		i.obs.IncCounter(ports.MetricDecodeFallbacks, 1)
	case domain.KindError:
		i.obs.IncCounter(ports.MetricTransportErrors, 1)
		i.obs.LogError("transport_failure", msg.Err, ports.Field{Key: "source", Value: msg.Source})
	case domain.KindInfo:
		text, _ := msg.Fields[0].Value.(string)
		i.obs.LogInfo("source_notice",
			ports.Field{Key: "source", Value: msg.Source},
			ports.Field{Key: "notice", Value: text})
	}
}

// store runs push and, with a recorder, appends the stored records before
// another producer can push.
func (i *Ingestor) store(push func() []domain.Record) []domain.Record {
	if i.recorder == nil {
		return push()
	}
	i.recMu.Lock()
	defer i.recMu.Unlock()
	stored := push()
	for _, r := range stored {
		if err := i.recorder.Append(r); err != nil {
			i.obs.LogError("capture_append_failed", err, ports.Field{Key: "seq", Value: r.Seq})
		}
	}
	return stored
}

func (i *Ingestor) afterPush(stored []domain.Record) {
	if i.archiver == nil {
		return
	}
	for _, r := range stored {
		_ = i.archiver.Enqueue(r)
	}
}
