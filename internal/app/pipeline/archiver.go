package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/ghalamif/sensorboard/internal/domain"
	"github.com/ghalamif/sensorboard/internal/ports"
)

var ErrArchiveQueueFull = errors.New("archive queue full")

// Archiver copies pushed records to an Archive in batches. Enqueue never
// blocks: when the queue is full the record is dropped and counted.
type Archiver struct {
	archive ports.Archive
	ch      chan domain.Record
	pol     ports.Policy
	obs     ports.Observability
}

func NewArchiver(archive ports.Archive, pol ports.Policy, obs ports.Observability) *Archiver {
	if pol.ArchiveQueueLen <= 0 {
		pol.ArchiveQueueLen = 10_000
	}
	if pol.ArchiveBatchSize <= 0 {
		pol.ArchiveBatchSize = 500
	}
	return &Archiver{
		archive: archive,
		ch:      make(chan domain.Record, pol.ArchiveQueueLen),
		pol:     pol,
		obs:     obs,
	}
}

func (a *Archiver) Enqueue(r domain.Record) error {
	select {
	case a.ch <- r:
		return nil
	default:
		a.obs.RecordArchiveDrop(r, ErrArchiveQueueFull)
		return ErrArchiveQueueFull
	}
}

func (a *Archiver) Len() int { return len(a.ch) }

// Run writes batches until ctx is done, then flushes what is still queued.
func (a *Archiver) Run(ctx context.Context) error {
	for {
		batch, ok := a.collect(ctx)
		a.write(batch)
		if !ok {
			a.drain()
			return nil
		}
	}
}

// collect blocks for the first record, then lingers up to IdleSleep to
// fill the batch. ok is false once ctx is done.
func (a *Archiver) collect(ctx context.Context) ([]domain.Record, bool) {
	var batch []domain.Record
	select {
	case <-ctx.Done():
		return nil, false
	case r := <-a.ch:
		batch = append(batch, r)
	}

	var linger <-chan time.Time
	if a.pol.IdleSleep > 0 {
		timer := time.NewTimer(a.pol.IdleSleep)
		defer timer.Stop()
		linger = timer.C
	}
	for len(batch) < a.pol.ArchiveBatchSize {
		if linger == nil {
			select {
			case r := <-a.ch:
				batch = append(batch, r)
			default:
				return batch, true
			}
			continue
		}
		select {
		case <-ctx.Done():
			return batch, false
		case r := <-a.ch:
			batch = append(batch, r)
		case <-linger:
			return batch, true
		}
	}
	return batch, true
}

func (a *Archiver) drain() {
	for {
		batch := make([]domain.Record, 0, a.pol.ArchiveBatchSize)
	fill:
		for len(batch) < a.pol.ArchiveBatchSize {
			select {
			case r := <-a.ch:
				batch = append(batch, r)
			default:
				break fill
			}
		}
		if len(batch) == 0 {
			return
		}
		a.write(batch)
	}
}

func (a *Archiver) write(batch []domain.Record) {
	if len(batch) == 0 {
		return
	}
	start := time.Now()
	if err := a.archive.WriteBatch(batch); err != nil {
		a.obs.LogError("archive_write_failed", err,
			ports.Field{Key: "archive", Value: a.archive.Name()},
			ports.Field{Key: "records", Value: len(batch)})
		a.obs.IncCounter(ports.MetricArchiveDropped, float64(len(batch)))
		return
	}
	a.obs.ObserveLatency(ports.MetricArchiveLatency, time.Since(start).Seconds())
	a.obs.IncCounter(ports.MetricArchived, float64(len(batch)))
	a.obs.SetGauge(ports.MetricArchiveQueueLen, float64(len(a.ch)))
}
