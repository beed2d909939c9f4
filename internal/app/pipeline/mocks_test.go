package pipeline

import (
	"context"
	"errors"
	"sync"

	"github.com/ghalamif/sensorboard/internal/domain"
	"github.com/ghalamif/sensorboard/internal/ports"
	"github.com/ghalamif/sensorboard/internal/view"
)

type mockObs struct {
	mu       sync.Mutex
	errors   []error
	infos    []string
	counters map[string]float64
	gauges   map[string]float64
	drops    int
}

func newMockObs() *mockObs {
	return &mockObs{counters: map[string]float64{}, gauges: map[string]float64{}}
}

func (m *mockObs) LogInfo(msg string, _ ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos = append(m.infos, msg)
}

func (m *mockObs) LogError(_ string, err error, _ ...ports.Field) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, err)
}

func (m *mockObs) LogCritical(string, error, ...ports.Field) {}
func (m *mockObs) ObserveLatency(string, float64)            {}

func (m *mockObs) IncCounter(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += v
}

func (m *mockObs) SetGauge(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = v
}

func (m *mockObs) RecordArchiveDrop(domain.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drops++
}

func (m *mockObs) counter(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[name]
}

func (m *mockObs) gauge(name string) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gauges[name]
}

type mockArchive struct {
	mu      sync.Mutex
	batches [][]domain.Record
	fail    bool
}

func (m *mockArchive) Name() string { return "mock" }

func (m *mockArchive) WriteBatch(rs []domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("archive down")
	}
	m.batches = append(m.batches, append([]domain.Record(nil), rs...))
	return nil
}

func (m *mockArchive) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, b := range m.batches {
		n += len(b)
	}
	return n
}

type mockRecorder struct {
	mu   sync.Mutex
	seqs []uint64
}

func (m *mockRecorder) Append(r domain.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seqs = append(m.seqs, r.Seq)
	return nil
}

func (m *mockRecorder) Close() error { return nil }

type mockRenderer struct {
	mu    sync.Mutex
	views []view.View
	drawn chan struct{}
}

func newMockRenderer() *mockRenderer {
	return &mockRenderer{drawn: make(chan struct{}, 64)}
}

func (m *mockRenderer) Name() string { return "mock" }

func (m *mockRenderer) Render(_ context.Context, v view.View) error {
	m.mu.Lock()
	m.views = append(m.views, v)
	m.mu.Unlock()
	m.drawn <- struct{}{}
	return nil
}

func (m *mockRenderer) last() view.View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.views[len(m.views)-1]
}
