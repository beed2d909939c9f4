package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/ghalamif/sensorboard/internal/adapters/decoder"
	"github.com/ghalamif/sensorboard/internal/adapters/window"
	"github.com/ghalamif/sensorboard/internal/domain"
	"github.com/ghalamif/sensorboard/internal/ports"
)

type stubPoller struct {
	name string
	err  error
}

func (p stubPoller) Name() string                                   { return p.name }
func (p stubPoller) Run(ctx context.Context, _ ports.Deliver) error { <-ctx.Done(); return nil }

func (p stubPoller) PollOnce(_ context.Context, deliver ports.Deliver) error {
	if p.err != nil {
		deliver(domain.FailureMessage(p.name, p.err))
		return p.err
	}
	deliver(domain.Message{Source: p.name, Payload: []byte(`{"temperature":22}`)})
	return nil
}

type fixture struct {
	handler http.Handler
	window  *window.Window
	redraws atomic.Int32
}

func newFixture(t *testing.T, pollers ...ports.Poller) *fixture {
	t.Helper()
	w := window.MustNew(5)
	dec := decoder.New()
	ingest := func(msg domain.Message) []domain.Record {
		if msg.Batch {
			recs := dec.DecodeAll(msg.Payload)
			for i := range recs {
				recs[i].Source = msg.Source
			}
			return w.PushBatch(recs...)
		}
		rec, _ := dec.FromMessage(msg)
		return []domain.Record{w.Push(rec)}
	}
	f := &fixture{window: w}
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "board_test_total", Help: "test"}))
	f.handler = New(Options{
		SessionID: "session-1",
		Window:    w,
		Ingest:    ingest,
		Deliver:   func(m domain.Message) { ingest(m) },
		Pollers:   pollers,
		Redraw:    func() { f.redraws.Add(1) },
		TableRows: 2,
		Gatherer:  reg,
	})
	return f
}

func (f *fixture) do(t *testing.T, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

type windowBody struct {
	Records []struct {
		Seq    uint64         `json:"seq"`
		Source string         `json:"source"`
		Fields map[string]any `json:"fields"`
	} `json:"records"`
	LastSeq uint64 `json:"last_seq"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestIngestThenReadWindow(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/ingest?source=lab", []byte(`[{"temperature":20},{"temperature":21},{"temperature":22}]`))
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, uint64(3), decode[windowBody](t, rec).LastSeq)
	require.Equal(t, int32(1), f.redraws.Load())

	rec = f.do(t, http.MethodGet, "/api/window?n=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[windowBody](t, rec)
	require.Len(t, body.Records, 2)
	require.Equal(t, uint64(2), body.Records[0].Seq)
	require.Equal(t, "lab", body.Records[1].Source)
	require.Equal(t, float64(22), body.Records[1].Fields["temperature"])

	rec = f.do(t, http.MethodGet, "/api/window?since=1", nil)
	body = decode[windowBody](t, rec)
	require.Len(t, body.Records, 2)
	require.Equal(t, uint64(3), body.LastSeq)

	rec = f.do(t, http.MethodGet, "/api/window?since=3", nil)
	body = decode[windowBody](t, rec)
	require.Empty(t, body.Records)
	require.Equal(t, uint64(3), body.LastSeq)
}

func TestWindowRejectsBadParams(t *testing.T) {
	f := newFixture(t)
	for _, target := range []string{"/api/window?n=-1", "/api/window?n=abc", "/api/window?since=x", "/api/view?rows=-2"} {
		rec := f.do(t, http.MethodGet, target, nil)
		require.Equal(t, http.StatusBadRequest, rec.Code, target)
		resp := decode[Response](t, rec)
		require.Len(t, resp.Errors, 1, target)
	}
}

type viewBody struct {
	Total     int                       `json:"total"`
	Columns   []string                  `json:"columns"`
	Rows      []json.RawMessage         `json:"rows"`
	Summaries map[string]map[string]any `json:"summaries"`
}

func TestViewAndStats(t *testing.T) {
	f := newFixture(t)
	for _, p := range []string{`{"t":1}`, `{"t":2}`, `not json`, `{"t":4}`, `{"t":5}`, `{"t":6}`} {
		f.do(t, http.MethodPost, "/api/ingest", []byte(p))
	}

	rec := f.do(t, http.MethodGet, "/api/view", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[viewBody](t, rec)
	require.Equal(t, 5, v.Total)
	require.Equal(t, []string{"t", "payload"}, v.Columns)
	require.Len(t, v.Rows, 2)
	require.Equal(t, float64(4), v.Summaries["t"]["count"])

	rec = f.do(t, http.MethodGet, "/api/stats", nil)
	stats := decode[map[string]any](t, rec)
	require.Equal(t, "session-1", stats["session_id"])
	require.Equal(t, float64(5), stats["len"])
	require.Equal(t, float64(1), stats["evicted"])
	require.Equal(t, float64(6), stats["last_seq"])
}

func TestNonFiniteValuesKeepReadsWorking(t *testing.T) {
	f := newFixture(t)

	body, err := msgpack.Marshal(map[string]any{"t": math.NaN()})
	require.NoError(t, err)
	rec := f.do(t, http.MethodPost, "/api/ingest?source=esp32", body)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	f.window.Push(domain.NewRecord("t", math.Inf(1), "h", 40.0))

	rec = f.do(t, http.MethodGet, "/api/window", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got := decode[windowBody](t, rec)
	require.Len(t, got.Records, 2)
	require.Contains(t, got.Records[0].Fields, "t")
	require.Nil(t, got.Records[0].Fields["t"])
	require.Nil(t, got.Records[1].Fields["t"])
	require.Equal(t, float64(40), got.Records[1].Fields["h"])

	rec = f.do(t, http.MethodGet, "/api/view", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	v := decode[viewBody](t, rec)
	require.Equal(t, 2, v.Total)
	require.NotContains(t, v.Summaries, "t")
}

func TestClearKeepsSequence(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodPost, "/api/ingest", []byte(`{"a":1}`))

	rec := f.do(t, http.MethodPost, "/api/clear", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 0, f.window.Len())

	rec = f.do(t, http.MethodPost, "/api/ingest", []byte(`{"a":2}`))
	require.Equal(t, uint64(2), decode[windowBody](t, rec).LastSeq)
}

func TestPoll(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/poll", nil)
	require.Equal(t, http.StatusConflict, rec.Code)

	f = newFixture(t, stubPoller{name: "http"}, stubPoller{name: "broken", err: errors.New("HTTP 503: down")})
	rec = f.do(t, http.MethodPost, "/api/poll", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	resp := decode[Response](t, rec)
	require.Equal(t, []Error{{Field: "broken", Detail: "HTTP 503: down"}}, resp.Errors)

	snap := f.window.Snapshot(0)
	require.Len(t, snap, 2)
	require.False(t, snap[0].IsError())
	require.True(t, snap[1].IsError())
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "board_test_total"))
}
