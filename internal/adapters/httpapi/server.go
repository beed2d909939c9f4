package httpapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ghalamif/sensorboard/internal/domain"
	"github.com/ghalamif/sensorboard/internal/ports"
	"github.com/ghalamif/sensorboard/internal/view"
)

const maxIngestBytes = 1 << 20

// Options wires the reader surface to a running board.
type Options struct {
	SessionID string
	Window    ports.Window
	// Ingest pushes one manual delivery and returns the stored records.
	Ingest  func(domain.Message) []domain.Record
	Deliver ports.Deliver
	Pollers []ports.Poller
	// Redraw asks the refresher for an immediate frame. Optional.
	Redraw    func()
	TableRows int
	Gatherer  prometheus.Gatherer
	Logger    *slog.Logger
}

type api struct {
	opts Options
}

// New returns the router for the reader surface.
func New(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	a := &api{opts: opts}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		Write(rw, http.StatusOK, Response{Message: "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/window", a.window)
		r.Get("/view", a.view)
		r.Get("/stats", a.stats)
		r.Post("/clear", a.clear)
		r.Post("/poll", a.poll)
		r.Post("/ingest", a.ingest)
	})
	return r
}

type windowResponse struct {
	Records []domain.Record `json:"records"`
	LastSeq uint64          `json:"last_seq"`
}

func (a *api) window(rw http.ResponseWriter, r *http.Request) {
	var recs []domain.Record
	if s := r.URL.Query().Get("since"); s != "" {
		seq, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			badParam(rw, "since", err)
			return
		}
		recs = a.opts.Window.Since(seq)
	} else {
		n, ok := intParam(rw, r, "n")
		if !ok {
			return
		}
		recs = a.opts.Window.Snapshot(n)
	}
	if recs == nil {
		recs = []domain.Record{}
	}
	resp := windowResponse{Records: recs, LastSeq: a.opts.Window.Stats().LastSeq}
	if len(recs) > 0 {
		resp.LastSeq = recs[len(recs)-1].Seq
	}
	Write(rw, http.StatusOK, resp)
}

func (a *api) view(rw http.ResponseWriter, r *http.Request) {
	n, ok := intParam(rw, r, "n")
	if !ok {
		return
	}
	rows := a.opts.TableRows
	if s := r.URL.Query().Get("rows"); s != "" {
		if rows, ok = intParam(rw, r, "rows"); !ok {
			return
		}
	}
	Write(rw, http.StatusOK, view.Build(a.opts.Window.Snapshot(n), view.Options{TableRows: rows}))
}

type statsResponse struct {
	SessionID string `json:"session_id"`
	ports.WindowStats
}

func (a *api) stats(rw http.ResponseWriter, _ *http.Request) {
	Write(rw, http.StatusOK, statsResponse{SessionID: a.opts.SessionID, WindowStats: a.opts.Window.Stats()})
}

func (a *api) clear(rw http.ResponseWriter, _ *http.Request) {
	a.opts.Window.Clear()
	a.opts.Logger.Info("window cleared", slog.String("session", a.opts.SessionID))
	a.redraw()
	Write(rw, http.StatusOK, statsResponse{SessionID: a.opts.SessionID, WindowStats: a.opts.Window.Stats()})
}

func (a *api) poll(rw http.ResponseWriter, r *http.Request) {
	if len(a.opts.Pollers) == 0 {
		Write(rw, http.StatusConflict, Response{Message: "no pollable sources configured"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	var apiErrs []Error
	for _, p := range a.opts.Pollers {
		if err := p.PollOnce(ctx, a.opts.Deliver); err != nil {
			apiErrs = append(apiErrs, Error{Field: p.Name(), Detail: err.Error()})
		}
	}
	a.redraw()
	if len(apiErrs) > 0 {
		Write(rw, http.StatusBadGateway, Response{Message: "poll failed", Errors: apiErrs})
		return
	}
	Write(rw, http.StatusOK, Response{Message: fmt.Sprintf("polled %d sources", len(a.opts.Pollers))})
}

func (a *api) ingest(rw http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(rw, r.Body, maxIngestBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			Write(rw, http.StatusRequestEntityTooLarge, Response{Message: "body too large"})
			return
		}
		Write(rw, http.StatusBadRequest, Response{Message: "read body", Detail: err.Error()})
		return
	}
	source := r.URL.Query().Get("source")
	if source == "" {
		source = "api"
	}
	stored := a.opts.Ingest(domain.Message{
		Source:   source,
		Topic:    r.URL.Path,
		Payload:  body,
		Received: time.Now(),
		Batch:    true,
	})
	a.redraw()
	resp := windowResponse{Records: stored}
	if len(stored) > 0 {
		resp.LastSeq = stored[len(stored)-1].Seq
	}
	Write(rw, http.StatusAccepted, resp)
}

func (a *api) redraw() {
	if a.opts.Redraw != nil {
		a.opts.Redraw()
	}
}

func intParam(rw http.ResponseWriter, r *http.Request, name string) (int, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		if err == nil {
			err = errors.New("must be >= 0")
		}
		badParam(rw, name, err)
		return 0, false
	}
	return n, true
}

func badParam(rw http.ResponseWriter, name string, err error) {
	Write(rw, http.StatusBadRequest, Response{
		Message: "invalid query parameter",
		Errors:  []Error{{Field: name, Detail: err.Error()}},
	})
}
