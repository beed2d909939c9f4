package sensorboard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ghalamif/sensorboard/internal/adapters/capture"
	"github.com/ghalamif/sensorboard/internal/adapters/decoder"
	"github.com/ghalamif/sensorboard/internal/adapters/httpapi"
	"github.com/ghalamif/sensorboard/internal/adapters/observability"
	"github.com/ghalamif/sensorboard/internal/adapters/sink"
	"github.com/ghalamif/sensorboard/internal/adapters/window"
	"github.com/ghalamif/sensorboard/internal/app/pipeline"
	"github.com/ghalamif/sensorboard/internal/domain"
	"github.com/ghalamif/sensorboard/internal/logging"
	"github.com/ghalamif/sensorboard/internal/ports"
)

// SessionOption customizes the dependencies used by Session.
type SessionOption func(*sessionOverrides)

type sessionOverrides struct {
	sources       []Source
	archive       Archive
	renderer      Renderer
	observability Observability
	recorder      Recorder
	clock         quartz.Clock
	logger        *slog.Logger
	registry      *prometheus.Registry
}

// WithSource adds a feed next to the ones enabled in the config.
func WithSource(src Source) SessionOption {
	return func(o *sessionOverrides) {
		if src != nil {
			o.sources = append(o.sources, src)
		}
	}
}

// WithArchive replaces the Postgres archive so records can be copied to any
// database or API.
func WithArchive(a Archive) SessionOption {
	return func(o *sessionOverrides) {
		o.archive = a
	}
}

// WithRenderer sets what draws each frame. The default logs one line per
// frame.
func WithRenderer(r Renderer) SessionOption {
	return func(o *sessionOverrides) {
		o.renderer = r
	}
}

// WithObservability plugs in a custom observability backend.
func WithObservability(obs Observability) SessionOption {
	return func(o *sessionOverrides) {
		o.observability = obs
	}
}

// WithRecorder replaces the capture file recorder.
func WithRecorder(r Recorder) SessionOption {
	return func(o *sessionOverrides) {
		o.recorder = r
	}
}

// WithClock drives redraws and the generator from c instead of wall time.
func WithClock(c quartz.Clock) SessionOption {
	return func(o *sessionOverrides) {
		o.clock = c
	}
}

// WithLogger replaces the logger built from the log config.
func WithLogger(l *slog.Logger) SessionOption {
	return func(o *sessionOverrides) {
		o.logger = l
	}
}

// WithRegistry registers metrics on reg instead of a fresh registry.
func WithRegistry(reg *prometheus.Registry) SessionOption {
	return func(o *sessionOverrides) {
		o.registry = reg
	}
}

// Session owns one window and everything that feeds and reads it: sources,
// the ingest path, the redraw loop, the archive and the reader API. Nothing
// is shared between sessions.
type Session struct {
	id       string
	cfg      *Config
	logger   *slog.Logger
	registry *prometheus.Registry
	obs      ports.Observability
	clock    quartz.Clock

	window    *window.Window
	ingestor  *pipeline.Ingestor
	archiver  *pipeline.Archiver
	refresher *pipeline.Refresher
	sources   []ports.Source
	pollers   []ports.Poller
	archive   ports.Archive
	recorder  ports.Recorder
	renderer  ports.Renderer
	db        *sql.DB

	apiSrv   *http.Server
	apiAddr  string
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  bool
	stopOnce sync.Once
	mu       sync.Mutex
}

// NewSession bootstraps the adapters enabled in cfg. SessionOption values
// override any of them.
func NewSession(cfg *Config, opts ...SessionOption) (*Session, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	var overrides sessionOverrides
	for _, opt := range opts {
		if opt != nil {
			opt(&overrides)
		}
	}

	s := &Session{id: uuid.NewString(), cfg: cfg}

	s.logger = overrides.logger
	if s.logger == nil {
		s.logger = logging.New(os.Stderr, cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))
	}
	s.logger = s.logger.With(slog.String("session", s.id))

	s.registry = overrides.registry
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}

	s.obs = overrides.observability
	if s.obs == nil {
		s.obs = observability.NewPromObs(s.registry, s.logger)
	}

	s.clock = overrides.clock
	if s.clock == nil {
		s.clock = quartz.NewReal()
	}

	w, err := window.New(cfg.Policy.Capacity)
	if err != nil {
		return nil, err
	}
	s.window = w

	sources, err := buildSources(cfg, s.clock)
	if err != nil {
		return nil, err
	}
	s.sources = append(sources, overrides.sources...)
	for _, src := range s.sources {
		if p, ok := src.(ports.Poller); ok {
			s.pollers = append(s.pollers, p)
		}
	}

	s.recorder = overrides.recorder
	if s.recorder == nil && cfg.Capture.Path != "" {
		rec, err := capture.NewFileRecorder(cfg.Capture.Path)
		if err != nil {
			return nil, fmt.Errorf("capture recorder: %w", err)
		}
		s.recorder = rec
	}

	s.archive = overrides.archive
	if s.archive == nil && cfg.Archive.Enabled() {
		db, err := sql.Open("postgres", cfg.Archive.ConnString)
		if err != nil {
			return nil, errors.Join(err, s.closeRecorder())
		}
		s.db = db
		s.archive = sink.NewPostgresArchive(db, cfg.Archive.Table, s.id)
	}

	s.renderer = overrides.renderer
	if s.renderer == nil {
		s.renderer = NewLogRenderer(s.logger)
	}

	var ingestOpts []pipeline.IngestOption
	if s.recorder != nil {
		ingestOpts = append(ingestOpts, pipeline.WithRecorder(s.recorder))
	}
	if s.archive != nil {
		s.archiver = pipeline.NewArchiver(s.archive, cfg.Policy, s.obs)
		ingestOpts = append(ingestOpts, pipeline.WithArchiver(s.archiver))
	}
	s.ingestor = pipeline.NewIngestor(s.window, decoder.New(), s.obs, ingestOpts...)
	s.refresher = pipeline.NewRefresher(s.window, s.renderer, cfg.Policy, s.obs, s.clock)

	return s, nil
}

// Start launches sources, the archive loop, the redraw loop and the API
// server. It returns immediately; call Run to block on a context instead.
func (s *Session) Start() error {
	if s == nil {
		return fmt.Errorf("session is nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return fmt.Errorf("session %s already started", s.id)
	}

	if pa, ok := s.archive.(*sink.PostgresArchive); ok {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := pa.EnsureSchema(ctx)
		cancel()
		if err != nil {
			return err
		}
	}

	var ln net.Listener
	if !s.cfg.API.Disabled {
		var err error
		ln, err = net.Listen("tcp", s.cfg.API.Addr)
		if err != nil {
			return fmt.Errorf("api listen %s: %w", s.cfg.API.Addr, err)
		}
		s.apiAddr = ln.Addr().String()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.started = true

	s.goRun(func() {
		_ = pipeline.RunSources(ctx, s.sources, s.ingestor.Deliver, s.obs)
	})
	if s.archiver != nil {
		s.goRun(func() { _ = s.archiver.Run(ctx) })
	}
	s.goRun(func() { _ = s.refresher.Run(ctx) })
	s.goRun(func() { s.recordGauges(ctx, time.Second) })

	if ln != nil {
		s.apiSrv = &http.Server{
			Handler:           s.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		s.goRun(func() {
			if err := s.apiSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.obs.LogError("api_server_exited", err)
			}
		})
	}

	s.obs.LogInfo("session_started",
		ports.Field{Key: "capacity", Value: s.window.Cap()},
		ports.Field{Key: "sources", Value: len(s.sources)},
		ports.Field{Key: "api", Value: s.apiAddr})
	return nil
}

// Run starts the session and blocks until ctx is cancelled, then shuts
// down gracefully.
func (s *Session) Run(ctx context.Context) error {
	if err := s.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops every goroutine the session started, flushes the archive
// queue and closes the capture file and DB connection.
func (s *Session) Shutdown(ctx context.Context) error {
	var errs []error
	s.stopOnce.Do(func() {
		if s.apiSrv != nil {
			if err := s.apiSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs = append(errs, err)
			}
		}
		if s.cancel != nil {
			s.cancel()
		}

		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("waiting for session goroutines: %w", ctx.Err()))
		}

		errs = append(errs, s.closeRecorder())
		if s.db != nil {
			if err := s.db.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		s.obs.LogInfo("session_stopped", ports.Field{Key: "stats", Value: s.window.Stats()})
	})
	return errors.Join(errs...)
}

// ID identifies this session; archived rows carry it.
func (s *Session) ID() string { return s.id }

// Window returns the session's window. Readers may Snapshot it at any time.
func (s *Session) Window() Window { return s.window }

// Registry holds the session's metrics.
func (s *Session) Registry() *prometheus.Registry { return s.registry }

// APIAddr is the address the reader API listens on once started.
func (s *Session) APIAddr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apiAddr
}

// Ingest decodes raw and pushes the result as if a source had delivered
// it. A JSON array of objects becomes one record per element.
func (s *Session) Ingest(raw []byte) []Record {
	return s.ingestor.Accept(domain.Message{
		Source:   "api",
		Payload:  raw,
		Received: s.clock.Now(),
		Batch:    true,
	})
}

// Deliver hands msg to the ingest path. It is safe to call from any
// goroutine.
func (s *Session) Deliver(msg Message) {
	s.ingestor.Deliver(msg)
}

// Redraw requests a frame outside the regular cadence.
func (s *Session) Redraw() {
	s.refresher.Trigger()
}

// Clear empties the window and redraws. Sequence numbers keep counting.
func (s *Session) Clear() {
	s.window.Clear()
	s.refresher.Trigger()
}

// PollOnce asks every pollable source for one reading.
func (s *Session) PollOnce(ctx context.Context) error {
	var errs []error
	for _, p := range s.pollers {
		if err := p.PollOnce(ctx, s.ingestor.Deliver); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
		}
	}
	s.refresher.Trigger()
	return errors.Join(errs...)
}

// Handler returns the reader HTTP surface for mounting in another server.
func (s *Session) Handler() http.Handler {
	return httpapi.New(httpapi.Options{
		SessionID: s.id,
		Window:    s.window,
		Ingest:    s.ingestor.Accept,
		Deliver:   s.ingestor.Deliver,
		Pollers:   s.pollers,
		Redraw:    s.refresher.Trigger,
		TableRows: s.cfg.Policy.TableRows,
		Gatherer:  s.registry,
		Logger:    s.logger,
	})
}

func (s *Session) goRun(fn func()) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn()
	}()
}

func (s *Session) recordGauges(ctx context.Context, interval time.Duration) {
	ticker := s.clock.NewTicker(interval, "gauges")
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.obs.SetGauge(ports.MetricWindowLength, float64(s.window.Len()))
			if s.archiver != nil {
				s.obs.SetGauge(ports.MetricArchiveQueueLen, float64(s.archiver.Len()))
			}
		}
	}
}

func (s *Session) closeRecorder() error {
	if s.recorder == nil {
		return nil
	}
	return s.recorder.Close()
}
