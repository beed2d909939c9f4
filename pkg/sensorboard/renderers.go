package sensorboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrRendererClosed is returned when a channel renderer is drawn to after
// being closed.
var ErrRendererClosed = errors.New("sensorboard: renderer closed")

// ViewFunc receives every frame drawn by the board.
type ViewFunc func(View) error

// NewCallbackRenderer adapts a ViewFunc into a Renderer so callers can plug
// arbitrary functions without defining structs.
func NewCallbackRenderer(name string, fn ViewFunc) Renderer {
	if name == "" {
		name = "callback"
	}
	return &callbackRenderer{name: name, fn: fn}
}

// NewChannelRenderer exposes frames via a channel; it returns the renderer,
// the read-only channel, and a close function that the caller should invoke
// during shutdown. A slow reader delays the next redraw, never ingestion.
func NewChannelRenderer(name string, buffer int) (Renderer, <-chan View, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan View, buffer)
	r := &channelRenderer{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return r, ch, func() { r.close() }
}

// NewLogRenderer writes one structured log line per frame with the window
// size and the latest reading. It is the default when no renderer is given.
func NewLogRenderer(logger *slog.Logger) Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &logRenderer{logger: logger}
}

type callbackRenderer struct {
	name string
	fn   ViewFunc
}

func (r *callbackRenderer) Render(_ context.Context, v View) error {
	if r.fn == nil {
		return fmt.Errorf("callback renderer %q: nil handler", r.name)
	}
	return r.fn(v)
}

func (r *callbackRenderer) Name() string { return r.name }

type channelRenderer struct {
	name   string
	ch     chan View
	closed chan struct{}
	once   sync.Once
	mu     sync.RWMutex
}

func (r *channelRenderer) Render(ctx context.Context, v View) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	select {
	case <-r.closed:
		return ErrRendererClosed
	default:
	}

	select {
	case <-r.closed:
		return ErrRendererClosed
	case <-ctx.Done():
		return ctx.Err()
	case r.ch <- v:
		return nil
	}
}

func (r *channelRenderer) Name() string { return r.name }

func (r *channelRenderer) close() {
	r.once.Do(func() {
		close(r.closed)
		r.mu.Lock()
		close(r.ch)
		r.mu.Unlock()
	})
}

type logRenderer struct {
	logger *slog.Logger
}

func (r *logRenderer) Render(ctx context.Context, v View) error {
	attrs := []slog.Attr{
		slog.Int("records", v.Total),
		slog.Int("errors", v.Errors),
		slog.Int("columns", len(v.Columns)),
	}
	if v.Latest != nil {
		attrs = append(attrs, slog.Uint64("seq", v.Latest.Seq), slog.String("source", v.Latest.Source))
		group := make([]any, 0, v.Latest.Len())
		for _, f := range v.Latest.Fields {
			group = append(group, slog.Any(f.Key, f.Value))
		}
		attrs = append(attrs, slog.Group("latest", group...))
	}
	r.logger.LogAttrs(ctx, slog.LevelInfo, "dashboard frame", attrs...)
	return nil
}

func (r *logRenderer) Name() string { return "log" }
