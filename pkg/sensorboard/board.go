package sensorboard

import (
	"context"
	"fmt"

	"github.com/coder/quartz"
)

// Board is a convenience builder that lets callers say Conf → StreamIN →
// StreamOUT without touching the underlying wiring.
type Board struct {
	cfg  *Config
	opts []SessionOption
}

// BoardOption mutates the Board after configuration is loaded.
type BoardOption func(*Board)

// StreamInOption configures the producer side: sources, capture, clock.
type StreamInOption func(*Board)

// StreamOutOption configures the reader side: renderer, archive, telemetry.
type StreamOutOption func(*Board)

// Conf loads YAML from disk, applies BoardOption values, and returns a Board.
func Conf(path string, opts ...BoardOption) (*Board, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	return ConfFromConfig(cfg, opts...)
}

// ConfFromConfig bootstraps a Board from an in-memory Config.
func ConfFromConfig(cfg *Config, opts ...BoardOption) (*Board, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	b := &Board{cfg: cfg}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b, nil
}

// Config returns the underlying configuration so callers can tweak it
// before building a session.
func (b *Board) Config() *Config {
	if b == nil {
		return nil
	}
	return b.cfg
}

// Options appends raw SessionOption values for advanced scenarios.
func (b *Board) Options(opts ...SessionOption) *Board {
	if b == nil {
		return nil
	}
	b.appendOptions(opts...)
	return b
}

// StreamIN records producer-side overrides.
func (b *Board) StreamIN(opts ...StreamInOption) *Board {
	if b == nil {
		return nil
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// StreamOUT records reader-side overrides and builds a Session ready to run.
func (b *Board) StreamOUT(opts ...StreamOutOption) (*Session, error) {
	if b == nil {
		return nil, fmt.Errorf("board is nil")
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return NewSession(b.cfg, b.opts...)
}

// Run is a shortcut for StreamOUT + Session.Run.
func (b *Board) Run(ctx context.Context, opts ...StreamOutOption) error {
	s, err := b.StreamOUT(opts...)
	if err != nil {
		return err
	}
	return s.Run(ctx)
}

// WithBoardOptions appends SessionOption values during Conf.
func WithBoardOptions(opts ...SessionOption) BoardOption {
	return func(b *Board) {
		if b != nil {
			b.appendOptions(opts...)
		}
	}
}

// StreamInSource adds a custom feed (serial port, simulator, another broker).
func StreamInSource(src Source) StreamInOption {
	return func(b *Board) {
		if b != nil && src != nil {
			b.appendOptions(WithSource(src))
		}
	}
}

// StreamInRecorder captures every pushed record with r.
func StreamInRecorder(r Recorder) StreamInOption {
	return func(b *Board) {
		if b != nil && r != nil {
			b.appendOptions(WithRecorder(r))
		}
	}
}

// StreamInClock drives the redraw cadence and generator from c.
func StreamInClock(c quartz.Clock) StreamInOption {
	return func(b *Board) {
		if b != nil && c != nil {
			b.appendOptions(WithClock(c))
		}
	}
}

// StreamInObservability overrides the default Prometheus-based stack.
func StreamInObservability(obs Observability) StreamInOption {
	return func(b *Board) {
		if b != nil && obs != nil {
			b.appendOptions(WithObservability(obs))
		}
	}
}

// StreamOutRenderer sets what draws each frame.
func StreamOutRenderer(r Renderer) StreamOutOption {
	return func(b *Board) {
		if b != nil && r != nil {
			b.appendOptions(WithRenderer(r))
		}
	}
}

// StreamOutArchive injects a custom Archive implementation.
func StreamOutArchive(a Archive) StreamOutOption {
	return func(b *Board) {
		if b != nil && a != nil {
			b.appendOptions(WithArchive(a))
		}
	}
}

// StreamOutObservability replaces the default observability backend.
func StreamOutObservability(obs Observability) StreamOutOption {
	return func(b *Board) {
		if b != nil && obs != nil {
			b.appendOptions(WithObservability(obs))
		}
	}
}

// StreamOutCallback installs a renderer built from a simple callback.
func StreamOutCallback(name string, fn ViewFunc) StreamOutOption {
	return func(b *Board) {
		if b != nil {
			b.appendOptions(WithRenderer(NewCallbackRenderer(name, fn)))
		}
	}
}

func (b *Board) appendOptions(opts ...SessionOption) {
	for _, opt := range opts {
		if opt != nil {
			b.opts = append(b.opts, opt)
		}
	}
}
