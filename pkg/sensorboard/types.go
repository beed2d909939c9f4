package sensorboard

import (
	"github.com/ghalamif/sensorboard/internal/domain"
	"github.com/ghalamif/sensorboard/internal/ports"
	"github.com/ghalamif/sensorboard/internal/view"
)

// Record is one decoded reading as stored in the window.
type Record = domain.Record

// Field is a single key/value inside a Record.
type Field = domain.Field

// Message is one inbound delivery handed over by a Source.
type Message = domain.Message

// Kind tells how the decoder arrived at a record.
type Kind = domain.Kind

// Source is a live feed running in its own goroutine.
type Source = ports.Source

// Poller is a Source that can take a single reading on demand.
type Poller = ports.Poller

// Deliver is how sources hand messages to the board. Safe for concurrent use.
type Deliver = ports.Deliver

// Window is the bounded sliding window of recent records.
type Window = ports.Window

// WindowStats exposes window counters.
type WindowStats = ports.WindowStats

// Archive receives batches of pushed records for long-term storage.
type Archive = ports.Archive

// Recorder captures pushed records for replay.
type Recorder = ports.Recorder

// Renderer draws one dashboard frame per redraw.
type Renderer = ports.Renderer

// Observability emits logs and metrics about ingest, archive and redraw.
type Observability = ports.Observability

// LogField is a structured log/metric field used by Observability implementations.
type LogField = ports.Field

type (
	// View is a render-ready summary of a window snapshot.
	View = view.View
	// Row is one table row of a View.
	Row = view.Row
	// Point is one chart sample of a View series.
	Point = view.Point
	// Summary holds count/min/max/mean/last of a numeric field.
	Summary = view.Summary
)

// Decoder outcomes.
const (
	KindStructured = domain.KindStructured
	KindPayload    = domain.KindPayload
	KindError      = domain.KindError
	KindInfo       = domain.KindInfo
)
