package sensorboard

import (
	"log/slog"

	base "github.com/ghalamif/sensorboard/pkg/sensorboard"
)

// Re-exported errors for convenience.
var (
	ErrInvalidCapacity = base.ErrInvalidCapacity
	ErrRendererClosed  = base.ErrRendererClosed
)

// Type aliases so consumers can import github.com/ghalamif/sensorboard directly.
type (
	Config          = base.Config
	Policy          = base.Policy
	SourcesConfig   = base.SourcesConfig
	MQTTConfig      = base.MQTTConfig
	HTTPPollConfig  = base.HTTPPollConfig
	WebSocketConfig = base.WebSocketConfig
	RedisConfig     = base.RedisConfig
	OPCUAConfig     = base.OPCUAConfig
	OPCUANodeConfig = base.OPCUANodeConfig
	SyntheticConfig = base.SyntheticConfig
	GeneratorConfig = base.GeneratorConfig
	ReplayConfig    = base.ReplayConfig
	ArchiveConfig   = base.ArchiveConfig
	CaptureConfig   = base.CaptureConfig
	APIConfig       = base.APIConfig
	LogConfig       = base.LogConfig
	Board           = base.Board
	BoardOption     = base.BoardOption
	StreamInOption  = base.StreamInOption
	StreamOutOption = base.StreamOutOption
	Session         = base.Session
	SessionOption   = base.SessionOption
	Record          = base.Record
	Field           = base.Field
	Message         = base.Message
	Source          = base.Source
	Poller          = base.Poller
	Window          = base.Window
	WindowStats     = base.WindowStats
	Archive         = base.Archive
	Recorder        = base.Recorder
	Renderer        = base.Renderer
	Observability   = base.Observability
	View            = base.View
	ViewFunc        = base.ViewFunc
)

// Config helpers.
func LoadConfig(path string) (*Config, error) {
	return base.LoadConfig(path)
}

func DefaultConfig() *Config {
	return base.DefaultConfig()
}

// Board builder helpers.
func Conf(path string, opts ...BoardOption) (*Board, error) {
	return base.Conf(path, opts...)
}

func ConfFromConfig(cfg *Config, opts ...BoardOption) (*Board, error) {
	return base.ConfFromConfig(cfg, opts...)
}

func WithBoardOptions(opts ...SessionOption) BoardOption {
	return base.WithBoardOptions(opts...)
}

func StreamInSource(src Source) StreamInOption {
	return base.StreamInSource(src)
}

func StreamInRecorder(r Recorder) StreamInOption {
	return base.StreamInRecorder(r)
}

func StreamInObservability(obs Observability) StreamInOption {
	return base.StreamInObservability(obs)
}

func StreamOutRenderer(r Renderer) StreamOutOption {
	return base.StreamOutRenderer(r)
}

func StreamOutArchive(a Archive) StreamOutOption {
	return base.StreamOutArchive(a)
}

func StreamOutObservability(obs Observability) StreamOutOption {
	return base.StreamOutObservability(obs)
}

func StreamOutCallback(name string, fn ViewFunc) StreamOutOption {
	return base.StreamOutCallback(name, fn)
}

// Session and options.
func NewSession(cfg *Config, opts ...SessionOption) (*Session, error) {
	return base.NewSession(cfg, opts...)
}

func WithSource(src Source) SessionOption {
	return base.WithSource(src)
}

func WithArchive(a Archive) SessionOption {
	return base.WithArchive(a)
}

func WithRenderer(r Renderer) SessionOption {
	return base.WithRenderer(r)
}

func WithRecorder(r Recorder) SessionOption {
	return base.WithRecorder(r)
}

func WithLogger(l *slog.Logger) SessionOption {
	return base.WithLogger(l)
}

func WithObservability(obs Observability) SessionOption {
	return base.WithObservability(obs)
}

// Window and decoding.
func NewWindow(capacity int) (Window, error) {
	return base.NewWindow(capacity)
}

func Decode(raw []byte) Record {
	return base.Decode(raw)
}

func DecodeAll(raw []byte) []Record {
	return base.DecodeAll(raw)
}

// Renderer adapters.
func NewCallbackRenderer(name string, fn ViewFunc) Renderer {
	return base.NewCallbackRenderer(name, fn)
}

func NewChannelRenderer(name string, buffer int) (Renderer, <-chan View, func()) {
	return base.NewChannelRenderer(name, buffer)
}
