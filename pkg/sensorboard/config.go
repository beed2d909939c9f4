package sensorboard

import (
	"github.com/ghalamif/sensorboard/internal/adapters/capture"
	"github.com/ghalamif/sensorboard/internal/adapters/httppoll"
	"github.com/ghalamif/sensorboard/internal/adapters/mqtt"
	"github.com/ghalamif/sensorboard/internal/adapters/opcua"
	"github.com/ghalamif/sensorboard/internal/adapters/redis"
	"github.com/ghalamif/sensorboard/internal/adapters/synthetic"
	"github.com/ghalamif/sensorboard/internal/adapters/ws"
	"github.com/ghalamif/sensorboard/internal/app/config"
	"github.com/ghalamif/sensorboard/internal/ports"
)

// Config re-exports the root configuration struct so downstream projects can
// construct or modify it programmatically.
type Config = config.Config

type (
	// Policy controls window size, redraw cadence and archive batching.
	Policy = ports.Policy
	// SourcesConfig lists the live feeds.
	SourcesConfig = config.SourcesConfig
	// MQTTConfig subscribes to broker topics.
	MQTTConfig = mqtt.Config
	// HTTPPollConfig polls a JSON endpoint.
	HTTPPollConfig = httppoll.Config
	// WebSocketConfig reads a websocket feed.
	WebSocketConfig = ws.Config
	// RedisConfig listens on pub/sub channels.
	RedisConfig = redis.Config
	// OPCUAConfig holds connection + node details.
	OPCUAConfig = opcua.Config
	// OPCUANodeConfig describes a monitored tag.
	OPCUANodeConfig = opcua.NodeConfig
	// SyntheticConfig drives the built-in sensor generator.
	SyntheticConfig = config.SyntheticConfig
	// GeneratorConfig configures a standalone synthetic source.
	GeneratorConfig = synthetic.Config
	// ReplayConfig replays a capture file.
	ReplayConfig = capture.ReplayConfig
	// ArchiveConfig configures the Postgres archive.
	ArchiveConfig = config.ArchiveConfig
	// CaptureConfig configures the capture recorder.
	CaptureConfig = config.CaptureConfig
	// APIConfig configures the reader HTTP surface.
	APIConfig = config.APIConfig
	// LogConfig selects log level and format.
	LogConfig = config.LogConfig
)

// LoadConfig loads YAML from disk using the internal config reader.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// ParseConfig reads YAML from memory.
func ParseConfig(raw []byte) (*Config, error) {
	return config.Parse(raw)
}

// DefaultConfig returns a config with defaults applied and no sources.
func DefaultConfig() *Config {
	return config.Default()
}
