package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ghalamif/sensorboard/internal/adapters/capture"
	"github.com/ghalamif/sensorboard/internal/adapters/httppoll"
	"github.com/ghalamif/sensorboard/internal/adapters/mqtt"
	"github.com/ghalamif/sensorboard/internal/adapters/opcua"
	"github.com/ghalamif/sensorboard/internal/adapters/redis"
	"github.com/ghalamif/sensorboard/internal/adapters/synthetic"
	"github.com/ghalamif/sensorboard/internal/adapters/ws"
	"github.com/ghalamif/sensorboard/internal/ports"
)

type Config struct {
	Policy  ports.Policy  `yaml:"policy"`
	Sources SourcesConfig `yaml:"sources"`
	Archive ArchiveConfig `yaml:"archive"`
	Capture CaptureConfig `yaml:"capture"`
	API     APIConfig     `yaml:"api"`
	Log     LogConfig     `yaml:"log"`
}

// SourcesConfig lists the live feeds. A feed is enabled by giving it an
// address (or enabled: true for the generator).
type SourcesConfig struct {
	MQTT      mqtt.Config          `yaml:"mqtt"`
	HTTP      httppoll.Config      `yaml:"http"`
	WebSocket ws.Config            `yaml:"websocket"`
	Redis     redis.Config         `yaml:"redis"`
	OPCUA     opcua.Config         `yaml:"opcua"`
	Synthetic SyntheticConfig      `yaml:"synthetic"`
	Replay    capture.ReplayConfig `yaml:"replay"`
}

type SyntheticConfig struct {
	Enabled          bool `yaml:"enabled"`
	synthetic.Config `yaml:",inline"`
}

type ArchiveConfig struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

func (a ArchiveConfig) Enabled() bool { return a.ConnString != "" }

type CaptureConfig struct {
	Path string `yaml:"path"`
}

type APIConfig struct {
	Addr     string `yaml:"addr"`
	Disabled bool   `yaml:"disabled"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML, fills defaults and validates.
func Parse(raw []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Default returns a validated config with no sources enabled.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyDefaults() {
	if c.Policy.Capacity == 0 {
		c.Policy.Capacity = 500
	}
	if c.Policy.RedrawInterval == 0 {
		c.Policy.RedrawInterval = 2 * time.Second
	}
	if c.Policy.TableRows == 0 {
		c.Policy.TableRows = 10
	}
	if c.Policy.ArchiveQueueLen == 0 {
		c.Policy.ArchiveQueueLen = 10_000
	}
	if c.Policy.ArchiveBatchSize == 0 {
		c.Policy.ArchiveBatchSize = 500
	}
	if c.Policy.IdleSleep == 0 {
		c.Policy.IdleSleep = 50 * time.Millisecond
	}
	if c.Archive.Table == "" {
		c.Archive.Table = "sensor_records"
	}
	if c.API.Addr == "" {
		c.API.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	s := &c.Sources
	if s.MQTT.Enabled() {
		s.MQTT.ApplyDefaults()
	}
	if s.HTTP.Enabled() {
		s.HTTP.ApplyDefaults()
	}
	if s.WebSocket.Enabled() {
		s.WebSocket.ApplyDefaults()
	}
	if s.Redis.Enabled() {
		s.Redis.ApplyDefaults()
	}
	if s.OPCUA.Enabled() {
		s.OPCUA.ApplyDefaults()
	}
	if s.Synthetic.Enabled {
		s.Synthetic.ApplyDefaults()
	}
	if s.Replay.Enabled() {
		s.Replay.ApplyDefaults()
	}
}

func (c *Config) validate() error {
	if c.Policy.Capacity <= 0 {
		return fmt.Errorf("policy.capacity must be > 0, got %d", c.Policy.Capacity)
	}
	if c.Policy.RedrawInterval <= 0 {
		return fmt.Errorf("policy.redraw_interval must be > 0, got %s", c.Policy.RedrawInterval)
	}
	if c.Policy.ViewRows < 0 {
		return fmt.Errorf("policy.view_rows must be >= 0, got %d", c.Policy.ViewRows)
	}
	if c.Policy.TableRows < 0 {
		return fmt.Errorf("policy.table_rows must be >= 0, got %d", c.Policy.TableRows)
	}
	if c.Policy.ArchiveQueueLen < 0 || c.Policy.ArchiveBatchSize < 0 {
		return fmt.Errorf("policy archive sizes must be >= 0")
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	s := c.Sources
	checks := []struct {
		name    string
		enabled bool
		check   func() error
	}{
		{"mqtt", s.MQTT.Enabled(), s.MQTT.Validate},
		{"http", s.HTTP.Enabled(), s.HTTP.Validate},
		{"websocket", s.WebSocket.Enabled(), s.WebSocket.Validate},
		{"redis", s.Redis.Enabled(), s.Redis.Validate},
		{"opcua", s.OPCUA.Enabled(), s.OPCUA.Validate},
		{"replay", s.Replay.Enabled(), s.Replay.Validate},
	}
	for _, ch := range checks {
		if !ch.enabled {
			continue
		}
		if err := ch.check(); err != nil {
			return fmt.Errorf("sources.%s: %w", ch.name, err)
		}
	}
	return nil
}

// EnabledSources names the feeds this config turns on, in a fixed order.
func (c *Config) EnabledSources() []string {
	s := c.Sources
	var out []string
	if s.MQTT.Enabled() {
		out = append(out, "mqtt")
	}
	if s.HTTP.Enabled() {
		out = append(out, "http")
	}
	if s.WebSocket.Enabled() {
		out = append(out, "websocket")
	}
	if s.Redis.Enabled() {
		out = append(out, "redis")
	}
	if s.OPCUA.Enabled() {
		out = append(out, "opcua")
	}
	if s.Synthetic.Enabled {
		out = append(out, "synthetic")
	}
	if s.Replay.Enabled() {
		out = append(out, "replay")
	}
	return out
}
