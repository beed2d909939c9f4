package sensorboard

import (
	"fmt"

	"github.com/coder/quartz"

	"github.com/ghalamif/sensorboard/internal/adapters/capture"
	"github.com/ghalamif/sensorboard/internal/adapters/httppoll"
	"github.com/ghalamif/sensorboard/internal/adapters/mqtt"
	"github.com/ghalamif/sensorboard/internal/adapters/opcua"
	"github.com/ghalamif/sensorboard/internal/adapters/redis"
	"github.com/ghalamif/sensorboard/internal/adapters/synthetic"
	"github.com/ghalamif/sensorboard/internal/adapters/ws"
	"github.com/ghalamif/sensorboard/internal/ports"
)

// buildSources creates one source per feed enabled in cfg.
func buildSources(cfg *Config, clock quartz.Clock) ([]ports.Source, error) {
	sc := cfg.Sources
	var out []ports.Source

	add := func(name string, src ports.Source, err error) error {
		if err != nil {
			return fmt.Errorf("%s source: %w", name, err)
		}
		out = append(out, src)
		return nil
	}

	if sc.MQTT.Enabled() {
		src, err := mqtt.NewSource(sc.MQTT)
		if err := add("mqtt", src, err); err != nil {
			return nil, err
		}
	}
	if sc.HTTP.Enabled() {
		src, err := httppoll.NewSource(sc.HTTP)
		if err := add("http", src, err); err != nil {
			return nil, err
		}
	}
	if sc.WebSocket.Enabled() {
		src, err := ws.NewSource(sc.WebSocket)
		if err := add("websocket", src, err); err != nil {
			return nil, err
		}
	}
	if sc.Redis.Enabled() {
		src, err := redis.NewSource(sc.Redis)
		if err := add("redis", src, err); err != nil {
			return nil, err
		}
	}
	if sc.OPCUA.Enabled() {
		src, err := opcua.NewSource(sc.OPCUA)
		if err := add("opcua", src, err); err != nil {
			return nil, err
		}
	}
	if sc.Synthetic.Enabled {
		out = append(out, synthetic.NewSource(sc.Synthetic.Config, clock))
	}
	if sc.Replay.Enabled() {
		src, err := capture.NewReplaySource(sc.Replay)
		if err := add("replay", src, err); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// NewMQTTSource builds a broker subscriber for use with WithSource.
func NewMQTTSource(cfg MQTTConfig) (Source, error) {
	src, err := mqtt.NewSource(cfg)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// NewHTTPPollSource builds an endpoint poller.
func NewHTTPPollSource(cfg HTTPPollConfig) (Poller, error) {
	src, err := httppoll.NewSource(cfg)
	if err != nil {
		return nil, err
	}
	return src, nil
}

func NewWebSocketSource(cfg WebSocketConfig) (Source, error) {
	src, err := ws.NewSource(cfg)
	if err != nil {
		return nil, err
	}
	return src, nil
}

func NewRedisSource(cfg RedisConfig) (Source, error) {
	src, err := redis.NewSource(cfg)
	if err != nil {
		return nil, err
	}
	return src, nil
}

func NewOPCUASource(cfg OPCUAConfig) (Source, error) {
	src, err := opcua.NewSource(cfg)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// NewReplaySource re-emits a capture file.
func NewReplaySource(cfg ReplayConfig) (Source, error) {
	src, err := capture.NewReplaySource(cfg)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// NewSyntheticSource emits generated readings every cfg.Interval. A nil
// clock uses wall time.
func NewSyntheticSource(cfg GeneratorConfig, clock quartz.Clock) Poller {
	return synthetic.NewSource(cfg, clock)
}
