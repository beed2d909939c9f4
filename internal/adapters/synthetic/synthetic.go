package synthetic

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/coder/quartz"

	"github.com/ghalamif/sensorboard/internal/domain"
	"github.com/ghalamif/sensorboard/internal/ports"
)

type Config struct {
	DeviceID string        `yaml:"device_id"`
	Topic    string        `yaml:"topic"`
	Interval time.Duration `yaml:"interval"`
	Seed     int64         `yaml:"seed"`
}

func (c *Config) ApplyDefaults() {
	if c.DeviceID == "" {
		c.DeviceID = "esp32-room1"
	}
	if c.Topic == "" {
		c.Topic = "sensors/room1/temp"
	}
	if c.Interval <= 0 {
		c.Interval = 2 * time.Second
	}
}

// Reading is one simulated sample. Field order is the wire order.
type Reading struct {
	DeviceID       string  `json:"device_id"`
	Timestamp      string  `json:"timestamp"`
	Temperature    float64 `json:"temperature"`
	Humidity       float64 `json:"humidity"`
	BatteryVoltage float64 `json:"battery_voltage"`
	Motion         bool    `json:"motion"`
	Seq            int64   `json:"seq"`
}

// Generator produces readings with plausible indoor values.
type Generator struct {
	deviceID string
	clock    quartz.Clock

	mu      sync.Mutex
	rng     *rand.Rand
	seq     int64
	battery float64
}

func NewGenerator(cfg Config, clock quartz.Clock) *Generator {
	cfg.ApplyDefaults()
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Generator{
		deviceID: cfg.DeviceID,
		clock:    clock,
		rng:      rand.New(rand.NewSource(seed)),
		battery:  4.2,
	}
}

func (g *Generator) Next() Reading {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.seq++
	// Slow drain, recharged at the cutoff.
	g.battery -= 0.001 + g.rng.Float64()*0.002
	if g.battery < 3.3 {
		g.battery = 4.2
	}
	return Reading{
		DeviceID:       g.deviceID,
		Timestamp:      g.clock.Now().UTC().Format(time.RFC3339Nano),
		Temperature:    round2(20 + g.rng.Float64()*5),
		Humidity:       round2(40 + g.rng.Float64()*10),
		BatteryVoltage: round2(g.battery),
		Motion:         g.rng.Intn(10) == 0,
		Seq:            g.seq,
	}
}

// Payload returns the next reading as a JSON document.
func (g *Generator) Payload() []byte {
	b, _ := json.Marshal(g.Next())
	return b
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Source emits one generated payload per interval.
type Source struct {
	cfg   Config
	gen   *Generator
	clock quartz.Clock
}

func NewSource(cfg Config, clock quartz.Clock) *Source {
	cfg.ApplyDefaults()
	if clock == nil {
		clock = quartz.NewReal()
	}
	return &Source{cfg: cfg, gen: NewGenerator(cfg, clock), clock: clock}
}

func (s *Source) Name() string { return "synthetic" }

func (s *Source) Run(ctx context.Context, deliver ports.Deliver) error {
	ticker := s.clock.NewTicker(s.cfg.Interval, "synthetic")
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = s.PollOnce(ctx, deliver)
		}
	}
}

func (s *Source) PollOnce(_ context.Context, deliver ports.Deliver) error {
	deliver(domain.Message{
		Source:   s.Name(),
		Topic:    s.cfg.Topic,
		Payload:  s.gen.Payload(),
		Received: s.clock.Now(),
	})
	return nil
}

var _ ports.Poller = (*Source)(nil)
