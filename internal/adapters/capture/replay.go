package capture

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ghalamif/sensorboard/internal/domain"
	"github.com/ghalamif/sensorboard/internal/ports"
)

type ReplayConfig struct {
	Path string        `yaml:"path"`
	Pace time.Duration `yaml:"pace"`
	Loop bool          `yaml:"loop"`
}

func (c *ReplayConfig) Enabled() bool { return c.Path != "" }

func (c *ReplayConfig) ApplyDefaults() {
	if c.Pace <= 0 {
		c.Pace = 100 * time.Millisecond
	}
}

func (c *ReplayConfig) Validate() error {
	if c.Path == "" {
		return errors.New("path is required")
	}
	return nil
}

// ReplaySource re-emits a capture file, one frame per Pace. The original
// source name travels as the message topic.
type ReplaySource struct {
	cfg ReplayConfig
}

func NewReplaySource(cfg ReplayConfig) (*ReplaySource, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ReplaySource{cfg: cfg}, nil
}

func (s *ReplaySource) Name() string { return "replay" }

func (s *ReplaySource) Run(ctx context.Context, deliver ports.Deliver) error {
	ticker := time.NewTicker(s.cfg.Pace)
	defer ticker.Stop()

	for {
		err := ReadFile(s.cfg.Path, func(fr Frame) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
			deliver(domain.Message{
				Source:   s.Name(),
				Topic:    fr.Source,
				Payload:  fr.Fields,
				Received: time.Now(),
			})
			return nil
		})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return fmt.Errorf("replay %s: %w", s.cfg.Path, err)
		}
		if !s.cfg.Loop {
			deliver(domain.InfoMessage(s.Name(), "replay of "+s.cfg.Path+" finished"))
			<-ctx.Done()
			return nil
		}
	}
}

var _ ports.Source = (*ReplaySource)(nil)
