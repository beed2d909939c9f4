package ws

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/ghalamif/sensorboard/internal/domain"
	"github.com/ghalamif/sensorboard/internal/ports"
)

type Config struct {
	URL            string            `yaml:"url"`
	Headers        map[string]string `yaml:"headers"`
	ReconnectDelay time.Duration     `yaml:"reconnect_delay"`
	DialTimeout    time.Duration     `yaml:"dial_timeout"`
	ReadLimit      int64             `yaml:"read_limit"`
}

func (c *Config) Enabled() bool { return c.URL != "" }

func (c *Config) ApplyDefaults() {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = 10 * time.Second
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = 1 << 20
	}
}

func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("url is required")
	}
	return nil
}

// Source reads frames from a websocket feed. Each text or binary frame is
// one delivery. A dropped connection is reported and redialed after a
// fixed delay.
type Source struct {
	cfg Config
}

func NewSource(cfg Config) (*Source, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Source{cfg: cfg}, nil
}

func (s *Source) Name() string { return "ws" }

func (s *Source) Run(ctx context.Context, deliver ports.Deliver) error {
	for {
		err := s.session(ctx, deliver)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			deliver(domain.FailureMessage(s.Name(), err))
		}

		timer := time.NewTimer(s.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
	}
}

func (s *Source) session(ctx context.Context, deliver ports.Deliver) error {
	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.DialTimeout)
	defer cancel()

	header := http.Header{}
	for k, v := range s.cfg.Headers {
		header.Set(k, v)
	}
	//nolint:bodyclose // websocket package closes this for you
	conn, _, err := websocket.Dial(dialCtx, s.cfg.URL, &websocket.DialOptions{HTTPHeader: header})
	if err != nil {
		return fmt.Errorf("websocket dial %s: %w", s.cfg.URL, err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(s.cfg.ReadLimit)

	deliver(domain.InfoMessage(s.Name(), "connected to "+s.cfg.URL))

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "")
				return nil
			}
			return fmt.Errorf("websocket read: %w", err)
		}
		deliver(domain.Message{
			Source:   s.Name(),
			Topic:    s.cfg.URL,
			Payload:  data,
			Received: time.Now(),
		})
	}
}

var _ ports.Source = (*Source)(nil)
