package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ghalamif/sensorboard/internal/domain"
	"github.com/ghalamif/sensorboard/internal/ports"
)

type Config struct {
	Addr           string        `yaml:"addr"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	Channels       []string      `yaml:"channels"`
	Patterns       []string      `yaml:"patterns"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

func (c *Config) Enabled() bool { return c.Addr != "" }

func (c *Config) ApplyDefaults() {
	if len(c.Channels) == 0 && len(c.Patterns) == 0 {
		c.Patterns = []string{"sensors*"}
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if c.DB < 0 {
		return fmt.Errorf("db must be >= 0, got %d", c.DB)
	}
	return nil
}

// Source listens on pub/sub channels. The client resubscribes by itself
// after a broken connection; failures are reported and retried after a
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

func (s *Source) Name() string { return "redis" }

func (s *Source) Run(ctx context.Context, deliver ports.Deliver) error {
	client := goredis.NewClient(&goredis.Options{
		Addr:     s.cfg.Addr,
		Username: s.cfg.Username,
		Password: s.cfg.Password,
		DB:       s.cfg.DB,
	})
	defer client.Close()

	pubsub := client.Subscribe(ctx)
	defer pubsub.Close()

	for {
		err := s.subscribe(ctx, pubsub)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return nil
		}
		deliver(domain.FailureMessage(s.Name(), err))
		if !sleep(ctx, s.cfg.ReconnectDelay) {
			return nil
		}
	}
	deliver(domain.InfoMessage(s.Name(), fmt.Sprintf("subscribed to %s on %s", s.subjects(), s.cfg.Addr)))

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			deliver(domain.FailureMessage(s.Name(), fmt.Errorf("redis receive: %w", err)))
			if !sleep(ctx, s.cfg.ReconnectDelay) {
				return nil
			}
			continue
		}
		deliver(domain.Message{
			Source:   s.Name(),
			Topic:    msg.Channel,
			Payload:  []byte(msg.Payload),
			Received: time.Now(),
		})
	}
}

func (s *Source) subscribe(ctx context.Context, pubsub *goredis.PubSub) error {
	if len(s.cfg.Channels) > 0 {
		if err := pubsub.Subscribe(ctx, s.cfg.Channels...); err != nil {
			return fmt.Errorf("redis subscribe %v: %w", s.cfg.Channels, err)
		}
	}
	if len(s.cfg.Patterns) > 0 {
		if err := pubsub.PSubscribe(ctx, s.cfg.Patterns...); err != nil {
			return fmt.Errorf("redis psubscribe %v: %w", s.cfg.Patterns, err)
		}
	}
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("redis subscribe %s: %w", s.cfg.Addr, err)
	}
	return nil
}

func (s *Source) subjects() string {
	all := append(append([]string(nil), s.cfg.Channels...), s.cfg.Patterns...)
	return strings.Join(all, ",")
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

var _ ports.Source = (*Source)(nil)
