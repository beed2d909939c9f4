package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/ghalamif/sensorboard/internal/domain"
)

type collector struct {
	mu   sync.Mutex
	msgs []domain.Message
}

func (c *collector) deliver(m domain.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, m)
}

func (c *collector) payloads() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.Message
	for _, m := range c.msgs {
		if m.Payload != nil {
			out = append(out, m)
		}
	}
	return out
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{Addr: "localhost:6379"}
	cfg.ApplyDefaults()
	require.Equal(t, []string{"sensors*"}, cfg.Patterns)
	require.Equal(t, 5*time.Second, cfg.ReconnectDelay)
	require.Error(t, (&Config{}).Validate())
}

func runSource(t *testing.T, cfg Config) (*collector, func()) {
	t.Helper()
	src, err := NewSource(cfg)
	require.NoError(t, err)

	got := &collector{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, got.deliver) }()
	return got, func() {
		cancel()
		require.NoError(t, <-done)
	}
}

func TestSourceDeliversChannelMessages(t *testing.T) {
	mr := miniredis.RunT(t)
	got, stop := runSource(t, Config{Addr: mr.Addr(), Channels: []string{"sensors"}})
	defer stop()

	require.Eventually(t, func() bool {
		return mr.Publish("sensors", `{"temperature":23.4}`) > 0
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(got.payloads()) > 0 }, 5*time.Second, 5*time.Millisecond)

	msg := got.payloads()[0]
	require.Equal(t, "sensors", msg.Topic)
	require.Equal(t, "redis", msg.Source)
	require.JSONEq(t, `{"temperature":23.4}`, string(msg.Payload))
}

func TestSourceDeliversPatternMessages(t *testing.T) {
	mr := miniredis.RunT(t)
	got, stop := runSource(t, Config{Addr: mr.Addr()})
	defer stop()

	require.Eventually(t, func() bool {
		return mr.Publish("sensors.kitchen", "21.0") > 0
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(got.payloads()) > 0 }, 5*time.Second, 5*time.Millisecond)
	require.Equal(t, "sensors.kitchen", got.payloads()[0].Topic)
}
