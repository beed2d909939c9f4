package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ghalamif/sensorboard/internal/domain"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type collector struct {
	mu   sync.Mutex
	msgs []domain.Message
}

func (c *collector) deliver(m domain.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, m)
}

func (c *collector) snapshot() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]domain.Message(nil), c.msgs...)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestSourceReadsFramesAndReconnects(t *testing.T) {
	var mu sync.Mutex
	conns := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		mu.Lock()
		conns++
		n := conns
		mu.Unlock()

		ctx := r.Context()
		_ = c.Write(ctx, websocket.MessageText, []byte(`{"temperature":21.5}`))
		if n == 1 {
			// Drop the first connection to force a redial.
			_ = c.Close(websocket.StatusGoingAway, "restart")
			return
		}
		_ = c.Write(ctx, websocket.MessageBinary, []byte(`{"humidity":40}`))
		// Hold the connection until the client goes away.
		_, _, _ = c.Read(ctx)
		c.CloseNow()
	}))
	defer srv.Close()

	src, err := NewSource(Config{URL: wsURL(srv), ReconnectDelay: 10 * time.Millisecond})
	require.NoError(t, err)

	var got collector
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, got.deliver) }()

	require.Eventually(t, func() bool {
		payloads := 0
		for _, m := range got.snapshot() {
			if len(m.Payload) > 0 {
				payloads++
			}
		}
		return payloads >= 3
	}, 5*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	var failures, infos int
	for _, m := range got.snapshot() {
		if m.Err != nil {
			failures++
		}
		if len(m.Fields) == 1 && m.Fields[0].Key == domain.KeyInfo {
			infos++
		}
	}
	require.GreaterOrEqual(t, failures, 1)
	require.GreaterOrEqual(t, infos, 2)
}

func TestSourceReportsDialFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(srv)
	srv.Close()

	src, err := NewSource(Config{URL: url, ReconnectDelay: time.Hour})
	require.NoError(t, err)

	var got collector
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- src.Run(ctx, got.deliver) }()

	require.Eventually(t, func() bool { return len(got.snapshot()) == 1 }, 5*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	require.ErrorContains(t, got.snapshot()[0].Err, "websocket dial")
}
