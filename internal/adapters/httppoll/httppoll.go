package httppoll

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ghalamif/sensorboard/internal/domain"
	"github.com/ghalamif/sensorboard/internal/ports"
)

const maxBodyBytes = 4 << 20

type Config struct {
	URL        string            `yaml:"url"`
	HistoryURL string            `yaml:"history_url"`
	Interval   time.Duration     `yaml:"interval"`
	Timeout    time.Duration     `yaml:"timeout"`
	Token      string            `yaml:"token"`
	Headers    map[string]string `yaml:"headers"`
}

func (c *Config) Enabled() bool { return c.URL != "" }

func (c *Config) ApplyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("url is required")
	}
	return nil
}

// APIError represents a non-2xx HTTP response.
type APIError struct {
	StatusCode int
	Body       string // first 512 bytes
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// Source polls an endpoint on a fixed interval. Each response body is one
// delivery; JSON arrays are split into records downstream.
type Source struct {
	cfg        Config
	httpClient *http.Client
}

// Option configures Source behavior.
type Option func(*Source)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Source) {
		s.httpClient = c
	}
}

func NewSource(cfg Config, opts ...Option) (*Source, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Source{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Source) Name() string { return "http" }

// Run loads the history endpoint once, then polls until ctx is done.
func (s *Source) Run(ctx context.Context, deliver ports.Deliver) error {
	if s.cfg.HistoryURL != "" {
		s.fetch(ctx, s.cfg.HistoryURL, deliver)
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	_ = s.PollOnce(ctx, deliver)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = s.PollOnce(ctx, deliver)
		}
	}
}

// PollOnce fetches the current reading. The error is returned for callers
// that act on it; it has already been delivered as a failure record.
func (s *Source) PollOnce(ctx context.Context, deliver ports.Deliver) error {
	return s.fetch(ctx, s.cfg.URL, deliver)
}

func (s *Source) fetch(ctx context.Context, url string, deliver ports.Deliver) error {
	body, err := s.get(ctx, url)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		deliver(domain.FailureMessage(s.Name(), fmt.Errorf("GET %s: %w", url, err)))
		return err
	}
	deliver(domain.Message{
		Source:   s.Name(),
		Topic:    url,
		Payload:  body,
		Received: time.Now(),
		Batch:    true,
	})
	return nil
}

func (s *Source) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if s.cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.cfg.Token)
	}
	for k, v := range s.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyStr := string(body)
		if len(bodyStr) > 512 {
			bodyStr = bodyStr[:512]
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: bodyStr}
	}
	return body, nil
}

var _ ports.Poller = (*Source)(nil)
