package mqtt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/ghalamif/sensorboard/internal/domain"
	"github.com/ghalamif/sensorboard/internal/ports"
)

type Config struct {
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	Topics         []string      `yaml:"topics"`
	QoS            byte          `yaml:"qos"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

func (c *Config) Enabled() bool { return c.Broker != "" }

func (c *Config) ApplyDefaults() {
	if c.Broker != "" && !strings.Contains(c.Broker, "://") {
		c.Broker = "tcp://" + c.Broker
	}
	if c.ClientID == "" {
		c.ClientID = "sensorboard"
	}
	if len(c.Topics) == 0 {
		c.Topics = []string{"sensors/#"}
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 2 * time.Second
	}
}

func (c *Config) Validate() error {
	if c.Broker == "" {
		return errors.New("broker is required")
	}
	if c.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2, got %d", c.QoS)
	}
	return nil
}

// Source subscribes to broker topics and delivers every message payload.
type Source struct {
	cfg       Config
	newClient func(*paho.ClientOptions) paho.Client
}

func NewSource(cfg Config) (*Source, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Source{cfg: cfg, newClient: paho.NewClient}, nil
}

func (s *Source) Name() string { return "mqtt" }

// Run connects and stays subscribed until ctx is done. The client
// reconnects by itself and resubscribes from OnConnect.
func (s *Source) Run(ctx context.Context, deliver ports.Deliver) error {
	client := s.newClient(s.clientOptions(deliver))

	token := client.Connect()
	select {
	case <-ctx.Done():
		client.Disconnect(250)
		return nil
	case <-token.Done():
	}
	if err := token.Error(); err != nil {
		deliver(domain.FailureMessage(s.Name(), fmt.Errorf("mqtt connect %s: %w", s.cfg.Broker, err)))
	}

	<-ctx.Done()
	client.Disconnect(250)
	return nil
}

func (s *Source) clientOptions(deliver ports.Deliver) *paho.ClientOptions {
	opts := paho.NewClientOptions()
	opts.AddBroker(s.cfg.Broker)
	opts.SetClientID(s.cfg.ClientID)
	if s.cfg.Username != "" {
		opts.SetUsername(s.cfg.Username)
		opts.SetPassword(s.cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(s.cfg.ReconnectDelay)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetConnectTimeout(s.cfg.ConnectTimeout)

	opts.OnConnect = func(c paho.Client) {
		filters := make(map[string]byte, len(s.cfg.Topics))
		for _, t := range s.cfg.Topics {
			filters[t] = s.cfg.QoS
		}
		tok := c.SubscribeMultiple(filters, s.onMessage(deliver))
		if !tok.WaitTimeout(s.cfg.ConnectTimeout) {
			deliver(domain.FailureMessage(s.Name(), fmt.Errorf("mqtt subscribe %v: timeout", s.cfg.Topics)))
			return
		}
		if err := tok.Error(); err != nil {
			deliver(domain.FailureMessage(s.Name(), fmt.Errorf("mqtt subscribe %v: %w", s.cfg.Topics, err)))
			return
		}
		deliver(domain.InfoMessage(s.Name(),
			fmt.Sprintf("connected to %s, subscribed to %s", s.cfg.Broker, strings.Join(s.cfg.Topics, ","))))
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		deliver(domain.FailureMessage(s.Name(), fmt.Errorf("mqtt connection lost: %w", err)))
	}
	return opts
}

func (s *Source) onMessage(deliver ports.Deliver) paho.MessageHandler {
	return func(_ paho.Client, m paho.Message) {
		payload := make([]byte, len(m.Payload()))
		copy(payload, m.Payload())
		deliver(domain.Message{
			Source:   s.Name(),
			Topic:    m.Topic(),
			Payload:  payload,
			Received: time.Now(),
		})
	}
}

var _ ports.Source = (*Source)(nil)
