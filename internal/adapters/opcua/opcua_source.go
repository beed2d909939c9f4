package opcua

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gopcua/opcua"
	"github.com/gopcua/opcua/ua"

	"github.com/ghalamif/sensorboard/internal/domain"
	"github.com/ghalamif/sensorboard/internal/ports"
)

// Config captures the runtime details required to open an OPC UA session.
type Config struct {
	Endpoint         string        `yaml:"endpoint"`
	Username         string        `yaml:"username"`
	Password         string        `yaml:"password"`
	SecurityMode     string        `yaml:"security_mode"`
	SecurityPolicy   string        `yaml:"security_policy"`
	ApplicationName  string        `yaml:"application_name"`
	PublishInterval  time.Duration `yaml:"publish_interval"`
	SamplingInterval time.Duration `yaml:"sampling_interval"`
	ReconnectDelay   time.Duration `yaml:"reconnect_delay"`
	Nodes            []NodeConfig  `yaml:"nodes"`
}

// NodeConfig defines a monitored tag/node.
type NodeConfig struct {
	NodeID   string `yaml:"node_id"`
	SensorID string `yaml:"sensor_id"`
	ValueKey string `yaml:"value_key"`
}

func (c *Config) Enabled() bool { return c.Endpoint != "" }

func (c *Config) ApplyDefaults() {
	if c.SecurityMode == "" {
		c.SecurityMode = "None"
	}
	if c.SecurityPolicy == "" {
		c.SecurityPolicy = "None"
	}
	if c.ApplicationName == "" {
		c.ApplicationName = "sensorboard"
	}
	if c.PublishInterval <= 0 {
		c.PublishInterval = time.Second
	}
	if c.SamplingInterval < 0 {
		c.SamplingInterval = 0
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = 5 * time.Second
	}
	for i := range c.Nodes {
		if c.Nodes[i].SensorID == "" {
			c.Nodes[i].SensorID = c.Nodes[i].NodeID
		}
		if c.Nodes[i].ValueKey == "" {
			c.Nodes[i].ValueKey = "value"
		}
	}
}

func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("endpoint is required")
	}
	if len(c.Nodes) == 0 {
		return errors.New("at least one node must be configured")
	}
	return nil
}

// Source subscribes to data changes on the configured nodes and delivers
// one record per change.
type Source struct {
	cfg Config

	mu        sync.Mutex
	handleMap map[uint32]NodeConfig
}

func NewSource(cfg Config) (*Source, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Source{cfg: cfg}, nil
}

func (s *Source) Name() string { return "opcua" }

// Run keeps a subscription open until ctx is done. A failed session is
// reported and retried after ReconnectDelay.
func (s *Source) Run(ctx context.Context, deliver ports.Deliver) error {
	for {
		err := s.session(ctx, deliver)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			deliver(domain.FailureMessage(s.Name(), err))
		}

		t := time.NewTimer(s.cfg.ReconnectDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
	}
}

func (s *Source) session(ctx context.Context, deliver ports.Deliver) error {
	client, err := opcua.NewClient(s.cfg.Endpoint, s.buildClientOptions()...)
	if err != nil {
		return fmt.Errorf("opcua new client: %w", err)
	}
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("opcua connect: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.Close(closeCtx)
	}()

	notifyCh := make(chan *opcua.PublishNotificationData, len(s.cfg.Nodes)*4)
	sub, err := client.Subscribe(ctx, &opcua.SubscriptionParameters{
		Interval: s.cfg.PublishInterval,
	}, notifyCh)
	if err != nil {
		return fmt.Errorf("opcua subscribe: %w", err)
	}
	defer func() {
		cancelCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sub.Cancel(cancelCtx); err != nil && !errors.Is(err, context.Canceled) {
			deliver(domain.FailureMessage(s.Name(), fmt.Errorf("opcua cancel subscription: %w", err)))
		}
	}()

	handleMap := make(map[uint32]NodeConfig, len(s.cfg.Nodes))
	for i, node := range s.cfg.Nodes {
		nodeID, err := ua.ParseNodeID(node.NodeID)
		if err != nil {
			return fmt.Errorf("parse node id %q: %w", node.NodeID, err)
		}
		handle := uint32(i + 1)
		req := opcua.NewMonitoredItemCreateRequestWithDefaults(nodeID, ua.AttributeIDValue, handle)
		if s.cfg.SamplingInterval > 0 {
			req.RequestedParameters.SamplingInterval = float64(s.cfg.SamplingInterval / time.Millisecond)
		}
		res, err := sub.Monitor(ctx, ua.TimestampsToReturnBoth, req)
		if err != nil {
			return fmt.Errorf("monitor node %q: %w", node.NodeID, err)
		}
		if len(res.Results) == 0 {
			return fmt.Errorf("monitor node %q failed: empty result", node.NodeID)
		}
		if res.Results[0].StatusCode != ua.StatusOK {
			return fmt.Errorf("monitor node %q failed: %s", node.NodeID, res.Results[0].StatusCode)
		}
		handleMap[handle] = node
	}

	s.mu.Lock()
	s.handleMap = handleMap
	s.mu.Unlock()

	deliver(domain.InfoMessage(s.Name(), fmt.Sprintf("subscribed to %d nodes on %s", len(handleMap), s.cfg.Endpoint)))

	for {
		select {
		case <-ctx.Done():
			return nil
		case notif := <-notifyCh:
			if notif == nil {
				continue
			}
			if notif.Error != nil {
				deliver(domain.FailureMessage(s.Name(), fmt.Errorf("opcua notification: %w", notif.Error)))
				continue
			}
			s.processNotification(notif.Value, deliver)
		}
	}
}

func (s *Source) processNotification(val interface{}, deliver ports.Deliver) {
	data, ok := val.(*ua.DataChangeNotification)
	if !ok {
		return
	}

	s.mu.Lock()
	handles := s.handleMap
	s.mu.Unlock()

	for _, item := range data.MonitoredItems {
		nodeCfg, ok := handles[item.ClientHandle]
		if !ok || item.Value == nil {
			continue
		}
		deliver(s.message(nodeCfg, item.Value))
	}
}

func (s *Source) message(nodeCfg NodeConfig, dv *ua.DataValue) domain.Message {
	ts := dv.ServerTimestamp
	if ts.IsZero() {
		ts = dv.SourceTimestamp
	}
	if ts.IsZero() {
		ts = time.Now()
	}

	v, ok := variantToValue(dv.Value)
	if !ok {
		return domain.FailureMessage(s.Name(),
			fmt.Errorf("node %s: unsupported value type %T", nodeCfg.NodeID, dv.Value.Value()))
	}

	return domain.Message{
		Source: s.Name(),
		Topic:  nodeCfg.NodeID,
		Fields: []domain.Field{
			{Key: "sensor_id", Value: nodeCfg.SensorID},
			{Key: nodeCfg.ValueKey, Value: v},
			{Key: "node_id", Value: nodeCfg.NodeID},
			{Key: "timestamp", Value: ts.UTC().Format(time.RFC3339Nano)},
		},
		Received: ts,
	}
}

func (s *Source) buildClientOptions() []opcua.Option {
	opts := []opcua.Option{
		opcua.SecurityModeString(normalizeSecurityMode(s.cfg.SecurityMode)),
		opcua.SecurityPolicy(normalizeSecurityPolicy(s.cfg.SecurityPolicy)),
		opcua.ApplicationName(s.cfg.ApplicationName),
		opcua.AutoReconnect(true),
	}

	if s.cfg.Username != "" {
		opts = append(opts, opcua.AuthUsername(s.cfg.Username, s.cfg.Password))
	} else {
		opts = append(opts, opcua.AuthAnonymous())
	}

	return opts
}

func variantToValue(v *ua.Variant) (any, bool) {
	if v == nil {
		return nil, false
	}

	switch val := v.Value().(type) {
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case int8:
		return int64(val), true
	case uint8:
		return int64(val), true
	case int16:
		return int64(val), true
	case uint16:
		return int64(val), true
	case int32:
		return int64(val), true
	case uint32:
		return int64(val), true
	case int64:
		return val, true
	case uint64:
		return float64(val), true
	case bool:
		return val, true
	case string:
		return val, true
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano), true
	default:
		return nil, false
	}
}

func normalizeSecurityMode(mode string) string {
	switch strings.ToLower(mode) {
	case "sign":
		return "Sign"
	case "signandencrypt", "signencrypt", "sign_and_encrypt", "sign+encrypt":
		return "SignAndEncrypt"
	default:
		return "None"
	}
}

func normalizeSecurityPolicy(policy string) string {
	if policy == "" {
		return "None"
	}
	return policy
}

var _ ports.Source = (*Source)(nil)
