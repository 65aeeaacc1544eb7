// Package mqtt receives gadget directives from an MQTT broker.
package mqtt

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/charmbracelet/log"
	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
)

// inboxSize bounds how many directives may wait while a motion runs.
const inboxSize = 16

// DirectiveHandler consumes payloads and link state changes.
type DirectiveHandler interface {
	Handle(ctx context.Context, payload []byte) error
	Connecting(addr string)
	Connected(addr string)
	Disconnected(addr string)
}

// Config holds the broker connection settings.
type Config struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	// Topic the directives are published on.
	Topic string
	QoS   byte

	// KeepAlive in seconds. Default is 30.
	KeepAlive uint16
	// ConnectTimeout for each connection attempt. Default is 5s.
	ConnectTimeout time.Duration
	// InsecureSkipVerify disables TLS certificate verification.
	InsecureSkipVerify bool
}

func (c *Config) setDefaults() {
	if c.KeepAlive == 0 {
		c.KeepAlive = 30
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.ClientID == "" {
		c.ClientID = "armgadget"
	}
	if c.QoS == 0 {
		c.QoS = 1
	}
}

// Validate checks if the configuration is usable.
func (c *Config) Validate() error {
	if c.BrokerURL == "" {
		return errors.New("broker url is required")
	}
	if _, err := url.Parse(c.BrokerURL); err != nil {
		return fmt.Errorf("broker url: %w", err)
	}
	if c.Topic == "" {
		return errors.New("topic is required")
	}
	return nil
}

// Receiver subscribes to the directive topic and hands every payload to the
// handler, one at a time and in arrival order.
type Receiver struct {
	cfg     Config
	handler DirectiveHandler
	logger  *log.Logger
	inbox   chan []byte
}

// NewReceiver creates a receiver. Call Run to connect.
func NewReceiver(cfg Config, h DirectiveHandler, logger *log.Logger) (*Receiver, error) {
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid mqtt config: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Receiver{
		cfg:     cfg,
		handler: h,
		logger:  logger.WithPrefix("mqtt"),
		inbox:   make(chan []byte, inboxSize),
	}, nil
}

// Run connects to the broker and dispatches directives until ctx is done.
func (r *Receiver) Run(ctx context.Context) error {
	brokerURL, _ := url.Parse(r.cfg.BrokerURL) // Already validated

	cm, err := autopaho.NewConnection(ctx, autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{brokerURL},
		KeepAlive:                     r.cfg.KeepAlive,
		CleanStartOnInitialConnection: true,
		ReconnectBackoff:              autopaho.NewConstantBackoff(3 * time.Second),
		ConnectTimeout:                r.cfg.ConnectTimeout,
		ConnectUsername:               r.cfg.Username,
		ConnectPassword:               []byte(r.cfg.Password),
		TlsCfg: &tls.Config{
			InsecureSkipVerify: r.cfg.InsecureSkipVerify,
		},
		ClientConfig: paho.ClientConfig{
			ClientID:           r.cfg.ClientID,
			OnClientError:      r.onClientError,
			OnServerDisconnect: r.onServerDisconnect,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				r.route,
			},
		},
		OnConnectionUp: r.onConnectionUp,
		OnConnectError: r.onConnectError,
	})
	if err != nil {
		return fmt.Errorf("connect %s: %w", r.cfg.BrokerURL, err)
	}
	r.logger.Info("Starting MQTT client", "broker", r.cfg.BrokerURL, "topic", r.cfg.Topic)

	r.work(ctx)

	disconnectCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	_ = cm.Disconnect(disconnectCtx)
	r.handler.Disconnected(r.cfg.BrokerURL)
	return nil
}

// work drains the inbox until ctx is done.
func (r *Receiver) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-r.inbox:
			if err := r.handler.Handle(ctx, payload); err != nil {
				r.logger.Error("Directive failed", "err", err)
			}
		}
	}
}

// enqueue queues a payload for the worker, dropping it when the inbox is full.
func (r *Receiver) enqueue(payload []byte) bool {
	select {
	case r.inbox <- payload:
		return true
	default:
		r.logger.Warn("Inbox full, dropping directive", "payload", string(payload))
		return false
	}
}

func (r *Receiver) route(p paho.PublishReceived) (bool, error) {
	if p.Packet.Topic != r.cfg.Topic {
		r.logger.Debug("Received message on unhandled topic", "topic", p.Packet.Topic)
		return true, nil
	}
	r.enqueue(p.Packet.Payload)
	return true, nil
}

func (r *Receiver) onConnectionUp(cm *autopaho.ConnectionManager, ack *paho.Connack) {
	if _, err := cm.Subscribe(context.Background(), &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{
			{Topic: r.cfg.Topic, QoS: r.cfg.QoS},
		},
	}); err != nil {
		r.logger.Error("Failed to subscribe", "topic", r.cfg.Topic, "err", err)
		return
	}
	r.handler.Connected(r.cfg.BrokerURL)
}

func (r *Receiver) onConnectError(err error) {
	r.logger.Warn("MQTT connection failed, retrying", "err", err)
	r.handler.Connecting(r.cfg.BrokerURL)
}

func (r *Receiver) onClientError(err error) {
	r.logger.Error("MQTT client error", "err", err)
	r.handler.Disconnected(r.cfg.BrokerURL)
}

func (r *Receiver) onServerDisconnect(d *paho.Disconnect) {
	reason := ""
	if d.Properties != nil {
		reason = d.Properties.ReasonString
	}
	r.logger.Warn("MQTT server requested disconnect", "reason", reason)
	r.handler.Disconnected(r.cfg.BrokerURL)
}
