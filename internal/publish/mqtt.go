// internal/publish/mqtt.go
package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/tamzrod/ecomanager-rx/internal/console"
	"github.com/tamzrod/ecomanager-rx/internal/report"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second
	commandTimeout = 5 * time.Second
)

type Config struct {
	// Broker is host:port or a full URL (tcp://, ssl://, ws://).
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
	Encoding    Encoding
	// Commands enables console commands on <prefix>/cmd.
	Commands bool
}

// client is the part of mqtt.Client the publisher uses.
type client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token
	IsConnectionOpen() bool
	Disconnect(quiesce uint)
}

// Publisher sends scheduler events to an MQTT broker.
// It implements report.Reporter; wrap it in report.Async so a slow broker
// does not hold up the caller.
type Publisher struct {
	cfg     Config
	session string
	client  client

	mu        sync.Mutex
	connected bool

	published atomic.Uint64
	errors    atomic.Uint64
}

func New(cfg Config) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, errors.New("publish: broker required")
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "ecomanager"
	}
	if cfg.QoS > 2 {
		return nil, fmt.Errorf("publish: qos %d out of range", cfg.QoS)
	}
	if _, err := Encode(cfg.Encoding, Message{}); err != nil {
		return nil, err
	}

	session := uuid.New().String()
	if cfg.ClientID == "" {
		cfg.ClientID = "ecomanager-" + session[:8]
	}

	return &Publisher{cfg: cfg, session: session}, nil
}

// Session identifies this process run in every payload.
func (p *Publisher) Session() string { return p.session }

// Connect establishes the broker connection. Reconnects are automatic.
func (p *Publisher) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(p.cfg.Broker))
	opts.SetClientID(p.cfg.ClientID)
	opts.SetUsername(p.cfg.Username)
	opts.SetPassword(p.cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(mqtt.Client) {
		p.setConnected(true)
		slog.Info("mqtt connection established", "broker", p.cfg.Broker, "client_id", p.cfg.ClientID)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		p.setConnected(false)
		slog.Warn("mqtt connection lost, will auto-reconnect", "broker", p.cfg.Broker, "error", err)
	}

	c := mqtt.NewClient(opts)
	p.client = c

	slog.Info("connecting to mqtt broker", "broker", p.cfg.Broker)

	token := c.Connect()
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(connectTimeout):
		return errors.New("publish: mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: mqtt connect: %w", err)
	}
	p.setConnected(true)
	return nil
}

// Report publishes e. Failures are counted and logged, never returned.
func (p *Publisher) Report(e report.Event) {
	if err := p.publish(e); err != nil {
		p.errors.Add(1)
		slog.Debug("mqtt publish failed", "type", e.Type, "id", e.ID, "error", err)
	}
}

func (p *Publisher) publish(e report.Event) error {
	if p.client == nil || !p.isConnected() {
		return errors.New("publish: mqtt not connected")
	}

	payload, err := Encode(p.cfg.Encoding, NewMessage(p.session, e))
	if err != nil {
		return err
	}

	topic := Topic(p.cfg.TopicPrefix, e)
	token := p.client.Publish(topic, p.cfg.QoS, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.New("publish: timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	p.published.Add(1)
	slog.Debug("event published", "topic", topic, "size", len(payload))
	return nil
}

// ServeCommands subscribes to <prefix>/cmd. Each message is one console
// line; the reply goes to <prefix>/cmd/reply.
func (p *Publisher) ServeCommands(ctx context.Context, exec console.Executor) error {
	if p.client == nil {
		return errors.New("publish: not connected")
	}
	topic := p.cfg.TopicPrefix + "/cmd"

	token := p.client.Subscribe(topic, p.cfg.QoS, func(_ mqtt.Client, m mqtt.Message) {
		p.handleCommand(ctx, exec, string(m.Payload()))
	})
	if !token.WaitTimeout(connectTimeout) {
		return errors.New("publish: command subscription timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish: subscribe %s: %w", topic, err)
	}

	slog.Info("mqtt command topic subscribed", "topic", topic)
	return nil
}

func (p *Publisher) handleCommand(ctx context.Context, exec console.Executor, line string) {
	reply := "ACK"

	cmd, err := console.Parse(line)
	if err == nil && cmd.Op == console.OpHelp {
		reply = console.Help
	} else if err == nil {
		cctx, cancel := context.WithTimeout(ctx, commandTimeout)
		var text string
		text, err = exec.Execute(cctx, cmd)
		cancel()
		if err == nil && text != "" {
			reply = "ACK " + text
		}
	}
	if err != nil {
		reply = "NAK " + err.Error()
	}

	slog.Info("mqtt command", "line", strings.TrimSpace(line), "reply", reply)
	p.client.Publish(p.cfg.TopicPrefix+"/cmd/reply", p.cfg.QoS, false, reply)
}

// Close disconnects with a short grace period.
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnectionOpen() {
		p.client.Disconnect(250)
		slog.Info("mqtt disconnected")
	}
	p.setConnected(false)
}

type Stats struct {
	Connected bool
	Published uint64
	Errors    uint64
}

func (p *Publisher) Stats() Stats {
	return Stats{
		Connected: p.isConnected(),
		Published: p.published.Load(),
		Errors:    p.errors.Load(),
	}
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

func (p *Publisher) isConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected
}

func brokerURL(b string) string {
	if strings.Contains(b, "://") {
		return b
	}
	return "tcp://" + b
}
