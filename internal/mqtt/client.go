package mqtt

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// DefaultConnectTimeout bounds the initial broker connection.
const DefaultConnectTimeout = 10 * time.Second

// ErrTimeout is returned when the broker does not answer in time.
var ErrTimeout = errors.New("mqtt operation timed out")

// Handler receives messages for a subscribed topic.
type Handler func(topic string, payload []byte)

// Client is the broker surface the bridge needs. *PahoClient satisfies it;
// tests use an in-memory fake.
type Client interface {
	Publish(topic string, payload []byte, retain bool) error
	Subscribe(topic string, handler Handler) error
	Unsubscribe(topic string) error
	Close()
}

// Config describes a broker connection.
type Config struct {
	// Broker URL: mqtt://, tcp://, mqtts://, ssl://, tls://, ws:// or wss://.
	// User info in the URL is used as credentials.
	Broker         string
	ClientID       string
	QoS            byte
	ConnectTimeout time.Duration
	// WillTopic receives a retained WillPayload when the connection drops.
	WillTopic   string
	WillPayload string
}

// PahoClient wraps an eclipse paho client and restores subscriptions after reconnects.
type PahoClient struct {
	cli     paho.Client
	qos     byte
	timeout time.Duration
	logger  *slog.Logger

	mu   sync.Mutex
	subs map[string]Handler
}

// brokerAddress converts a broker URL to the form paho expects.
func brokerAddress(raw string) (string, *url.Userinfo, bool, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", nil, false, fmt.Errorf("parse broker URL: %w", err)
	}
	if u.Host == "" {
		return "", nil, false, fmt.Errorf("broker URL %q has no host", raw)
	}
	switch u.Scheme {
	case "mqtt", "tcp":
		return "tcp://" + u.Host, u.User, false, nil
	case "mqtts", "ssl", "tls":
		return "ssl://" + u.Host, u.User, true, nil
	case "ws":
		return "ws://" + u.Host + u.Path, u.User, false, nil
	case "wss":
		return "wss://" + u.Host + u.Path, u.User, true, nil
	default:
		return "", nil, false, fmt.Errorf("unsupported broker scheme %q", u.Scheme)
	}
}

// Connect dials the broker and waits for the first connection.
func Connect(cfg Config, logger *slog.Logger) (*PahoClient, error) {
	if logger == nil {
		logger = slog.Default()
	}
	server, user, secure, err := brokerAddress(cfg.Broker)
	if err != nil {
		return nil, err
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = DefaultConnectTimeout
	}

	c := &PahoClient{
		qos:     cfg.QoS,
		timeout: cfg.ConnectTimeout,
		logger:  logger.With("component", "mqtt-client", "broker", server),
		subs:    make(map[string]Handler),
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(server)
	opts.SetClientID(cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetOrderMatters(false)
	if user != nil {
		pw, _ := user.Password()
		opts.SetUsername(user.Username())
		opts.SetPassword(pw)
	}
	if secure {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	if cfg.WillTopic != "" {
		opts.SetWill(cfg.WillTopic, cfg.WillPayload, cfg.QoS, true)
	}
	opts.SetOnConnectHandler(func(_ paho.Client) {
		c.logger.Info("MQTT connected")
		c.resubscribe()
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		c.logger.Warn("MQTT connection lost", "error", err)
	})

	c.cli = paho.NewClient(opts)
	if err := c.wait(c.cli.Connect()); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", server, err)
	}
	return c, nil
}

func (c *PahoClient) wait(t paho.Token) error {
	if !t.WaitTimeout(c.timeout) {
		return ErrTimeout
	}
	return t.Error()
}

func (c *PahoClient) callback(handler Handler) paho.MessageHandler {
	return func(_ paho.Client, msg paho.Message) {
		handler(msg.Topic(), msg.Payload())
	}
}

// resubscribe restores subscriptions lost with a clean session.
func (c *PahoClient) resubscribe() {
	c.mu.Lock()
	subs := make(map[string]Handler, len(c.subs))
	for topic, h := range c.subs {
		subs[topic] = h
	}
	c.mu.Unlock()

	for topic, h := range subs {
		if err := c.wait(c.cli.Subscribe(topic, c.qos, c.callback(h))); err != nil {
			c.logger.Error("MQTT resubscribe failed", "topic", topic, "error", err)
		}
	}
}

// Publish sends payload to topic.
func (c *PahoClient) Publish(topic string, payload []byte, retain bool) error {
	return c.wait(c.cli.Publish(topic, c.qos, retain, payload))
}

// Subscribe registers handler for topic.
func (c *PahoClient) Subscribe(topic string, handler Handler) error {
	if err := c.wait(c.cli.Subscribe(topic, c.qos, c.callback(handler))); err != nil {
		return err
	}
	c.mu.Lock()
	c.subs[topic] = handler
	c.mu.Unlock()
	c.logger.Info("MQTT subscribed", "topic", topic)
	return nil
}

// Unsubscribe removes the subscription for topic.
func (c *PahoClient) Unsubscribe(topic string) error {
	c.mu.Lock()
	delete(c.subs, topic)
	c.mu.Unlock()
	return c.wait(c.cli.Unsubscribe(topic))
}

// Close disconnects after letting in-flight work finish.
func (c *PahoClient) Close() {
	c.cli.Disconnect(250)
	c.logger.Info("MQTT disconnected")
}
