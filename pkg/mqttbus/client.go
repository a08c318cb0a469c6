// Package mqttbus is a thin session over an MQTT broker. It keeps a
// client-side pattern set so one inbound message fans out to the handler of
// every matching subscription, restores subscriptions after a reconnect, and
// treats publish as best-effort while disconnected.
package mqttbus

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/lwx123321/smart-garden/pkg/dedup"
	"github.com/lwx123321/smart-garden/pkg/topic"
)

var ErrNotConnected = errors.New("mqttbus: not connected")

// Handler receives the concrete topic a message arrived on and its payload.
// Handlers run on the client's receive goroutine pool; anything that blocks
// for a runtime-determined duration must move to its own goroutine.
type Handler func(topic string, payload []byte)

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	ClientID string

	// QoS used for broker subscriptions. Nil means QoS 2; set a pointer to
	// request QoS 0 explicitly.
	QoS *byte

	// Reconnect backoff bounds. Defaults: 1s initial, 120s max.
	InitialReconnectInterval time.Duration
	MaxReconnectInterval     time.Duration

	ConnectTimeout time.Duration
}

func (c *Config) fill() {
	if c.QoS == nil {
		qos := byte(2)
		c.QoS = &qos
	}
	if c.InitialReconnectInterval <= 0 {
		c.InitialReconnectInterval = time.Second
	}
	if c.MaxReconnectInterval <= 0 {
		c.MaxReconnectInterval = 120 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 10 * time.Second
	}
}

// Client maintains subscriptions and dispatches inbound messages to every
// handler whose pattern matches the concrete topic.
type Client struct {
	cfg     Config
	matcher *topic.Matcher

	mu       sync.RWMutex
	handlers map[string]Handler // pattern -> handler

	// Overlapping filters can make the broker deliver one copy per matching
	// subscription; a short content-keyed window collapses those copies (and
	// QoS redeliveries) to a single dispatch.
	recent *dedup.Cache

	client mqtt.Client
}

func New(cfg Config) *Client {
	cfg.fill()
	return &Client{
		cfg:      cfg,
		matcher:  topic.NewMatcher(),
		handlers: make(map[string]Handler),
		recent:   dedup.New(5*time.Second, 20000),
	}
}

// Connect establishes the broker session, retrying with exponential backoff
// until ctx is cancelled. After an unexpected disconnect the underlying
// session reconnects on its own with the same bounded backoff and all
// registered subscriptions are re-established before messages flow again.
func (c *Client) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s:%d", c.cfg.Host, c.cfg.Port))
	opts.SetUsername(c.cfg.User)
	opts.SetPassword(c.cfg.Password)
	opts.SetClientID(c.cfg.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(c.cfg.MaxReconnectInterval)
	opts.SetConnectTimeout(c.cfg.ConnectTimeout)
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		c.restoreSubscriptions()
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Printf("mqttbus: connection lost: %v", err)
	})

	c.client = mqtt.NewClient(opts)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.cfg.InitialReconnectInterval
	bo.MaxInterval = c.cfg.MaxReconnectInterval
	bo.MaxElapsedTime = 0 // retry until ctx is cancelled

	err := backoff.Retry(func() error {
		if token := c.client.Connect(); token.Wait() && token.Error() != nil {
			log.Printf("mqttbus: connect failed: %v", token.Error())
			return token.Error()
		}
		return nil
	}, backoff.WithContext(bo, ctx))
	if err != nil {
		return fmt.Errorf("mqttbus: could not establish connection: %w", err)
	}

	log.Printf("mqttbus: connected to %s:%d as %s", c.cfg.Host, c.cfg.Port, c.cfg.ClientID)
	return nil
}

// Subscribe registers a handler for a pattern. The pattern is validated
// here; a '#' anywhere but the last segment is rejected before it reaches
// the broker. Re-subscribing an existing pattern replaces its handler.
func (c *Client) Subscribe(pattern string, h Handler) error {
	if h == nil {
		return errors.New("mqttbus: nil handler")
	}
	if err := c.matcher.Subscribe(pattern); err != nil {
		return err
	}
	c.mu.Lock()
	c.handlers[pattern] = h
	c.mu.Unlock()

	if c.client == nil {
		// Not connected yet: the broker-side subscription is established by
		// restoreSubscriptions once the session comes up.
		return nil
	}
	token := c.client.Subscribe(pattern, *c.cfg.QoS, c.inbound)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqttbus: subscribe %q: %w", pattern, token.Error())
	}
	return nil
}

// Unsubscribe removes a pattern and its handler.
func (c *Client) Unsubscribe(pattern string) error {
	c.matcher.Unsubscribe(pattern)
	c.mu.Lock()
	delete(c.handlers, pattern)
	c.mu.Unlock()

	if c.client == nil {
		return nil
	}
	token := c.client.Unsubscribe(pattern)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqttbus: unsubscribe %q: %w", pattern, token.Error())
	}
	return nil
}

// Publish sends payload to a concrete topic. While disconnected the message
// is dropped, not queued: callers treat publish as best-effort.
func (c *Client) Publish(topicStr string, qos byte, payload []byte) error {
	if c.client == nil || !c.client.IsConnected() {
		return ErrNotConnected
	}
	token := c.client.Publish(topicStr, qos, false, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqttbus: publish %q: %w", topicStr, token.Error())
	}
	return nil
}

// Disconnect unsubscribes everything and closes the session.
func (c *Client) Disconnect() {
	if c.client == nil {
		return
	}
	for _, p := range c.matcher.Patterns() {
		c.client.Unsubscribe(p).Wait()
	}
	c.client.Disconnect(250)
	log.Printf("mqttbus: disconnected")
}

// IsConnected reports the current session state.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

// restoreSubscriptions re-establishes every registered pattern; runs on
// initial connect and after every automatic reconnect.
func (c *Client) restoreSubscriptions() {
	for _, p := range c.matcher.Patterns() {
		token := c.client.Subscribe(p, *c.cfg.QoS, c.inbound)
		if token.Wait() && token.Error() != nil {
			log.Printf("mqttbus: re-subscribe %q failed: %v", p, token.Error())
		}
	}
}

func (c *Client) inbound(_ mqtt.Client, msg mqtt.Message) {
	c.Dispatch(msg.Topic(), msg.Payload())
}

// Dispatch routes a concrete topic through the matcher and invokes the
// handler of every matching pattern: a broadcast, not first-match. A panic
// or error in one handler is isolated from the others and from the receive
// loop.
func (c *Client) Dispatch(topicStr string, payload []byte) {
	if c.recent.Seen(dedup.Key(topicStr, payload)) {
		return
	}
	for _, pattern := range c.matcher.Match(topicStr) {
		c.mu.RLock()
		h := c.handlers[pattern]
		c.mu.RUnlock()
		if h == nil {
			continue
		}
		c.invoke(h, topicStr, payload)
	}
}

func (c *Client) invoke(h Handler, topicStr string, payload []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("mqttbus: handler panic on %s: %v", topicStr, r)
		}
	}()
	h(topicStr, payload)
}
