// Package natsclient provides a client for managing NATS connections used
// by sink components.
package natsclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/mongosink/errors"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int32

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusClosed
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrNotConnected indicates an operation was attempted without a live connection.
var ErrNotConnected = stderrors.New("not connected to NATS")

// Config holds NATS connection settings
type Config struct {
	URL           string        `json:"url"`
	Name          string        `json:"name,omitempty"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
	Timeout       time.Duration `json:"timeout,omitempty"`
}

// DefaultConfig returns sensible connection defaults
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		MaxReconnects: -1,
		ReconnectWait: 2 * time.Second,
		Timeout:       5 * time.Second,
	}
}

// MessageHandler processes one received message payload
type MessageHandler func(ctx context.Context, data []byte)

// Client manages a NATS connection and its subscriptions
type Client struct {
	conn       *nats.Conn
	status     atomic.Int32
	reconnects atomic.Int32

	subs   []*nats.Subscription
	subsMu sync.Mutex
}

// Connect establishes a NATS connection with reconnect handling
func Connect(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 2 * time.Second
	}

	c := &Client{}
	c.status.Store(int32(StatusConnecting))

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.Timeout(cfg.Timeout),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, _ error) {
			c.status.Store(int32(StatusReconnecting))
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			c.reconnects.Add(1)
			c.status.Store(int32(StatusConnected))
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			c.status.Store(int32(StatusClosed))
		}),
	}

	conn, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		c.status.Store(int32(StatusDisconnected))
		return nil, errors.WrapTransient(err, "Client", "Connect", fmt.Sprintf("connect to %s", cfg.URL))
	}

	c.conn = conn
	c.status.Store(int32(StatusConnected))
	return c, nil
}

// Subscribe registers a handler for a subject. The handler receives the
// given context on every delivery; delivery stops when the client closes.
func (c *Client) Subscribe(ctx context.Context, subject string, handler MessageHandler) error {
	if c.conn == nil || !c.conn.IsConnected() {
		return errors.WrapTransient(ErrNotConnected, "Client", "Subscribe", fmt.Sprintf("subscribe to %s", subject))
	}

	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(ctx, msg.Data)
	})
	if err != nil {
		return errors.WrapTransient(err, "Client", "Subscribe", fmt.Sprintf("subscribe to %s", subject))
	}

	c.subsMu.Lock()
	c.subs = append(c.subs, sub)
	c.subsMu.Unlock()
	return nil
}

// Publish sends a payload to a subject
func (c *Client) Publish(subject string, data []byte) error {
	if c.conn == nil || !c.conn.IsConnected() {
		return errors.WrapTransient(ErrNotConnected, "Client", "Publish", fmt.Sprintf("publish to %s", subject))
	}
	if err := c.conn.Publish(subject, data); err != nil {
		return errors.WrapTransient(err, "Client", "Publish", fmt.Sprintf("publish to %s", subject))
	}
	return nil
}

// IsConnected reports whether the underlying connection is live
func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}

// Status returns the tracked connection status
func (c *Client) Status() ConnectionStatus {
	return ConnectionStatus(c.status.Load())
}

// Reconnects returns the number of reconnections seen
func (c *Client) Reconnects() int32 {
	return c.reconnects.Load()
}

// Drain unsubscribes all subscriptions and drains the connection
func (c *Client) Drain() error {
	c.subsMu.Lock()
	subs := c.subs
	c.subs = nil
	c.subsMu.Unlock()

	for _, sub := range subs {
		if err := sub.Drain(); err != nil && !stderrors.Is(err, nats.ErrConnectionClosed) {
			return errors.WrapTransient(err, "Client", "Drain", "drain subscription")
		}
	}

	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Drain(); err != nil {
			return errors.WrapTransient(err, "Client", "Drain", "drain connection")
		}
	}
	return nil
}

// Close closes the connection immediately
func (c *Client) Close() {
	if c.conn != nil && !c.conn.IsClosed() {
		c.conn.Close()
	}
	c.status.Store(int32(StatusClosed))
}
