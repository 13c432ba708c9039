package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/asset-market/internal/model"
)

// ClientConfig configures a feed subscription.
type ClientConfig struct {
	URL        string      // ws:// or wss:// URL including any filter query
	Header     http.Header // extra handshake headers, e.g. auth
	BufferSize int         // decoded events queued before dropping
}

// Client receives events from a Hub.
type Client struct {
	cfg    ClientConfig
	logger *slog.Logger

	conn *websocket.Conn

	events chan model.Event
	errors chan error
	done   chan struct{}

	mu        sync.Mutex
	connected bool
	closed    bool
}

// NewClient creates an unconnected client.
func NewClient(cfg ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}

	return &Client{
		cfg:    cfg,
		logger: logger,
		events: make(chan model.Event, cfg.BufferSize),
		errors: make(chan error, 1),
		done:   make(chan struct{}),
	}
}

// Connect dials the feed and starts reading.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrAlreadyClosed
	}
	c.mu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readLoop()

	c.logger.Debug("feed connected", "url", c.cfg.URL)
	return nil
}

// Events returns decoded events in the order the server sent them.
func (c *Client) Events() <-chan model.Event {
	return c.events
}

// Errors reports the error that ended the read loop.
func (c *Client) Errors() <-chan error {
	return c.errors
}

// IsConnected returns current connection state.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Close sends a close frame and closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	conn := c.conn
	c.mu.Unlock()

	close(c.done)

	if conn == nil {
		return nil
	}
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return conn.Close()
}

func (c *Client) readLoop() {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
			case c.errors <- err:
			default:
			}
			return
		}

		var ev model.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			c.logger.Warn("failed to decode feed event", "error", err)
			continue
		}

		select {
		case c.events <- ev:
		case <-c.done:
			return
		default:
			c.logger.Warn("event buffer full, dropping event", "seq", ev.Seq)
		}
	}
}
