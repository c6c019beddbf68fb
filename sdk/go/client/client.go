// Package client is a Go SDK for controlling a fleet server over websocket.
package client

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/orbitfleet/internal/core/observability/log"
	"github.com/zeusync/orbitfleet/internal/fleet"
	"github.com/zeusync/orbitfleet/pkg/api"
)

// Config holds configuration for the client
type Config struct {
	URL            string
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration
	// FrameBuffer frames are kept for a slow reader; older ones are dropped.
	FrameBuffer int
	Logger      log.Log
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		URL:            "ws://127.0.0.1:8080/ws",
		ConnectTimeout: 10 * time.Second,
		WriteTimeout:   5 * time.Second,
		FrameBuffer:    16,
	}
}

// Client is a connection to a fleet server.
type Client struct {
	conn   *websocket.Conn
	config Config
	logger log.Log

	seq     atomic.Uint64
	mu      sync.Mutex
	pending map[uint64]chan api.Reply
	writeMu sync.Mutex

	frames chan api.Frame
	closed atomic.Bool
	done   chan struct{}
}

// Dial connects to the server at cfg.URL.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.Wrap(ErrInvalidConfig, "empty url")
	}
	if cfg.FrameBuffer <= 0 {
		cfg.FrameBuffer = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", cfg.URL)
	}

	c := &Client{
		conn:    conn,
		config:  cfg,
		logger:  cfg.Logger.With(log.String("server", cfg.URL)),
		pending: make(map[uint64]chan api.Reply),
		frames:  make(chan api.Frame, cfg.FrameBuffer),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	c.logger.Debug("Connected")
	return c, nil
}

// Frames delivers fleet frames. The channel is closed when the connection
// ends.
func (c *Client) Frames() <-chan api.Frame { return c.frames }

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Send issues req and waits for the server's reply. A refused request is
// returned as the reply, not as an error.
func (c *Client) Send(ctx context.Context, req api.Request) (api.Reply, error) {
	if c.closed.Load() {
		return api.Reply{}, ErrClientClosed
	}
	req.Seq = c.seq.Add(1)
	wait := make(chan api.Reply, 1)

	c.mu.Lock()
	c.pending[req.Seq] = wait
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, req.Seq)
		c.mu.Unlock()
	}()

	if err := c.write(req); err != nil {
		return api.Reply{}, err
	}

	select {
	case reply := <-wait:
		return reply, nil
	case <-c.done:
		return api.Reply{}, ErrClientClosed
	case <-ctx.Done():
		return api.Reply{}, ctx.Err()
	}
}

// Command sends a command to ship id over the named medium and event.
func (c *Client) Command(ctx context.Context, medium, event, id string, cmd fleet.Command) error {
	return c.do(ctx, api.Request{Op: api.OpSend, Medium: medium, Event: event, ID: id, Command: string(cmd)})
}

// Create asks the server to add a ship.
func (c *Client) Create(ctx context.Context, id string, bindings []api.Binding, opts *api.ShipOptions) error {
	return c.do(ctx, api.Request{Op: api.OpCreate, ID: id, Bindings: bindings, Options: opts})
}

func (c *Client) do(ctx context.Context, req api.Request) error {
	reply, err := c.Send(ctx, req)
	if err != nil {
		return err
	}
	if !reply.OK {
		return &ReplyError{Code: reply.Code, Message: reply.Error}
	}
	return nil
}

// Close ends the connection.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()
	err := c.conn.Close()
	<-c.done
	return err
}

func (c *Client) write(req api.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return errors.Wrap(err, "failed to marshal request")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.config.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(err, "failed to write request")
	}
	return nil
}

func (c *Client) readLoop() {
	defer func() {
		c.closed.Store(true)
		_ = c.conn.Close()
		close(c.frames)
		close(c.done)
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.logger.Warn("Connection lost", log.Error(err))
			}
			return
		}
		var msg api.Message
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("Dropping malformed message", log.Error(err))
			continue
		}
		switch {
		case msg.Type == api.TypeReply && msg.Reply != nil:
			c.deliverReply(*msg.Reply)
		case msg.Type == api.TypeFrame && msg.Frame != nil:
			c.deliverFrame(*msg.Frame)
		default:
			c.logger.Debug("Ignoring message", log.String("type", msg.Type))
		}
	}
}

func (c *Client) deliverReply(reply api.Reply) {
	c.mu.Lock()
	wait, ok := c.pending[reply.Seq]
	c.mu.Unlock()
	if !ok {
		// a reply to an abandoned or unparsable request
		c.logger.Debug("Unmatched reply", log.Uint64("seq", reply.Seq), log.String("error", reply.Error))
		return
	}
	select {
	case wait <- reply:
	default:
	}
}

// deliverFrame drops the oldest buffered frame when the reader falls behind.
func (c *Client) deliverFrame(frame api.Frame) {
	for {
		select {
		case c.frames <- frame:
			return
		default:
		}
		select {
		case <-c.frames:
		default:
		}
	}
}
