// Package server exposes a fleet to remote controllers over websocket and
// serves its metrics.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/orbitfleet/internal/core/observability/log"
	"github.com/zeusync/orbitfleet/internal/fleet"
	"github.com/zeusync/orbitfleet/pkg/api"
	"github.com/zeusync/orbitfleet/pkg/concurrent"
)

// Controller applies remote requests to the fleet.
type Controller interface {
	Send(ctx context.Context, medium, event string, msg fleet.Message) error
	Create(ctx context.Context, req api.Request) error
}

// Config holds server configuration
type Config struct {
	ListenAddr     string
	MaxClients     int
	BroadcastHz    int
	WriteTimeout   time.Duration
	RequestTimeout time.Duration
	MaxMessageSize int64
	ClientTimeout  time.Duration
	// SendQueue is the number of frames buffered per client. A client whose
	// queue is full when a frame arrives is disconnected.
	SendQueue int
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		ListenAddr:     "127.0.0.1:8080",
		MaxClients:     64,
		BroadcastHz:    10,
		WriteTimeout:   5 * time.Second,
		RequestTimeout: 5 * time.Second,
		MaxMessageSize: 64 * 1024,
		ClientTimeout:  5 * time.Minute,
		SendQueue:      16,
	}
}

// Server is the remote control endpoint of a fleet.
type Server struct {
	config   Config
	logger   log.Log
	ctrl     Controller
	metrics  http.Handler
	frames   *FrameSink
	upgrader websocket.Upgrader

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	serveErr   chan error

	clients     sync.Map // map[string]*session
	clientCount atomic.Int64

	running atomic.Bool
	closed  atomic.Bool
}

// New creates a server broadcasting the frames of sink. A nil sink gets a
// fresh one. metrics may be nil, in which case /metrics is not served.
func New(config Config, ctrl Controller, sink *FrameSink, metrics http.Handler, logger log.Log) *Server {
	if logger == nil {
		logger = log.NewNop()
	}
	logger = logger.With(log.String("component", "server"))
	s := &Server{
		config:  config,
		logger:  logger,
		ctrl:    ctrl,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		serveErr: make(chan error, 1),
	}
	if sink == nil {
		sink = NewFrameSink(nil, config.BroadcastHz, logger)
	}
	sink.Attach(s)
	s.frames = sink
	return s
}

// Frames returns the view sink feeding connected clients.
func (s *Server) Frames() *FrameSink { return s.frames }

// Handler routes /ws, /metrics and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(s.Stats()); err != nil {
			s.logger.Warn("Failed to encode stats", log.Error(err))
		}
	})
	return mux
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(_ context.Context) error {
	if s.closed.Load() {
		return ErrServerClosed
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrServerAlreadyRunning
	}

	ln, err := net.Listen("tcp", s.config.ListenAddr)
	if err != nil {
		s.running.Store(false)
		s.logger.Error("Failed to create listener", log.Error(err))
		return err
	}
	hs := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.mu.Lock()
	s.listener = ln
	s.httpServer = hs
	s.mu.Unlock()

	go func() {
		if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.serveErr <- err
		}
	}()

	s.logger.Info("Server listening", log.String("addr", ln.Addr().String()))
	return nil
}

// Addr returns the listening address once started.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop disconnects every client and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return ErrServerNotRunning
	}
	s.logger.Info("Stopping server")

	// a close waits for a write in flight, so sessions close in parallel
	_ = concurrent.Throttle(ctx, s.sessions(), 8, func(_ context.Context, c *session) error {
		return c.close()
	})
	s.mu.Lock()
	hs := s.httpServer
	s.mu.Unlock()
	if err := hs.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	s.logger.Info("Server stopped")
	return nil
}

// Serve runs the server until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
	case err := <-s.serveErr:
		_ = s.Stop(context.Background())
		return err
	}
	stopCtx, cancel := context.WithTimeout(context.Background(), s.config.WriteTimeout+time.Second)
	defer cancel()
	return s.Stop(stopCtx)
}

// Close stops the server if it runs and rejects later Starts.
func (s *Server) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.running.Load() {
		return s.Stop(context.Background())
	}
	return nil
}

// Broadcast queues data for every connected client and returns without
// waiting on the network. Clients that fall a full queue behind are
// disconnected.
func (s *Server) Broadcast(data []byte) {
	for _, c := range s.sessions() {
		if c.enqueue(data) || c.closed.Load() {
			continue
		}
		s.logger.Warn("Client too slow, disconnecting", log.String("client_id", c.id))
		go func() { _ = c.close() }()
	}
}

func (s *Server) sessions() []*session {
	var out []*session
	s.clients.Range(func(_, value any) bool {
		out = append(out, value.(*session))
		return true
	})
	return out
}

// ClientStats describes one connected client.
type ClientStats struct {
	ID          string    `json:"id"`
	ConnectedAt time.Time `json:"connected_at"`
	LastSeen    time.Time `json:"last_seen"`
}

// Stats contains server statistics
type Stats struct {
	ClientCount int64         `json:"client_count"`
	Running     bool          `json:"running"`
	Clients     []ClientStats `json:"clients"`
}

// Stats reports the connected clients, as served on /healthz.
func (s *Server) Stats() Stats {
	st := Stats{
		ClientCount: s.clientCount.Load(),
		Running:     s.running.Load(),
		Clients:     []ClientStats{},
	}
	for _, c := range s.sessions() {
		st.Clients = append(st.Clients, c.info())
	}
	return st
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.config.MaxClients > 0 && s.clientCount.Load() >= int64(s.config.MaxClients) {
		s.logger.Warn("Maximum clients reached, rejecting connection", log.String("remote_addr", r.RemoteAddr))
		http.Error(w, ErrMaxClientsReached.Error(), http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", log.Error(err))
		return
	}
	if s.config.MaxMessageSize > 0 {
		conn.SetReadLimit(s.config.MaxMessageSize)
	}

	c := newSession(conn, s.config.WriteTimeout, s.config.SendQueue)
	s.clients.Store(c.id, c)
	s.clientCount.Add(1)

	logger := s.logger.With(log.String("client_id", c.id))
	logger.Info("Client connected",
		log.String("remote_addr", conn.RemoteAddr().String()),
		log.Int64("total_clients", s.clientCount.Load()))

	defer func() {
		s.clients.Delete(c.id)
		s.clientCount.Add(-1)
		_ = c.close()
		logger.Info("Client disconnected", log.Int64("total_clients", s.clientCount.Load()))
	}()

	if last := s.frames.LastFrame(); last != nil {
		if err := c.write(last); err != nil {
			logger.Warn("Failed to send initial frame", log.Error(err))
			return
		}
	}
	go c.writeLoop(logger)

	for {
		if s.config.ClientTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.config.ClientTimeout))
		}
		data, err := c.read()
		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) &&
				(closeErr.Code == websocket.CloseNormalClosure || closeErr.Code == websocket.CloseGoingAway) {
				return
			}
			if !c.closed.Load() {
				logger.Warn("Failed to receive message", log.Error(err))
			}
			return
		}
		reply := s.handleRequest(r.Context(), logger, data)
		if err := c.writeJSON(api.Message{Type: api.TypeReply, Reply: &reply}); err != nil {
			logger.Warn("Failed to send reply", log.Error(err))
			return
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, logger log.Log, data []byte) api.Reply {
	var req api.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return failed(req.Seq, fmt.Errorf("%w: %w", api.ErrInvalidRequest, err))
	}
	if err := req.Normalize(); err != nil {
		return failed(req.Seq, err)
	}

	if s.config.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.RequestTimeout)
		defer cancel()
	}

	var err error
	switch req.Op {
	case api.OpSend:
		cmd, ok := fleet.ParseCommand(req.Command)
		if !ok {
			return failed(req.Seq, fmt.Errorf("%w %q", ErrUnknownCommand, req.Command))
		}
		err = s.ctrl.Send(ctx, req.Medium, req.Event, fleet.Message{TargetID: req.ID, Command: cmd})
	case api.OpCreate:
		err = s.ctrl.Create(ctx, req)
	}
	if err != nil {
		logger.Info("Request failed",
			log.String("op", string(req.Op)),
			log.String("ship", req.ID),
			log.Error(err))
		return failed(req.Seq, err)
	}
	logger.Debug("Request handled", log.String("op", string(req.Op)), log.String("ship", req.ID))
	return api.Reply{Seq: req.Seq, OK: true}
}

func failed(seq uint64, err error) api.Reply {
	return api.Reply{Seq: seq, Code: fleet.ErrorCode(err), Error: err.Error()}
}
