package server

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/zeusync/orbitfleet/internal/core/observability/log"
)

// session is one websocket controller connection. Replies are written by the
// connection goroutine; frames go through send and are written by writeLoop.
type session struct {
	id           string
	conn         *websocket.Conn
	writeTimeout time.Duration
	connectedAt  time.Time
	lastSeen     atomic.Int64 // unix nanoseconds
	closed       atomic.Bool

	send chan []byte
	done chan struct{}

	// gorilla allows one concurrent writer
	writeMu sync.Mutex
}

func newSession(conn *websocket.Conn, writeTimeout time.Duration, queue int) *session {
	if queue < 1 {
		queue = 1
	}
	now := time.Now()
	s := &session{
		id:           uuid.NewString(),
		conn:         conn,
		writeTimeout: writeTimeout,
		connectedAt:  now,
		send:         make(chan []byte, queue),
		done:         make(chan struct{}),
	}
	s.lastSeen.Store(now.UnixNano())
	return s
}

// enqueue hands data to the writer without blocking. It reports false when
// the session is closed or its queue is full.
func (s *session) enqueue(data []byte) bool {
	if s.closed.Load() {
		return false
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

// writeLoop drains the send queue until the session closes or a write fails.
func (s *session) writeLoop(logger log.Log) {
	for {
		select {
		case <-s.done:
			return
		case data := <-s.send:
			if err := s.write(data); err != nil {
				if !s.closed.Load() {
					logger.Debug("Failed to send frame", log.Error(err))
				}
				_ = s.close()
				return
			}
		}
	}
}

func (s *session) write(data []byte) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.writeTimeout > 0 {
		_ = s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return errors.Wrap(err, "failed to write message")
	}
	return nil
}

func (s *session) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "failed to marshal message")
	}
	return s.write(data)
}

func (s *session) read() ([]byte, error) {
	messageType, data, err := s.conn.ReadMessage()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read message")
	}
	if messageType != websocket.TextMessage {
		return nil, errors.New("expected text message")
	}
	s.lastSeen.Store(time.Now().UnixNano())
	return data, nil
}

func (s *session) info() ClientStats {
	return ClientStats{
		ID:          s.id,
		ConnectedAt: s.connectedAt,
		LastSeen:    time.Unix(0, s.lastSeen.Load()),
	}
}

func (s *session) close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.done)
	s.writeMu.Lock()
	_ = s.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	s.writeMu.Unlock()
	return s.conn.Close()
}
