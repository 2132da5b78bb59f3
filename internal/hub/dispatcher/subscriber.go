// SPDX-License-Identifier: BSD-3-Clause

package dispatcher

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const subscriberQueueSize = 32

// subscriber is one UI client's outbound channel. Per spec.md §4.5
// backpressure: a full queue first triggers coalescing — successive
// systemDelta frames for the same agent collapse to the latest value
// instead of queuing — and a second overflow while already coalescing
// disconnects the subscriber with a recoverable close code.
type subscriber struct {
	conn   *websocket.Conn
	logger *slog.Logger

	ch chan any

	mu         sync.Mutex
	coalescing bool
	pending    map[string]any // agentID -> latest unsent systemDelta

	closeOnce sync.Once
	closed    chan struct{}
}

func newSubscriber(conn *websocket.Conn, logger *slog.Logger) *subscriber {
	return &subscriber{
		conn:    conn,
		logger:  logger,
		ch:      make(chan any, subscriberQueueSize),
		pending: make(map[string]any),
		closed:  make(chan struct{}),
	}
}

// enqueue admits a frame for delivery. coalesceKey is non-empty only for
// systemDelta frames, which are the only frame kind allowed to collapse
// under backpressure; fullState/agentRegistered/agentOffline frames are
// never coalesced. Returns false when the subscriber has overflowed twice
// and must be disconnected.
func (s *subscriber) enqueue(coalesceKey string, frame any) bool {
	select {
	case s.ch <- frame:
		return true
	default:
	}

	if coalesceKey == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.coalescing {
		return false
	}
	s.coalescing = true
	s.pending[coalesceKey] = frame
	return true
}

// drainPending is called by the writer loop after every successful send,
// pushing through as much of the coalesced backlog as fits.
func (s *subscriber) drainPending() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, frame := range s.pending {
		select {
		case s.ch <- frame:
			delete(s.pending, key)
		default:
			return
		}
	}
	s.coalescing = false
}

func (s *subscriber) writeLoop() {
	for {
		select {
		case <-s.closed:
			return
		case frame := <-s.ch:
			if err := s.conn.WriteJSON(frame); err != nil {
				s.logger.Debug("subscriber write failed", "error", err)
				return
			}
			s.drainPending()
		}
	}
}

func (s *subscriber) close(code int, reason string) {
	s.closeOnce.Do(func() {
		close(s.closed)
		msg := websocket.FormatCloseMessage(code, reason)
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(2*time.Second))
		_ = s.conn.Close()
	})
}
