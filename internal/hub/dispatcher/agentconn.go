// SPDX-License-Identifier: BSD-3-Clause

package dispatcher

import (
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/pankha/pankha/pkg/wire"
)

const agentSendQueueSize = 32

// agentConn is the hub-side handle to one agent's live session. It owns a
// single writer goroutine so concurrent callers (the command router, the
// connection handler sending registered/close frames) never race on the
// same *websocket.Conn,
// mirroring the agent's own single-writer-actor session design generalized
// from one outbound connection to many inbound ones.
type agentConn struct {
	agentID string
	conn    *websocket.Conn
	sendCh  chan any
	logger  *slog.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

func newAgentConn(agentID string, conn *websocket.Conn, logger *slog.Logger) *agentConn {
	return &agentConn{
		agentID: agentID,
		conn:    conn,
		sendCh:  make(chan any, agentSendQueueSize),
		logger:  logger,
		closed:  make(chan struct{}),
	}
}

// SendCommand implements registry.Session.
func (a *agentConn) SendCommand(frame wire.CommandFrame) error {
	select {
	case a.sendCh <- frame:
		return nil
	case <-a.closed:
		return ErrAgentOffline
	}
}

// send enqueues any other outbound frame (registered, close).
func (a *agentConn) send(frame any) {
	select {
	case a.sendCh <- frame:
	case <-a.closed:
	}
}

// Close implements registry.Session.
func (a *agentConn) Close() error {
	a.closeOnce.Do(func() { close(a.closed) })
	return a.conn.Close()
}

// writeLoop drains sendCh onto the connection until closed. Run it in its
// own goroutine for the lifetime of the session.
func (a *agentConn) writeLoop() {
	for {
		select {
		case <-a.closed:
			return
		case frame := <-a.sendCh:
			if err := a.conn.WriteJSON(frame); err != nil {
				a.logger.Warn("agent write failed", "agentId", a.agentID, "error", err)
				return
			}
		}
	}
}
