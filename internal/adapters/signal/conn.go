package signal

import (
	"errors"
	"sync"

	"github.com/dkeye/huddle/internal/core"
	"github.com/gorilla/websocket"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// WsSignalConn is a websocket with a bounded outbound queue drained by writePump.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func NewWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, buffer),
	}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}
