package controller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

var (
	errSendBufferFull = errors.New("send buffer full")
	errClientClosed   = errors.New("client closed")
)

// client owns the write side of one websocket. All writes go through writePump.
type client struct {
	id        string
	conn      *websocket.Conn
	send      chan any
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(id string, conn *websocket.Conn, sendBuffer int) *client {
	return &client{
		id:   id,
		conn: conn,
		send: make(chan any, sendBuffer),
		done: make(chan struct{}),
	}
}

// Send enqueues msg without blocking. A client whose buffer is full is closed.
func (cl *client) Send(msg any) error {
	select {
	case <-cl.done:
		return errClientClosed
	default:
	}

	select {
	case cl.send <- msg:
		return nil
	default:
		cl.close()
		return errSendBufferFull
	}
}

func (cl *client) close() {
	cl.closeOnce.Do(func() {
		close(cl.done)
		cl.conn.Close()
	})
}

func (cl *client) writePump(ctx context.Context, logger *slog.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-cl.send:
			cl.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := cl.conn.WriteJSON(msg); err != nil {
				logger.DebugContext(ctx, "failed to write message", "error", err)
				cl.close()
				return
			}
		case <-ticker.C:
			if err := cl.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				logger.DebugContext(ctx, "failed to write ping", "error", err)
				cl.close()
				return
			}
		case <-cl.done:
			return
		}
	}
}
