package inmemory

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/internal/repository/connection"
)

const closeGracePeriod = time.Second

// repo tracks every live websocket so shutdown can close them.
type repo struct {
	connList map[*websocket.Conn]string
	idList   map[string]*websocket.Conn
	mu       sync.RWMutex
	logger   *slog.Logger
}

func NewRepo(logger *slog.Logger) *repo {
	return &repo{
		connList: make(map[*websocket.Conn]string),
		idList:   make(map[string]*websocket.Conn),
		logger:   logger.With("component", "connection.inmemory"),
	}
}

func (r *repo) Add(conn *websocket.Conn, connId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug("add", "conn_id", connId)
	if _, ok := r.connList[conn]; ok {
		return connection.ErrAlreadyExists
	}
	if _, ok := r.idList[connId]; ok {
		return connection.ErrAlreadyExists
	}

	r.connList[conn] = connId
	r.idList[connId] = conn

	return nil
}

// Remove forgets conn without closing it.
func (r *repo) Remove(conn *websocket.Conn) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	connId, ok := r.connList[conn]
	if !ok {
		r.logger.Debug("remove", "error", connection.ErrNotFound)
		return connection.ErrNotFound
	}

	delete(r.connList, conn)
	delete(r.idList, connId)

	r.logger.Debug("remove", "conn_id", connId)
	return nil
}

func (r *repo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.connList)
}

// CloseAll sends a going-away close frame to every tracked connection, closes it and
// empties the repo. It returns the number of connections closed.
func (r *repo) CloseAll() int {
	r.mu.Lock()
	conns := r.connList
	r.connList = make(map[*websocket.Conn]string)
	r.idList = make(map[string]*websocket.Conn)
	r.mu.Unlock()

	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	for conn, connId := range conns {
		if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod)); err != nil {
			r.logger.Debug("failed to write close frame", "conn_id", connId, "error", err)
		}
		conn.Close()
	}

	r.logger.Info("closed connections", "count", len(conns))
	return len(conns)
}
