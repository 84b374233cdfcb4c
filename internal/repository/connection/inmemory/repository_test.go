package inmemory

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/internal/repository/connection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialPair(t *testing.T) (server *websocket.Conn, client *websocket.Conn) {
	t.Helper()
	serverConns := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	select {
	case server = <-serverConns:
	case <-time.After(time.Second):
		t.Fatal("server connection not accepted")
	}

	return server, client
}

func TestRepo(t *testing.T) {
	r := NewRepo(slog.Default())
	conn, _ := dialPair(t)

	require.NoError(t, r.Add(conn, "c1"))
	assert.ErrorIs(t, r.Add(conn, "c2"), connection.ErrAlreadyExists)
	assert.Equal(t, 1, r.Len())

	other, _ := dialPair(t)
	assert.ErrorIs(t, r.Add(other, "c1"), connection.ErrAlreadyExists)
	assert.Equal(t, 1, r.Len())

	require.NoError(t, r.Remove(conn))
	assert.ErrorIs(t, r.Remove(conn), connection.ErrNotFound)
	assert.Equal(t, 0, r.Len())

	// the id is free again once removed
	require.NoError(t, r.Add(other, "c1"))
	assert.Equal(t, 1, r.Len())
}

func TestCloseAll(t *testing.T) {
	r := NewRepo(slog.Default())
	conn, client := dialPair(t)
	require.NoError(t, r.Add(conn, "c1"))

	assert.Equal(t, 1, r.CloseAll())
	assert.Equal(t, 0, r.Len())

	client.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := client.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "unexpected error: %v", err)
}
