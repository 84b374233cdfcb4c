package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sharetube/watchparty/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu       sync.Mutex
	name     string
	messages []*Message
	fail     bool
}

func newFakeConn(name string) *fakeConn {
	return &fakeConn{name: name}
}

func (c *fakeConn) Send(msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.fail {
		return errors.New("send buffer full")
	}

	c.messages = append(c.messages, msg.(*Message))
	return nil
}

func (c *fakeConn) received() []*Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]*Message(nil), c.messages...)
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.messages = nil
}

func newTestService() *service {
	return New(metrics.New(prometheus.NewRegistry()), slog.Default())
}

func TestJoinBroadcastsToAllIncludingJoiner(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	a, b := newFakeConn("a"), newFakeConn("b")

	s.Join(ctx, a, "room1")
	require.Len(t, a.received(), 1)
	assert.Equal(t, TypeNewUserJoined, a.received()[0].Type)
	assert.Equal(t, NewUserJoinedPayload{SessionCode: "room1"}, a.received()[0].Payload)

	s.Join(ctx, b, "room1")
	assert.Len(t, a.received(), 2)
	assert.Len(t, b.received(), 1)
	assert.Equal(t, 2, s.Members("room1"))
}

func TestLeaveDoesNotBroadcast(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	a, b := newFakeConn("a"), newFakeConn("b")

	s.Join(ctx, a, "room1")
	s.Join(ctx, b, "room1")
	a.reset()

	s.Leave(ctx, b, "room1")
	assert.Empty(t, a.received())
	assert.Equal(t, 1, s.Members("room1"))
}

func TestSyncCommandExcludesSender(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	a, b, c := newFakeConn("a"), newFakeConn("b"), newFakeConn("c")

	for _, conn := range []*fakeConn{a, b, c} {
		s.Join(ctx, conn, "room1")
	}
	a.reset()
	b.reset()
	c.reset()

	s.RelaySyncCommand(ctx, a, "room1", "pause", 12.5)

	assert.Empty(t, a.received())
	for _, conn := range []*fakeConn{b, c} {
		require.Len(t, conn.received(), 1, conn.name)
		assert.Equal(t, &Message{
			Type: TypeSyncAction,
			Payload: SyncActionPayload{
				SessionCode: "room1",
				Action:      "pause",
				CurrentTime: 12.5,
			},
		}, conn.received()[0])
	}
}

func TestClockReportIncludesSender(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	a, b := newFakeConn("a"), newFakeConn("b")

	s.Join(ctx, a, "room1")
	s.Join(ctx, b, "room1")
	a.reset()
	b.reset()

	s.RelayClockReport(ctx, a, "room1", 42)

	for _, conn := range []*fakeConn{a, b} {
		require.Len(t, conn.received(), 1, conn.name)
		assert.Equal(t, TypeUpdateTime, conn.received()[0].Type)
		assert.Equal(t, UpdateTimePayload{CurrentTime: 42}, conn.received()[0].Payload)
	}
}

func TestNoDeliveryAfterLeave(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	a, b := newFakeConn("a"), newFakeConn("b")

	s.Join(ctx, a, "room1")
	s.Join(ctx, b, "room1")
	s.Leave(ctx, b, "room1")
	b.reset()

	s.RelaySyncCommand(ctx, a, "room1", "play", 1)
	s.RelayClockReport(ctx, a, "room1", 1)
	assert.Empty(t, b.received())
}

func TestRoomsAreIsolated(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	a, b := newFakeConn("a"), newFakeConn("b")

	s.Join(ctx, a, "room1")
	s.Join(ctx, b, "room2")
	a.reset()
	b.reset()

	s.RelayClockReport(ctx, a, "room1", 5)
	assert.Len(t, a.received(), 1)
	assert.Empty(t, b.received())
}

func TestRejoinAfterRoomEmptied(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	a, b := newFakeConn("a"), newFakeConn("b")

	s.Join(ctx, a, "room1")
	s.Leave(ctx, a, "room1")
	assert.Equal(t, 0, s.Members("room1"))

	a.reset()
	s.Join(ctx, b, "room1")
	assert.Equal(t, 1, s.Members("room1"))
	assert.Empty(t, a.received())
	assert.Len(t, b.received(), 1)
}

func TestUnknownAndEmptyRoomsAreNoOps(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	a := newFakeConn("a")

	s.RelaySyncCommand(ctx, a, "missing", "play", 0)
	s.RelayClockReport(ctx, a, "missing", 0)
	s.Leave(ctx, a, "missing")
	s.Join(ctx, a, "")
	s.Leave(ctx, a, "")

	assert.Empty(t, a.received())
	assert.Equal(t, 0, s.Members(""))
	assert.Empty(t, s.SessionCodes(a))
}

func TestRelayFromNonMember(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	a, outsider := newFakeConn("a"), newFakeConn("outsider")

	s.Join(ctx, a, "room1")
	a.reset()

	s.RelaySyncCommand(ctx, outsider, "room1", "seek", 3)
	assert.Len(t, a.received(), 1)
	assert.Empty(t, outsider.received())
}

func TestDisconnectLeavesAllRooms(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	a, b := newFakeConn("a"), newFakeConn("b")

	s.Join(ctx, a, "room2")
	s.Join(ctx, a, "room1")
	s.Join(ctx, b, "room1")
	assert.Equal(t, []string{"room1", "room2"}, s.SessionCodes(a))

	s.Disconnect(ctx, a)
	assert.Empty(t, s.SessionCodes(a))
	assert.Equal(t, 1, s.Members("room1"))
	assert.Equal(t, 0, s.Members("room2"))

	a.reset()
	s.RelayClockReport(ctx, b, "room1", 1)
	assert.Empty(t, a.received())

	// disconnecting an unknown connection is harmless
	s.Disconnect(ctx, newFakeConn("c"))
}

func TestFailedSendDropsMember(t *testing.T) {
	s := newTestService()
	ctx := context.Background()
	a, b := newFakeConn("a"), newFakeConn("b")

	s.Join(ctx, a, "room1")
	s.Join(ctx, b, "room1")
	b.mu.Lock()
	b.fail = true
	b.mu.Unlock()

	s.RelaySyncCommand(ctx, a, "room1", "play", 0)
	assert.Equal(t, 1, s.Members("room1"))
	assert.Empty(t, s.SessionCodes(b))
}

func TestPerRoomOrdering(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	members := make([]*fakeConn, 5)
	for i := range members {
		members[i] = newFakeConn(fmt.Sprint("m", i))
		s.Join(ctx, members[i], "room1")
	}
	for _, m := range members {
		m.reset()
	}

	const reportsPerSender = 50
	var wg sync.WaitGroup
	for i, sender := range members {
		wg.Add(1)
		go func(i int, sender *fakeConn) {
			defer wg.Done()
			for n := 0; n < reportsPerSender; n++ {
				s.RelayClockReport(ctx, sender, "room1", float64(i*1000+n))
			}
		}(i, sender)
	}
	wg.Wait()

	want := members[0].received()
	require.Len(t, want, len(members)*reportsPerSender)
	for _, m := range members[1:] {
		assert.Equal(t, want, m.received(), m.name)
	}
}

func TestConcurrentRooms(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	const roomsCount = 8
	conns := make([]*fakeConn, roomsCount)
	var wg sync.WaitGroup
	for i := 0; i < roomsCount; i++ {
		conns[i] = newFakeConn(fmt.Sprint("c", i))
		wg.Add(1)
		go func(conn *fakeConn, code string) {
			defer wg.Done()
			s.Join(ctx, conn, code)
			for n := 0; n < 20; n++ {
				s.RelayClockReport(ctx, conn, code, float64(n))
			}
			s.Leave(ctx, conn, code)
		}(conns[i], fmt.Sprint("room", i))
	}
	wg.Wait()

	for _, conn := range conns {
		assert.Len(t, conn.received(), 21, conn.name)
	}
	for i := 0; i < roomsCount; i++ {
		assert.Equal(t, 0, s.Members(fmt.Sprint("room", i)))
	}
}

func TestConcurrentJoinLeaveSameRoom(t *testing.T) {
	s := newTestService()
	ctx := context.Background()

	const (
		code       = "shared"
		connsCount = 32
	)
	conns := make([]*fakeConn, connsCount)
	for i := range conns {
		conns[i] = newFakeConn(fmt.Sprint("c", i))
	}

	stop := make(chan struct{})
	relayer := newFakeConn("relayer")
	var relayWg sync.WaitGroup
	relayWg.Add(1)
	go func() {
		defer relayWg.Done()
		for n := 0; ; n++ {
			select {
			case <-stop:
				return
			default:
			}
			s.RelaySyncCommand(ctx, relayer, code, "play", float64(n))
			s.RelayClockReport(ctx, relayer, code, float64(n))
			s.Members(code)
		}
	}()

	// even conns leave again, every fourth one leaves twice
	var wg sync.WaitGroup
	for i, conn := range conns {
		wg.Add(1)
		go func(i int, conn *fakeConn) {
			defer wg.Done()
			s.Join(ctx, conn, code)
			if i%2 == 0 {
				s.Leave(ctx, conn, code)
			}
			if i%4 == 0 {
				s.Leave(ctx, conn, code)
			}
		}(i, conn)
	}
	wg.Wait()
	close(stop)
	relayWg.Wait()

	assert.Equal(t, connsCount/2, s.Members(code))
	for i, conn := range conns {
		if i%2 == 0 {
			assert.Empty(t, s.SessionCodes(conn), conn.name)
		} else {
			assert.Equal(t, []string{code}, s.SessionCodes(conn), conn.name)
		}
	}
	assert.Empty(t, s.SessionCodes(relayer))

	for _, conn := range conns {
		s.Disconnect(ctx, conn)
	}
	assert.Equal(t, 0, s.Members(code))
}
