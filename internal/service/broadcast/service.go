package broadcast

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/exp/maps"
)

// Conn is one member connection. Send must not block: implementations enqueue and
// return an error when the message cannot be delivered.
type Conn interface {
	Send(msg any) error
}

type iMetrics interface {
	SetRooms(n int)
	EventRelayed(eventType string)
}

type room struct {
	mu      sync.Mutex
	members map[Conn]struct{}
}

// service keeps room membership in memory. Join, Leave and Disconnect take the write
// lock; relays take the read lock plus the room lock, so a room's events reach every
// member in one order while different rooms fan out in parallel.
type service struct {
	mu          sync.RWMutex
	rooms       map[string]*room
	memberships map[Conn]map[string]struct{}
	metrics     iMetrics
	logger      *slog.Logger
}

func New(metrics iMetrics, logger *slog.Logger) *service {
	return &service{
		rooms:       make(map[string]*room),
		memberships: make(map[Conn]map[string]struct{}),
		metrics:     metrics,
		logger:      logger.With("component", "service.broadcast"),
	}
}

// Join adds conn to the room and announces it to every member, conn included.
func (s *service) Join(ctx context.Context, conn Conn, sessionCode string) {
	if sessionCode == "" {
		return
	}

	s.mu.Lock()
	r, ok := s.rooms[sessionCode]
	if !ok {
		r = &room{members: make(map[Conn]struct{})}
		s.rooms[sessionCode] = r
	}
	r.members[conn] = struct{}{}

	codes, ok := s.memberships[conn]
	if !ok {
		codes = make(map[string]struct{})
		s.memberships[conn] = codes
	}
	codes[sessionCode] = struct{}{}

	failed := fanOut(r, &Message{
		Type:    TypeNewUserJoined,
		Payload: NewUserJoinedPayload{SessionCode: sessionCode},
	}, nil)
	roomsCount := len(s.rooms)
	membersCount := len(r.members)
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "joined", "session_code", sessionCode, "members", membersCount)
	s.metrics.SetRooms(roomsCount)
	s.metrics.EventRelayed(TypeNewUserJoined)
	s.dropFailed(ctx, failed)
}

// Leave removes conn from the room without notifying the others.
func (s *service) Leave(ctx context.Context, conn Conn, sessionCode string) {
	if sessionCode == "" {
		return
	}

	s.mu.Lock()
	s.removeLocked(conn, sessionCode)
	roomsCount := len(s.rooms)
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "left", "session_code", sessionCode)
	s.metrics.SetRooms(roomsCount)
}

// Disconnect removes conn from every room it is in.
func (s *service) Disconnect(ctx context.Context, conn Conn) {
	s.mu.Lock()
	codes := maps.Keys(s.memberships[conn])
	for _, code := range codes {
		s.removeLocked(conn, code)
	}
	roomsCount := len(s.rooms)
	s.mu.Unlock()

	if len(codes) > 0 {
		s.logger.DebugContext(ctx, "disconnected", "session_codes", codes)
	}
	s.metrics.SetRooms(roomsCount)
}

// RelaySyncCommand forwards a playback command to everyone in the room except the sender.
func (s *service) RelaySyncCommand(ctx context.Context, conn Conn, sessionCode, action string, currentTime float64) {
	s.relay(ctx, sessionCode, &Message{
		Type: TypeSyncAction,
		Payload: SyncActionPayload{
			SessionCode: sessionCode,
			Action:      action,
			CurrentTime: currentTime,
		},
	}, conn)
}

// RelayClockReport forwards the sender's playback position to the whole room, sender included.
func (s *service) RelayClockReport(ctx context.Context, conn Conn, sessionCode string, currentTime float64) {
	s.relay(ctx, sessionCode, &Message{
		Type:    TypeUpdateTime,
		Payload: UpdateTimePayload{CurrentTime: currentTime},
	}, nil)
}

// Members returns the number of connections in the room.
func (s *service) Members(sessionCode string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.rooms[sessionCode]
	if !ok {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// SessionCodes returns the sorted codes of the rooms conn is in.
func (s *service) SessionCodes(conn Conn) []string {
	s.mu.RLock()
	codes := maps.Keys(s.memberships[conn])
	s.mu.RUnlock()

	slices.Sort(codes)
	return codes
}

func (s *service) relay(ctx context.Context, sessionCode string, msg *Message, except Conn) {
	s.mu.RLock()
	r, ok := s.rooms[sessionCode]
	if !ok {
		s.mu.RUnlock()
		s.logger.DebugContext(ctx, "no such room", "session_code", sessionCode, "type", msg.Type)
		return
	}

	r.mu.Lock()
	failed := fanOut(r, msg, except)
	r.mu.Unlock()
	s.mu.RUnlock()

	s.metrics.EventRelayed(msg.Type)
	s.dropFailed(ctx, failed)
}

func (s *service) removeLocked(conn Conn, sessionCode string) {
	if r, ok := s.rooms[sessionCode]; ok {
		delete(r.members, conn)
		if len(r.members) == 0 {
			delete(s.rooms, sessionCode)
		}
	}

	if codes, ok := s.memberships[conn]; ok {
		delete(codes, sessionCode)
		if len(codes) == 0 {
			delete(s.memberships, conn)
		}
	}
}

// dropFailed runs after all locks are released.
func (s *service) dropFailed(ctx context.Context, failed []Conn) {
	for _, conn := range failed {
		s.logger.InfoContext(ctx, "dropping member after failed send")
		s.Disconnect(ctx, conn)
	}
}

func fanOut(r *room, msg *Message, except Conn) []Conn {
	var failed []Conn
	for member := range r.members {
		if except != nil && member == except {
			continue
		}

		if err := member.Send(msg); err != nil {
			failed = append(failed, member)
		}
	}

	return failed
}
