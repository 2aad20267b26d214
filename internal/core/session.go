package core

import (
	"sync"
	"time"

	"github.com/dkeye/danmaku/internal/domain"
)

type ConnID string

type Role int

const (
	RoleClient Role = iota
	RoleAdmin
)

func (r Role) String() string {
	if r == RoleAdmin {
		return "admin"
	}
	return "client"
}

// Session is the per-connection record. It holds non-owning references:
// the bound user belongs to the presence registry and the transport to the adapter.
type Session struct {
	id   ConnID
	conn SignalConnection

	mu         sync.RWMutex
	role       Role
	user       domain.UserID
	bound      bool
	authorized bool
	monitor    domain.InviteCode
	pending    domain.RoomID
	hasPending bool

	finish sync.Once
}

func NewSession(id ConnID, conn SignalConnection) *Session {
	return &Session{id: id, conn: conn}
}

func (s *Session) ID() ConnID { return s.id }

func (s *Session) Conn() SignalConnection { return s.conn }

func (s *Session) Role() Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

func (s *Session) SetRole(r Role) {
	s.mu.Lock()
	s.role = r
	s.mu.Unlock()
}

func (s *Session) User() (domain.UserID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user, s.bound
}

func (s *Session) BindUser(uid domain.UserID) {
	s.mu.Lock()
	s.user, s.bound = uid, true
	s.mu.Unlock()
}

// UnbindUser clears the user reference; used when another connection supersedes this one.
func (s *Session) UnbindUser() {
	s.mu.Lock()
	s.user, s.bound = 0, false
	s.hasPending = false
	s.mu.Unlock()
}

func (s *Session) Authorized() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.authorized
}

func (s *Session) Authorize() {
	s.mu.Lock()
	s.authorized = true
	s.mu.Unlock()
}

func (s *Session) Monitor() domain.InviteCode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.monitor
}

func (s *Session) SetMonitor(code domain.InviteCode) {
	s.mu.Lock()
	s.monitor = code
	s.mu.Unlock()
}

// PendingRoom is the room whose password this connection has verified.
func (s *Session) PendingRoom() (domain.RoomID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending, s.hasPending
}

func (s *Session) SetPendingRoom(id domain.RoomID) {
	s.mu.Lock()
	s.pending, s.hasPending = id, true
	s.mu.Unlock()
}

func (s *Session) ClearPendingRoom() {
	s.mu.Lock()
	s.hasPending = false
	s.mu.Unlock()
}

// Emit encodes and sends one envelope without blocking.
func (s *Session) Emit(typ string, msg any) error {
	f, err := Encode(typ, msg, time.Now())
	if err != nil {
		return err
	}
	return s.conn.TrySend(f)
}

// Finish runs fn the first time it is called and reports whether this call ran it.
func (s *Session) Finish(fn func()) bool {
	ran := false
	s.finish.Do(func() {
		ran = true
		fn()
	})
	return ran
}
