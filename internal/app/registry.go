package app

import (
	"sort"
	"sync"

	"github.com/dkeye/danmaku/internal/core"
	"github.com/dkeye/danmaku/internal/domain"
	"github.com/rs/zerolog/log"
)

// OnlineUser is a snapshot of one presence entry.
// Room is zero when the user occupies no room.
type OnlineUser struct {
	Profile domain.User
	Session *core.Session
	Status  domain.UserStatus
	Room    domain.RoomID
}

// Registry is the presence table: authenticated users by id and connected admin consoles.
type Registry struct {
	mu     sync.RWMutex
	users  map[domain.UserID]*OnlineUser
	admins map[core.ConnID]*core.Session
}

func NewRegistry() *Registry {
	return &Registry{
		users:  make(map[domain.UserID]*OnlineUser),
		admins: make(map[core.ConnID]*core.Session),
	}
}

// Add binds u to sess. When u was bound to another session, that binding is
// replaced and returned so the caller can detach it.
// Rebinding the same session only refreshes the profile.
func (r *Registry) Add(u domain.User, sess *core.Session, status domain.UserStatus) (OnlineUser, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.users[u.ID]
	if ok && prev.Session == sess {
		prev.Profile = u
		return OnlineUser{}, false
	}
	r.users[u.ID] = &OnlineUser{Profile: u, Session: sess, Status: status}
	log.Info().Str("module", "app.registry").Uint("uid", uint(u.ID)).Str("conn", string(sess.ID())).Msg("user bound")
	if ok {
		log.Info().Str("module", "app.registry").Uint("uid", uint(u.ID)).Str("conn", string(prev.Session.ID())).Msg("binding superseded")
		return *prev, true
	}
	return OnlineUser{}, false
}

// Remove drops the user if it is still bound to sess.
func (r *Registry) Remove(uid domain.UserID, sess *core.Session) (OnlineUser, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.users[uid]
	if !ok || e.Session != sess {
		return OnlineUser{}, false
	}
	delete(r.users, uid)
	log.Info().Str("module", "app.registry").Uint("uid", uint(uid)).Str("conn", string(sess.ID())).Msg("user removed")
	return *e, true
}

func (r *Registry) CountOnline() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

func (r *Registry) FindByID(uid domain.UserID) (OnlineUser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.users[uid]; ok {
		return *e, true
	}
	return OnlineUser{}, false
}

// Lookup resolves the user currently represented by sess.
func (r *Registry) Lookup(sess *core.Session) (OnlineUser, bool) {
	uid, ok := sess.User()
	if !ok {
		return OnlineUser{}, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.users[uid]
	if !ok || e.Session != sess {
		return OnlineUser{}, false
	}
	return *e, true
}

// SetState updates status and room if uid is still bound to sess.
func (r *Registry) SetState(uid domain.UserID, sess *core.Session, status domain.UserStatus, room domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.users[uid]
	if !ok || e.Session != sess {
		return false
	}
	e.Status, e.Room = status, room
	log.Debug().Str("module", "app.registry").Uint("uid", uint(uid)).Str("status", status.String()).Uint("room", uint(room)).Msg("state changed")
	return true
}

// Release returns the user to StandBy if it still occupies room through sess.
func (r *Registry) Release(uid domain.UserID, sess *core.Session, room domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.users[uid]
	if !ok || e.Session != sess || e.Room != room {
		return false
	}
	if e.Status == domain.StatusClient || e.Status == domain.StatusStreaming {
		e.Status = domain.StatusStandBy
	}
	e.Room = 0
	return true
}

// UpdateProfile applies fn to the cached account of an online user.
func (r *Registry) UpdateProfile(uid domain.UserID, fn func(*domain.User)) (OnlineUser, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.users[uid]
	if !ok {
		return OnlineUser{}, false
	}
	fn(&e.Profile)
	return *e, true
}

func (r *Registry) AddAdmin(sess *core.Session) {
	r.mu.Lock()
	r.admins[sess.ID()] = sess
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("conn", string(sess.ID())).Msg("admin online")
}

func (r *Registry) RemoveAdmin(sess *core.Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.admins[sess.ID()]; !ok {
		return false
	}
	delete(r.admins, sess.ID())
	log.Info().Str("module", "app.registry").Str("conn", string(sess.ID())).Msg("admin offline")
	return true
}

func (r *Registry) Admins() []*core.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*core.Session, 0, len(r.admins))
	for _, s := range r.admins {
		out = append(out, s)
	}
	return out
}

// Monitors lists admin consoles watching the room with the given invite code.
func (r *Registry) Monitors(code domain.InviteCode) []*core.Session {
	if code == "" {
		return nil
	}
	var out []*core.Session
	for _, s := range r.Admins() {
		if s.Monitor() == code {
			out = append(out, s)
		}
	}
	return out
}

// Sessions lists every user connection followed by every admin connection.
func (r *Registry) Sessions() []*core.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*core.Session, 0, len(r.users)+len(r.admins))
	for _, e := range r.users {
		out = append(out, e.Session)
	}
	for _, s := range r.admins {
		out = append(out, s)
	}
	return out
}

// Snapshot returns every online user ordered by id.
func (r *Registry) Snapshot() []OnlineUser {
	r.mu.RLock()
	out := make([]OnlineUser, 0, len(r.users))
	for _, e := range r.users {
		out = append(out, *e)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Profile.ID < out[j].Profile.ID })
	return out
}
