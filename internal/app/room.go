package app

import (
	"sync"
	"time"

	"github.com/dkeye/danmaku/internal/core"
	"github.com/dkeye/danmaku/internal/domain"
	"github.com/rs/zerolog/log"
)

// Member is one connection participating in a room.
type Member struct {
	User    domain.UserID
	Name    string
	Session *core.Session
}

// ViewerDTO is a read-only view for APIs (no transport fields).
type ViewerDTO struct {
	ID       domain.UserID `json:"id"`
	NickName string        `json:"nickName"`
}

// Room is a threadsafe live room.
// It never closes adapter-owned resources.
type Room struct {
	id       domain.RoomID
	owner    string
	invite   domain.InviteCode
	settings domain.RoomSettings
	created  time.Time
	history  int

	mu        sync.RWMutex
	enterable bool
	viewers   []Member
	streamer  *Member
	danmaku   []domain.Danmaku
	capture   *domain.Capture
	closed    bool
}

func newRoom(id domain.RoomID, owner string, invite domain.InviteCode, s domain.RoomSettings, history int, now time.Time) *Room {
	return &Room{
		id:       id,
		owner:    owner,
		invite:   invite,
		settings: s,
		created:  now,
		history:  history,
	}
}

func (r *Room) ID() domain.RoomID { return r.id }

func (r *Room) InviteCode() domain.InviteCode { return r.invite }

func (r *Room) Settings() domain.RoomSettings { return r.settings }

func (r *Room) CheckPassword(pw string) bool {
	return !r.settings.PasswordNeeded() || r.settings.Password == pw
}

// Info returns the secret-free view; withInvite exposes the invite code.
func (r *Room) Info(withInvite bool) domain.RoomInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info := domain.RoomInfo{
		RoomID:         r.id,
		Title:          r.settings.Title,
		CreatorName:    r.owner,
		PasswordNeeded: r.settings.PasswordNeeded(),
		IsPublic:       r.settings.IsPublic,
		Max:            r.settings.Capacity,
		CreateTime:     r.created,
		ClientCount:    len(r.viewers),
		Enterable:      r.enterable,
		StreamerOnline: r.streamer != nil,
		Mode:           r.settings.Mode,
	}
	if withInvite {
		info.InviteCode = r.invite
	}
	return info
}

func (r *Room) Enterable() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enterable
}

func (r *Room) SetEnterable(flag bool) {
	r.mu.Lock()
	r.enterable = flag
	r.mu.Unlock()
	log.Info().Str("module", "app.room").Uint("room", uint(r.id)).Bool("enterable", flag).Msg("enterable switched")
}

func (r *Room) Closed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

func (r *Room) Full() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.viewers) >= r.settings.Capacity
}

func (r *Room) ViewerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.viewers)
}

func (r *Room) Viewers() []ViewerDTO {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ViewerDTO, 0, len(r.viewers))
	for _, m := range r.viewers {
		out = append(out, ViewerDTO{ID: m.User, NickName: m.Name})
	}
	return out
}

// AddViewer appends m in join order. Re-adding the same connection is a no-op.
func (r *Room) AddViewer(m Member) (added bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false, core.RoomNotExist
	}
	for _, v := range r.viewers {
		if v.Session == m.Session {
			return false, nil
		}
	}
	if !r.enterable {
		return false, core.RoomUnenterable
	}
	if len(r.viewers) >= r.settings.Capacity {
		return false, core.RoomFull
	}
	r.viewers = append(r.viewers, m)
	log.Info().Str("module", "app.room").Uint("room", uint(r.id)).Uint("uid", uint(m.User)).Int("viewers", len(r.viewers)).Msg("viewer added")
	return true, nil
}

// RemoveViewer drops the viewer on sess and reports whether the room just became destroyable.
func (r *Room) RemoveViewer(sess *core.Session) (m Member, removed, vanished bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, v := range r.viewers {
		if v.Session == sess {
			m, removed = v, true
			r.viewers = append(r.viewers[:i:i], r.viewers[i+1:]...)
			break
		}
	}
	if removed {
		log.Info().Str("module", "app.room").Uint("room", uint(r.id)).Uint("uid", uint(m.User)).Int("viewers", len(r.viewers)).Msg("viewer removed")
	}
	return m, removed, r.closeIfAbandonedLocked()
}

func (r *Room) Viewer(uid domain.UserID) (Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.viewers {
		if v.User == uid {
			return v, true
		}
	}
	return Member{}, false
}

func (r *Room) Streamer() (Member, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.streamer == nil {
		return Member{}, false
	}
	return *r.streamer, true
}

// AttachStreamer binds m as the room's broadcast source, replacing any stale binding.
func (r *Room) AttachStreamer(m Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return core.RoomNotExist
	}
	r.streamer = &m
	log.Info().Str("module", "app.room").Uint("room", uint(r.id)).Str("conn", string(m.Session.ID())).Msg("streamer attached")
	return nil
}

// DetachStreamer clears the streamer if it is bound to sess and reports whether
// the room just became destroyable.
func (r *Room) DetachStreamer(sess *core.Session) (detached, vanished bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.streamer != nil && r.streamer.Session == sess {
		r.streamer = nil
		detached = true
		log.Info().Str("module", "app.room").Uint("room", uint(r.id)).Str("conn", string(sess.ID())).Msg("streamer detached")
	}
	return detached, r.closeIfAbandonedLocked()
}

// Shutdown empties the room and marks it closed. It returns the evicted viewers
// and whether this call closed it.
func (r *Room) Shutdown() ([]Member, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, false
	}
	evicted := r.viewers
	r.viewers = nil
	r.streamer = nil
	r.closed = true
	log.Info().Str("module", "app.room").Uint("room", uint(r.id)).Int("evicted", len(evicted)).Msg("room shut down")
	return evicted, true
}

// closeIfAbandonedLocked flips closed exactly once when no streamer and no viewers remain.
func (r *Room) closeIfAbandonedLocked() bool {
	if r.closed || r.streamer != nil || len(r.viewers) > 0 {
		return false
	}
	r.closed = true
	log.Info().Str("module", "app.room").Uint("room", uint(r.id)).Msg("room abandoned")
	return true
}

// Recipients lists viewers in join order followed by the streamer.
func (r *Room) Recipients() []*core.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*core.Session, 0, len(r.viewers)+1)
	for _, v := range r.viewers {
		out = append(out, v.Session)
	}
	if r.streamer != nil {
		out = append(out, r.streamer.Session)
	}
	return out
}

// AppendDanmaku stores d and keeps only the most recent history entries.
func (r *Room) AppendDanmaku(d domain.Danmaku) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.danmaku = append(r.danmaku, d)
	if over := len(r.danmaku) - r.history; over > 0 {
		r.danmaku = append(r.danmaku[:0:0], r.danmaku[over:]...)
	}
}

func (r *Room) RecentDanmaku() []domain.Danmaku {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Danmaku, len(r.danmaku))
	copy(out, r.danmaku)
	return out
}

func (r *Room) SetCapture(c domain.Capture) {
	r.mu.Lock()
	r.capture = &c
	r.mu.Unlock()
}

func (r *Room) Capture() (domain.Capture, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.capture == nil {
		return domain.Capture{}, false
	}
	return *r.capture, true
}
