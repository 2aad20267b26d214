package orch

import (
	"errors"

	"github.com/dkeye/danmaku/internal/app"
	"github.com/dkeye/danmaku/internal/auth"
	"github.com/dkeye/danmaku/internal/core"
	"github.com/dkeye/danmaku/internal/domain"
	"github.com/dkeye/danmaku/internal/storage"
	"github.com/rs/zerolog/log"
)

func tokenCode(err error) error {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return core.TokenExpired
	case errors.Is(err, auth.ErrSignature):
		return core.SignInvalid
	default:
		return core.TokenInvalid
	}
}

// BindAdmin marks sess as an admin console and authorizes it when token verifies.
// An invalid token still leaves the connection open but unauthorized.
func (o *Orchestrator) BindAdmin(sess *core.Session, token string) bool {
	sess.SetRole(core.RoleAdmin)
	if token == "" {
		return false
	}
	if _, err := o.Tokens.Verify(token, auth.KindAdmin); err != nil {
		log.Info().Err(err).Str("module", "orch").Str("conn", string(sess.ID())).Msg("admin token rejected")
		return false
	}
	sess.Authorize()
	o.Registry.AddAdmin(sess)
	return true
}

// BindClient binds the user named by token to sess. An empty token is an
// anonymous handshake and returns a nil profile.
func (o *Orchestrator) BindClient(sess *core.Session, token string) (*domain.Profile, error) {
	sess.SetRole(core.RoleClient)
	if token == "" {
		return nil, nil
	}
	claims, err := o.Tokens.Verify(token, auth.KindUser)
	if err != nil {
		return nil, tokenCode(err)
	}
	user, err := o.Users.FindByID(claims.ID)
	if errors.Is(err, storage.ErrUserNotFound) {
		return nil, core.InvalidUser
	}
	if err != nil {
		return nil, err
	}
	if claims.StatusChange != user.LastChange {
		return nil, core.TokenExpired
	}

	// A connection switching accounts drops the old one first.
	if uid, ok := sess.User(); ok && uid != user.ID {
		if prev, ok := o.Registry.Remove(uid, sess); ok {
			o.detach(prev)
		}
		sess.UnbindUser()
	}

	status := domain.StatusStandBy
	if user.Banned {
		status = domain.StatusBanned
	}
	prev, superseded := o.Registry.Add(*user, sess, status)
	sess.BindUser(user.ID)
	if superseded {
		prev.Session.UnbindUser()
		o.detach(prev)
	}

	cur, ok := o.Registry.FindByID(user.ID)
	if !ok {
		return nil, core.InvalidUser
	}
	p := cur.Profile.Profile(cur.Status)
	o.audit("session", "GetInfo", *user, "bound "+string(sess.ID()), true)
	return &p, nil
}

// Disconnect reconciles presence and rooms after the transport closed.
// It runs at most once per session.
func (o *Orchestrator) Disconnect(sess *core.Session) {
	sess.Finish(func() {
		o.Registry.RemoveAdmin(sess)
		if uid, ok := sess.User(); ok {
			if u, ok := o.Registry.Remove(uid, sess); ok {
				o.detach(u)
				o.Limiter.Forget(uid)
			}
		}
		log.Info().Str("module", "orch").Str("conn", string(sess.ID())).Msg("session finished")
		o.BroadcastOnlineCount()
	})
}

// detach removes u's connection from its room the way a network drop does:
// a streamer goes offline and keeps the room, a viewer leaves it.
func (o *Orchestrator) detach(u app.OnlineUser) {
	room, err := o.roomOf(u)
	if err != nil {
		return
	}
	switch u.Status {
	case domain.StatusStreaming:
		detached, vanished := room.DetachStreamer(u.Session)
		if detached {
			o.RoomBroadcast(room, "StreamerOffline", MemberEvent{From: u.Profile.ID, NickName: u.Profile.NickName})
		}
		if vanished {
			o.vanish(room)
		}
	case domain.StatusClient:
		m, removed, vanished := room.RemoveViewer(u.Session)
		if removed {
			o.RoomBroadcast(room, "OnLeave", MemberEvent{From: m.User, NickName: m.Name})
		}
		if vanished {
			o.vanish(room)
		}
	}
}

// vanish retires a room that has just become empty.
func (o *Orchestrator) vanish(room *app.Room) {
	o.RoomBroadcast(room, "RoomVanish", RoomEvent{RoomID: room.ID()})
	for _, admin := range o.Registry.Monitors(room.InviteCode()) {
		admin.SetMonitor("")
	}
	if o.Rooms.Remove(room) {
		o.GlobalBroadcast("RoomRemove", RoomEvent{RoomID: room.ID()})
		log.Info().Str("module", "orch").Uint("room", uint(room.ID())).Msg("room destroyed")
	}
}

// closeRoom ends a live room on purpose: viewers go back to StandBy and the room vanishes.
func (o *Orchestrator) closeRoom(room *app.Room, notice string) {
	if notice != "" {
		o.RoomBroadcast(room, notice, RoomEvent{RoomID: room.ID()})
	}
	o.RoomBroadcast(room, "RoomVanish", RoomEvent{RoomID: room.ID()})
	evicted, ok := room.Shutdown()
	if !ok {
		return
	}
	for _, m := range evicted {
		o.Registry.Release(m.User, m.Session, room.ID())
	}
	if owner, ok := o.Registry.FindByID(room.ID().Owner()); ok {
		o.Registry.Release(owner.Profile.ID, owner.Session, room.ID())
	}
	for _, admin := range o.Registry.Monitors(room.InviteCode()) {
		admin.SetMonitor("")
	}
	if o.Rooms.Remove(room) {
		o.GlobalBroadcast("RoomRemove", RoomEvent{RoomID: room.ID()})
	}
	log.Info().Str("module", "orch").Uint("room", uint(room.ID())).Int("evicted", len(evicted)).Msg("room closed")
}
