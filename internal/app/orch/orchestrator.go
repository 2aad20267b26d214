package orch

import (
	"errors"
	"time"

	"github.com/dkeye/danmaku/internal/app"
	"github.com/dkeye/danmaku/internal/auth"
	"github.com/dkeye/danmaku/internal/core"
	"github.com/dkeye/danmaku/internal/domain"
	"github.com/dkeye/danmaku/internal/live"
	"github.com/dkeye/danmaku/internal/mail"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// UserStore is the persistent account table.
type UserStore interface {
	Create(u *domain.User) error
	FindByID(id domain.UserID) (*domain.User, error)
	FindByAccount(account string) (*domain.User, error)
	EmailTaken(email string, except domain.UserID) (bool, error)
	NickNameTaken(name string, except domain.UserID) (bool, error)
	Update(u *domain.User) error
	SetFlag(ids []domain.UserID, column string, value bool) ([]domain.UserID, error)
	List() ([]domain.User, error)
}

type LogStore interface {
	Page(page, size int, module string) ([]domain.LogEntry, int64, error)
}

type Auditor interface {
	Record(e domain.LogEntry)
}

type Captchas interface {
	Request(key string) (string, error)
	Verify(key, code string) error
}

// Pushed event payloads. OnEnter carries the bare user id and RoomClose the bare room id.
type (
	// CountEvent is the OnlineUserChange payload.
	CountEvent struct {
		Count int `json:"count"`
	}
	// MemberEvent names the user behind OnLeave, StreamerOffline and StreamerReConnect.
	MemberEvent struct {
		From     domain.UserID `json:"from"`
		NickName string        `json:"nickName,omitempty"`
	}
	// RoomEvent is the RoomVanish, RoomRemove and Admin_CallRoomDestroy payload.
	RoomEvent struct {
		RoomID domain.RoomID `json:"roomID"`
	}
)

// Orchestrator owns every use case. Handlers in the signal adapter only decode,
// call one method and encode the result.
type Orchestrator struct {
	Registry *app.Registry
	Rooms    *app.RoomManager
	Policy   app.Policy
	Limiter  *app.RateLimiter

	Users   UserStore
	Logs    LogStore
	Audit   Auditor
	Tokens  *auth.TokenManager
	Hasher  *auth.PasswordHasher
	Captcha Captchas
	Mailer  mail.Mailer
	Streams *live.Signer
	ICE     []webrtc.ICEServer

	AdminPassword string
	Now           func() time.Time
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// current resolves the user bound to sess.
func (o *Orchestrator) current(sess *core.Session) (app.OnlineUser, error) {
	u, ok := o.Registry.Lookup(sess)
	if !ok {
		return app.OnlineUser{}, core.InvalidUser
	}
	return u, nil
}

// roomOf resolves the room u currently occupies as viewer or streamer.
func (o *Orchestrator) roomOf(u app.OnlineUser) (*app.Room, error) {
	if u.Room == 0 {
		return nil, core.RoomNotExist
	}
	room, ok := o.Rooms.Get(u.Room)
	if !ok {
		return nil, core.RoomNotExist
	}
	return room, nil
}

func member(u app.OnlineUser) app.Member {
	return app.Member{User: u.Profile.ID, Name: u.Profile.NickName, Session: u.Session}
}

// deliver encodes once and sends to every recipient without blocking.
// A failed send never aborts the fan-out.
func (o *Orchestrator) deliver(recipients []*core.Session, typ string, msg any) int {
	frame, err := core.Encode(typ, msg, o.now())
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("type", typ).Msg("encode broadcast")
		return 0
	}
	sent := 0
	for _, sess := range recipients {
		err := sess.Conn().TrySend(frame)
		if err == nil {
			sent++
			continue
		}
		log.Debug().Err(err).Str("module", "orch").Str("conn", string(sess.ID())).Str("type", typ).Msg("send skipped")
		if errors.Is(err, core.ErrBackpressure) && o.Policy != nil &&
			o.Policy.OnBackPressure(sess) == app.KickMember {
			log.Warn().Str("module", "orch").Str("conn", string(sess.ID())).Msg("slow consumer kicked")
			sess.Conn().Close()
		}
	}
	return sent
}

// RoomBroadcast reaches viewers in join order, then the streamer, then monitoring admins.
func (o *Orchestrator) RoomBroadcast(room *app.Room, typ string, msg any) int {
	recipients := room.Recipients()
	recipients = append(recipients, o.Registry.Monitors(room.InviteCode())...)
	return o.deliver(recipients, typ, msg)
}

// GlobalBroadcast reaches every bound user connection and every admin console.
func (o *Orchestrator) GlobalBroadcast(typ string, msg any) int {
	return o.deliver(o.Registry.Sessions(), typ, msg)
}

func (o *Orchestrator) OnlineCount() int { return o.Registry.CountOnline() }

func (o *Orchestrator) BroadcastOnlineCount() {
	o.GlobalBroadcast("OnlineUserChange", CountEvent{Count: o.Registry.CountOnline()})
}

func (o *Orchestrator) audit(module, action string, u domain.User, msg string, ok bool) {
	if o.Audit == nil {
		return
	}
	o.Audit.Record(domain.LogEntry{
		Time:     o.now(),
		Module:   module,
		Action:   action,
		UserID:   u.ID,
		UserName: u.NickName,
		Message:  msg,
		Success:  ok,
	})
}

var adminUser = domain.User{ID: domain.AdminID, NickName: "Admin"}
