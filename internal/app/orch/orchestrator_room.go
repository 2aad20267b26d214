package orch

import (
	"fmt"

	"github.com/dkeye/danmaku/internal/app"
	"github.com/dkeye/danmaku/internal/core"
	"github.com/dkeye/danmaku/internal/domain"
	"github.com/dkeye/danmaku/internal/live"
	"github.com/oklog/ulid/v2"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// RoomDetail is returned to a participant that just took a place in a room.
type RoomDetail struct {
	RoomInfo   domain.RoomInfo    `json:"roomInfo"`
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

type JoinResult struct {
	ID             domain.RoomID `json:"id"`
	PasswordNeeded bool          `json:"passwordNeeded"`
}

func (o *Orchestrator) detail(room *app.Room, withInvite bool) RoomDetail {
	return RoomDetail{RoomInfo: room.Info(withInvite), ICEServers: o.ICE}
}

// CreateRoom opens a room owned by the caller. The room starts closed to joins
// until the streamer switches it on.
func (o *Orchestrator) CreateRoom(sess *core.Session, s domain.RoomSettings) (RoomDetail, error) {
	u, err := o.current(sess)
	if err != nil {
		return RoomDetail{}, err
	}
	switch {
	case u.Status == domain.StatusBanned:
		return RoomDetail{}, core.InvalidUser
	case !u.Profile.CanStream:
		return RoomDetail{}, core.UserCanNotStream
	case u.Status == domain.StatusStreaming:
		return RoomDetail{}, core.DuplicateRoom
	}
	if err := s.Normalize(); err != nil {
		return RoomDetail{}, core.ParamsFormatError
	}
	if u.Status == domain.StatusClient {
		o.leave(u)
	}

	room, err := o.Rooms.Create(u.Profile, s)
	if err != nil {
		o.audit("room", "CreateRoom", u.Profile, err.Error(), false)
		return RoomDetail{}, err
	}
	if err := room.AttachStreamer(member(u)); err != nil {
		o.Rooms.Remove(room)
		return RoomDetail{}, err
	}
	if !o.Registry.SetState(u.Profile.ID, sess, domain.StatusStreaming, room.ID()) {
		room.Shutdown()
		o.Rooms.Remove(room)
		return RoomDetail{}, core.InvalidUser
	}
	o.audit("room", "CreateRoom", u.Profile, fmt.Sprintf("title=%q max=%d public=%t", s.Title, s.Capacity, s.IsPublic), true)
	return o.detail(room, true), nil
}

// JoinRoom resolves a room by numeric id or invite code without touching state.
func (o *Orchestrator) JoinRoom(query string) (JoinResult, error) {
	room, ok := o.Rooms.Lookup(query)
	if !ok || !room.Enterable() {
		return JoinResult{}, core.RoomNotExistOrUnenterable
	}
	return JoinResult{ID: room.ID(), PasswordNeeded: room.Settings().PasswordNeeded()}, nil
}

// CheckEntry verifies the room password and remembers the room on sess.
// A room closed to joins answers RoomUnenterable before the password is looked at.
func (o *Orchestrator) CheckEntry(sess *core.Session, id domain.RoomID, password string) error {
	if _, err := o.current(sess); err != nil {
		return err
	}
	room, ok := o.Rooms.Get(id)
	if !ok {
		return core.RoomNotExist
	}
	if !room.Enterable() {
		return core.RoomUnenterable
	}
	if !room.CheckPassword(password) {
		return core.WrongRoomPassword
	}
	if room.Full() {
		return core.RoomFull
	}
	sess.SetPendingRoom(id)
	return nil
}

// Enter places the caller in the room as a viewer. Entering the same room twice is a no-op.
func (o *Orchestrator) Enter(sess *core.Session, id domain.RoomID) (RoomDetail, error) {
	u, err := o.current(sess)
	if err != nil {
		return RoomDetail{}, err
	}
	switch u.Status {
	case domain.StatusBanned:
		return RoomDetail{}, core.InvalidUser
	case domain.StatusStreaming:
		return RoomDetail{}, core.InvalidStatus
	}
	room, ok := o.Rooms.Get(id)
	if !ok {
		return RoomDetail{}, core.RoomNotExist
	}
	again := u.Status == domain.StatusClient && u.Room == id
	if room.Settings().PasswordNeeded() && !again {
		if pending, ok := sess.PendingRoom(); !ok || pending != id {
			return RoomDetail{}, core.WrongRoomPassword
		}
	}
	if u.Status == domain.StatusClient && !again {
		o.leave(u)
	}

	m := member(u)
	added, err := room.AddViewer(m)
	if err != nil {
		return RoomDetail{}, err
	}
	if !o.Registry.SetState(u.Profile.ID, sess, domain.StatusClient, id) {
		if added {
			if _, _, vanished := room.RemoveViewer(sess); vanished {
				o.vanish(room)
			}
		}
		return RoomDetail{}, core.InvalidUser
	}
	// The room may have been shut down between AddViewer and SetState, after its
	// RoomVanish went out.
	if room.Closed() {
		o.Registry.Release(u.Profile.ID, sess, id)
		return RoomDetail{}, core.RoomNotExist
	}
	sess.ClearPendingRoom()
	if added {
		o.RoomBroadcast(room, "OnEnter", m.User)
	}
	return o.detail(room, false), nil
}

// Leave takes the caller out of its room. A streamer leaving closes the room.
func (o *Orchestrator) Leave(sess *core.Session) error {
	u, err := o.current(sess)
	if err != nil {
		return err
	}
	o.leave(u)
	return nil
}

func (o *Orchestrator) leave(u app.OnlineUser) {
	room, err := o.roomOf(u)
	if err == nil {
		switch u.Status {
		case domain.StatusClient:
			m, removed, vanished := room.RemoveViewer(u.Session)
			if removed {
				o.RoomBroadcast(room, "OnLeave", MemberEvent{From: m.User, NickName: m.Name})
			}
			if vanished {
				o.vanish(room)
			}
		case domain.StatusStreaming:
			o.closeRoom(room, "")
			o.audit("room", "Leave", u.Profile, "room closed by streamer", true)
		}
	}
	o.Registry.Release(u.Profile.ID, u.Session, u.Room)
}

// Resume reattaches the owner to a room that outlived its previous connection.
func (o *Orchestrator) Resume(sess *core.Session) (RoomDetail, error) {
	u, err := o.current(sess)
	if err != nil {
		return RoomDetail{}, err
	}
	if u.Status == domain.StatusBanned {
		return RoomDetail{}, core.InvalidUser
	}
	room, ok := o.Rooms.Get(domain.RoomOf(u.Profile.ID))
	if !ok {
		return RoomDetail{}, core.RoomNotExist
	}
	if u.Status == domain.StatusStreaming && u.Room == room.ID() {
		return o.detail(room, true), nil
	}
	if u.Status == domain.StatusClient {
		o.leave(u)
	}
	if err := room.AttachStreamer(member(u)); err != nil {
		return RoomDetail{}, err
	}
	if !o.Registry.SetState(u.Profile.ID, sess, domain.StatusStreaming, room.ID()) {
		if _, vanished := room.DetachStreamer(sess); vanished {
			o.vanish(room)
		}
		return RoomDetail{}, core.InvalidUser
	}
	o.RoomBroadcast(room, "StreamerReConnect", MemberEvent{From: u.Profile.ID, NickName: u.Profile.NickName})
	o.audit("room", "ResumeRoom", u.Profile, "streamer reattached", true)
	return o.detail(room, true), nil
}

// streaming resolves the room the caller currently streams to.
func (o *Orchestrator) streaming(sess *core.Session) (app.OnlineUser, *app.Room, error) {
	u, err := o.current(sess)
	if err != nil {
		return u, nil, err
	}
	if u.Status != domain.StatusStreaming {
		return u, nil, core.InvalidStatus
	}
	room, err := o.roomOf(u)
	return u, room, err
}

// participating resolves the room the caller views or streams.
func (o *Orchestrator) participating(sess *core.Session) (app.OnlineUser, *app.Room, error) {
	u, err := o.current(sess)
	if err != nil {
		return u, nil, err
	}
	if u.Status != domain.StatusStreaming && u.Status != domain.StatusClient {
		return u, nil, core.RoomNotExist
	}
	room, err := o.roomOf(u)
	return u, room, err
}

// SwitchEnterable opens or closes the caller's room to new viewers.
func (o *Orchestrator) SwitchEnterable(sess *core.Session, flag bool) error {
	_, room, err := o.streaming(sess)
	if err != nil {
		return err
	}
	room.SetEnterable(flag)
	if flag {
		o.GlobalBroadcast("RoomAdd", room.Info(false))
	} else {
		o.RoomBroadcast(room, "RoomClose", room.ID())
	}
	return nil
}

// RoomInfo describes the caller's current room, or the room it owns while offline from it.
func (o *Orchestrator) RoomInfo(sess *core.Session) (domain.RoomInfo, error) {
	u, err := o.current(sess)
	if err != nil {
		return domain.RoomInfo{}, err
	}
	if room, err := o.roomOf(u); err == nil {
		return room.Info(room.ID().Owner() == u.Profile.ID), nil
	}
	if room, ok := o.Rooms.Get(domain.RoomOf(u.Profile.ID)); ok {
		return room.Info(true), nil
	}
	return domain.RoomInfo{}, core.RoomNotExist
}

func (o *Orchestrator) RoomList() []domain.RoomInfo {
	return o.Rooms.PublicRooms()
}

// PostDanmaku appends a message to the caller's room and fans it out.
func (o *Orchestrator) PostDanmaku(sess *core.Session, content, color string, pos domain.DanmakuPosition) (domain.Danmaku, error) {
	u, room, err := o.participating(sess)
	if err != nil {
		return domain.Danmaku{}, err
	}
	if !u.Profile.CanSendDanmaku {
		return domain.Danmaku{}, core.UserCanNotSendDanmaku
	}
	content = domain.SanitizeDanmaku(content)
	if err := domain.ValidateDanmaku(content, pos); err != nil {
		return domain.Danmaku{}, core.ParamsFormatError
	}
	if !o.Limiter.Allow(u.Profile.ID) {
		return domain.Danmaku{}, core.TooFrequent
	}
	return o.post(room, u.Profile, content, color, pos), nil
}

func (o *Orchestrator) post(room *app.Room, sender domain.User, content, color string, pos domain.DanmakuPosition) domain.Danmaku {
	d := domain.Danmaku{
		ID:         ulid.Make().String(),
		Content:    content,
		Color:      color,
		Position:   pos,
		SenderID:   sender.ID,
		SenderName: sender.NickName,
		Time:       o.now().UnixMilli(),
	}
	room.AppendDanmaku(d)
	o.RoomBroadcast(room, "OnDanmaku", d)
	log.Debug().Str("module", "orch").Uint("room", uint(room.ID())).Uint("uid", uint(sender.ID)).Msg("danmaku posted")
	return d
}

func (o *Orchestrator) RecentDanmaku(sess *core.Session) ([]domain.Danmaku, error) {
	_, room, err := o.participating(sess)
	if err != nil {
		return nil, err
	}
	return room.RecentDanmaku(), nil
}

// PushURL signs the ingest endpoint for the caller's room.
func (o *Orchestrator) PushURL(sess *core.Session) (live.Endpoint, error) {
	_, room, err := o.streaming(sess)
	if err != nil {
		return live.Endpoint{}, err
	}
	return o.Streams.Push(room.InviteCode()), nil
}

// PullURL signs a playback endpoint for the caller's room.
func (o *Orchestrator) PullURL(sess *core.Session, typ live.StreamType) (live.Endpoint, error) {
	if !typ.Valid() {
		return live.Endpoint{}, core.ParamsFormatError
	}
	_, room, err := o.participating(sess)
	if err != nil {
		return live.Endpoint{}, err
	}
	return o.Streams.Pull(room.InviteCode(), typ), nil
}

// UploadCapture stores the streamer's latest cover image.
func (o *Orchestrator) UploadCapture(sess *core.Session, image string) error {
	if image == "" {
		return core.ParamsFormatError
	}
	_, room, err := o.streaming(sess)
	if err != nil {
		return err
	}
	room.SetCapture(domain.Capture{
		RoomID: room.ID(),
		Title:  room.Settings().Title,
		Image:  image,
		Time:   o.now().UnixMilli(),
	})
	return nil
}
