package orch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dkeye/danmaku/internal/app"
	"github.com/dkeye/danmaku/internal/core"
	"github.com/dkeye/danmaku/internal/domain"
	"github.com/dkeye/danmaku/internal/live"
	"github.com/dkeye/danmaku/internal/storage"
)

// AdminRoom is a live room as the admin console sees it.
type AdminRoom struct {
	domain.RoomInfo
	Viewers []app.ViewerDTO `json:"viewers"`
}

type LogPage struct {
	Entries []domain.LogEntry `json:"entries"`
	Total   int64             `json:"total"`
}

// EditUser carries the fields an admin may overwrite; empty strings and a nil
// Banned leave the stored value alone.
type EditUser struct {
	ID       domain.UserID `json:"uid"`
	NickName string        `json:"nickname"`
	Email    string        `json:"email"`
	Password string        `json:"pwd"`
	Banned   *bool         `json:"banned"`
}

func (o *Orchestrator) AdminRooms() []AdminRoom {
	rooms := o.Rooms.List()
	out := make([]AdminRoom, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, AdminRoom{RoomInfo: r.Info(true), Viewers: r.Viewers()})
	}
	return out
}

// AdminUsers lists every stored account with its live status.
func (o *Orchestrator) AdminUsers() ([]domain.Profile, error) {
	users, err := o.Users.List()
	if err != nil {
		return nil, err
	}
	online := make(map[domain.UserID]domain.UserStatus)
	for _, u := range o.Registry.Snapshot() {
		online[u.Profile.ID] = u.Status
	}
	out := make([]domain.Profile, 0, len(users))
	for i := range users {
		status := domain.StatusOffline
		if users[i].Banned {
			status = domain.StatusBanned
		}
		if s, ok := online[users[i].ID]; ok {
			status = s
		}
		out = append(out, users[i].Profile(status))
	}
	return out, nil
}

// StopStream closes a live room on the admin's behalf.
func (o *Orchestrator) StopStream(id domain.RoomID) error {
	room, ok := o.Rooms.Get(id)
	if !ok {
		return core.RoomNotExist
	}
	o.closeRoom(room, "Admin_CallRoomDestroy")
	o.audit("admin", "StopStream_Admin", adminUser, fmt.Sprintf("room %d", id), true)
	return nil
}

// AdminDanmaku posts into any room as the admin. Mute and rate limits do not apply.
func (o *Orchestrator) AdminDanmaku(id domain.RoomID, content, color string, pos domain.DanmakuPosition) (domain.Danmaku, error) {
	room, ok := o.Rooms.Get(id)
	if !ok {
		return domain.Danmaku{}, core.RoomNotExist
	}
	content = domain.SanitizeDanmaku(content)
	if err := domain.ValidateDanmaku(content, pos); err != nil {
		return domain.Danmaku{}, core.ParamsFormatError
	}
	return o.post(room, adminUser, content, color, pos), nil
}

// Monitor subscribes the admin console to the room's feed and returns its history.
func (o *Orchestrator) Monitor(sess *core.Session, query string) ([]domain.Danmaku, error) {
	room, ok := o.Rooms.Lookup(query)
	if !ok {
		return nil, core.RoomNotExist
	}
	sess.SetMonitor(room.InviteCode())
	return room.RecentDanmaku(), nil
}

func (o *Orchestrator) Unmonitor(sess *core.Session) {
	sess.SetMonitor("")
}

// ToggleStream grants or revokes streaming for ids. A live room of a revoked
// streamer keeps running. The count of unknown ids comes back with PartError.
func (o *Orchestrator) ToggleStream(ids []domain.UserID, allow bool) (int, error) {
	return o.toggle(ids, "can_stream", allow, func(u *domain.User) { u.CanStream = allow })
}

// ToggleSilent grants or revokes sending danmaku for ids.
func (o *Orchestrator) ToggleSilent(ids []domain.UserID, allow bool) (int, error) {
	return o.toggle(ids, "can_send_danmaku", allow, func(u *domain.User) { u.CanSendDanmaku = allow })
}

func (o *Orchestrator) toggle(ids []domain.UserID, column string, value bool, apply func(*domain.User)) (int, error) {
	if len(ids) == 0 {
		return 0, core.ParamsFormatError
	}
	missing, err := o.Users.SetFlag(ids, column, value)
	if err != nil {
		return 0, err
	}
	for _, id := range ids {
		o.Registry.UpdateProfile(id, apply)
	}
	o.audit("admin", "Toggle", adminUser, fmt.Sprintf("%s=%t ids=%v missing=%d", column, value, ids, len(missing)), len(missing) == 0)
	if len(missing) > 0 {
		return len(missing), core.PartError
	}
	return 0, nil
}

// EditUser overwrites account fields. Banning an online user takes them out of
// their room first.
func (o *Orchestrator) EditUser(req EditUser) (domain.Profile, error) {
	user, err := o.Users.FindByID(req.ID)
	if errors.Is(err, storage.ErrUserNotFound) {
		return domain.Profile{}, core.InvalidUser
	}
	if err != nil {
		return domain.Profile{}, err
	}
	if name := strings.TrimSpace(req.NickName); name != "" && name != user.NickName {
		if err := domain.ValidateNickName(name); err != nil {
			return domain.Profile{}, core.UserNameFormatError
		}
		if err := o.checkNickName(name, user.ID); err != nil {
			return domain.Profile{}, err
		}
		user.NickName = name
	}
	if email := strings.TrimSpace(req.Email); email != "" && email != user.Email {
		if err := domain.ValidateEmail(email); err != nil {
			return domain.Profile{}, core.EmailFormatError
		}
		if err := o.checkEmail(email, user.ID); err != nil {
			return domain.Profile{}, err
		}
		user.Email = email
	}
	if req.Password != "" {
		if err := domain.ValidatePassword(req.Password); err != nil {
			return domain.Profile{}, core.PasswordFormatError
		}
		hash, err := o.Hasher.Hash(req.Password)
		if err != nil {
			return domain.Profile{}, err
		}
		user.PassWord = hash
		user.Touch(o.now())
	}
	if req.Banned != nil {
		user.Banned = *req.Banned
	}
	if err := o.Users.Update(user); err != nil {
		return domain.Profile{}, err
	}

	if u, ok := o.Registry.UpdateProfile(user.ID, func(p *domain.User) { *p = *user }); ok {
		switch {
		case user.Banned && u.Status != domain.StatusBanned:
			o.leave(u)
			o.Registry.SetState(u.Profile.ID, u.Session, domain.StatusBanned, 0)
		case !user.Banned && u.Status == domain.StatusBanned:
			o.Registry.SetState(u.Profile.ID, u.Session, domain.StatusStandBy, 0)
		}
	}
	o.audit("admin", "EditUser_Admin", adminUser, fmt.Sprintf("uid %d", user.ID), true)
	return o.profile(user), nil
}

func (o *Orchestrator) AuditLogs(page, size int, module string) (LogPage, error) {
	entries, total, err := o.Logs.Page(page, size, module)
	if err != nil {
		return LogPage{}, err
	}
	return LogPage{Entries: entries, Total: total}, nil
}

// Captures returns the latest cover of every live room that uploaded one.
func (o *Orchestrator) Captures() []domain.Capture {
	var out []domain.Capture
	for _, r := range o.Rooms.List() {
		if c, ok := r.Capture(); ok {
			out = append(out, c)
		}
	}
	return out
}

func (o *Orchestrator) AdminPullURL(id domain.RoomID, typ live.StreamType) (live.Endpoint, error) {
	if !typ.Valid() {
		return live.Endpoint{}, core.ParamsFormatError
	}
	room, ok := o.Rooms.Get(id)
	if !ok {
		return live.Endpoint{}, core.RoomNotExist
	}
	return o.Streams.Pull(room.InviteCode(), typ), nil
}
