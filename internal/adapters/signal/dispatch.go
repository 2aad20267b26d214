package signal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dkeye/danmaku/internal/core"
	"github.com/rs/zerolog/log"
)

// Tier is the authorization level a message type requires.
type Tier int

const (
	TierNon Tier = iota
	TierOnline
	TierStream
	TierAdmin
)

type handlerFunc func(ctx context.Context, sess *core.Session, data json.RawMessage) (any, error)

type route struct {
	tier   Tier
	handle handlerFunc
	// reply overrides the response type; silent suppresses the success response.
	reply  string
	silent bool
}

func (ctl *SignalWSController) table() map[string]route {
	return map[string]route{
		"GetInfo":            {tier: TierNon, handle: ctl.getInfo, reply: "GetInfoResult"},
		"Login":              {tier: TierNon, handle: ctl.login},
		"Register":           {tier: TierNon, handle: ctl.register},
		"HeartBeat":          {tier: TierNon, handle: ctl.heartBeat},
		"GetEmailCaptcha":    {tier: TierNon, handle: ctl.getEmailCaptcha},
		"VerifyEmailCaptcha": {tier: TierNon, handle: ctl.verifyEmailCaptcha},
		"OnlineUserCount":    {tier: TierNon, handle: ctl.onlineUserCount},
		"logout":             {tier: TierNon, handle: ctl.logout, silent: true},

		"CreateRoom":         {tier: TierOnline, handle: ctl.createRoom},
		"EnterRoom":          {tier: TierOnline, handle: ctl.verifyRoomPassword},
		"VerifyRoomPassword": {tier: TierOnline, handle: ctl.verifyRoomPassword},
		"JoinRoom":           {tier: TierOnline, handle: ctl.joinRoom},
		"RoomList":           {tier: TierOnline, handle: ctl.roomList},
		"ResumeRoom":         {tier: TierOnline, handle: ctl.resumeRoom},
		"ChangeNickName":     {tier: TierOnline, handle: ctl.changeNickName},
		"ChangeEmail":        {tier: TierOnline, handle: ctl.changeEmail},
		"ChangePassword":     {tier: TierOnline, handle: ctl.changePassword},

		"RoomEntered":    {tier: TierStream, handle: ctl.roomEntered},
		"Leave":          {tier: TierStream, handle: ctl.leave},
		"RoomInfo":       {tier: TierStream, handle: ctl.roomInfo},
		"GetPushUrl":     {tier: TierStream, handle: ctl.getPushURL},
		"GetPullUrl":     {tier: TierStream, handle: ctl.getPullURL},
		"SwitchStream":   {tier: TierStream, handle: ctl.switchStream},
		"SendDanmaku":    {tier: TierStream, handle: ctl.sendDanmaku},
		"GetRoomDanmaku": {tier: TierStream, handle: ctl.getRoomDanmaku},
		"UploadCapture":  {tier: TierStream, handle: ctl.uploadCapture},
		"Offer":          {tier: TierStream, handle: ctl.relay("Offer", "offer"), silent: true},
		"Answer":         {tier: TierStream, handle: ctl.relay("Answer", "answer"), silent: true},
		"Candidate":      {tier: TierStream, handle: ctl.relay("Candidate", "candidate"), silent: true},

		"GetRoom_Admin":       {tier: TierAdmin, handle: ctl.adminRooms},
		"GetUsers_Admin":      {tier: TierAdmin, handle: ctl.adminUsers},
		"StopStream_Admin":    {tier: TierAdmin, handle: ctl.adminStopStream},
		"SendDanmaku_Admin":   {tier: TierAdmin, handle: ctl.adminSendDanmaku},
		"GetDanmaku_Admin":    {tier: TierAdmin, handle: ctl.adminMonitor},
		"RemoveMonitor_Admin": {tier: TierAdmin, handle: ctl.adminUnmonitor},
		"ToggleStream_Admin":  {tier: TierAdmin, handle: ctl.adminToggleStream},
		"ToggleSilent_Admin":  {tier: TierAdmin, handle: ctl.adminToggleSilent},
		"EditUser_Admin":      {tier: TierAdmin, handle: ctl.adminEditUser},
		"GetLogs_Admin":       {tier: TierAdmin, handle: ctl.adminLogs},
		"GetCaptures":         {tier: TierAdmin, handle: ctl.adminCaptures},
		"GetPullUrl_Admin":    {tier: TierAdmin, handle: ctl.adminPullURL},
	}
}

func (ctl *SignalWSController) dispatch(ctx context.Context, sess *core.Session, raw []byte) {
	in, err := core.Decode(raw)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("conn", string(sess.ID())).Msg("bad envelope")
		ctl.respond(sess, "Error", nil, core.ParamsFormatError)
		return
	}
	r, ok := ctl.routes[in.Type]
	if !ok {
		log.Warn().Str("module", "signal").Str("type", in.Type).Msg("unknown signal")
		ctl.respond(sess, "Error", in.Type, core.ParamsFormatError)
		return
	}
	reply := in.Type
	if r.reply != "" {
		reply = r.reply
	}
	if err := ctl.authorize(sess, r.tier); err != nil {
		ctl.respond(sess, reply, nil, err)
		return
	}

	data, err := ctl.invoke(ctx, r, sess, in)
	if err == nil && r.silent {
		return
	}
	ctl.respond(sess, reply, data, err)
}

// invoke turns a panicking handler into UnknownError so one bad message never
// takes the connection down.
func (ctl *SignalWSController) invoke(ctx context.Context, r route, sess *core.Session, in core.Inbound) (data any, err error) {
	defer func() {
		if p := recover(); p != nil {
			log.Error().Str("module", "signal").Str("type", in.Type).Str("conn", string(sess.ID())).
				Str("panic", fmt.Sprint(p)).Msg("handler panic")
			data, err = nil, core.UnknownError
		}
	}()
	return r.handle(ctx, sess, in.Data)
}

func (ctl *SignalWSController) authorize(sess *core.Session, tier Tier) error {
	switch tier {
	case TierOnline, TierStream:
		if _, ok := ctl.Orch.Registry.Lookup(sess); !ok {
			return core.InvalidUser
		}
	case TierAdmin:
		if sess.Role() != core.RoleAdmin {
			return core.InvalidUser
		}
		if !sess.Authorized() {
			return core.NoAuth
		}
	}
	return nil
}

func (ctl *SignalWSController) respond(sess *core.Session, typ string, data any, err error) {
	res := core.Success(data)
	if err != nil {
		code, known := core.CodeOf(err)
		if !known {
			log.Error().Err(err).Str("module", "signal").Str("type", typ).Str("conn", string(sess.ID())).Msg("handler failed")
		}
		res = core.Failure(code, data)
	}
	if err := sess.Emit(typ, res); err != nil {
		log.Debug().Err(err).Str("module", "signal").Str("type", typ).Str("conn", string(sess.ID())).Msg("response dropped")
	}
}

// bind decodes a request body; malformed input is a ParamsFormatError.
func bind[T any](data json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, core.ParamsFormatError
	}
	return v, nil
}
