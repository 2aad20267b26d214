package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/danmaku/internal/app/orch"
	"github.com/dkeye/danmaku/internal/core"
	"github.com/rs/zerolog/log"
)

type getInfoRequest struct {
	Type  string `json:"type"`
	Token string `json:"jwt"`
}

// getInfo is the handshake. Whatever the outcome, everyone learns the new online count.
func (ctl *SignalWSController) getInfo(_ context.Context, sess *core.Session, data json.RawMessage) (any, error) {
	defer ctl.Orch.BroadcastOnlineCount()
	req, err := bind[getInfoRequest](data)
	if err != nil {
		return nil, err
	}
	switch req.Type {
	case "admin":
		return map[string]any{"authorized": ctl.Orch.BindAdmin(sess, req.Token)}, nil
	case "client", "":
		p, err := ctl.Orch.BindClient(sess, req.Token)
		if err != nil {
			return nil, err
		}
		return map[string]any{"user": p}, nil
	default:
		return nil, core.ParamsFormatError
	}
}

func (ctl *SignalWSController) login(_ context.Context, sess *core.Session, data json.RawMessage) (any, error) {
	req, err := bind[struct {
		Account  string `json:"account"`
		Password string `json:"password"`
	}](data)
	if err != nil {
		return nil, err
	}
	return ctl.Orch.Login(sess, req.Account, req.Password)
}

func (ctl *SignalWSController) register(_ context.Context, _ *core.Session, data json.RawMessage) (any, error) {
	req, err := bind[struct {
		Email    string `json:"email"`
		NickName string `json:"nickName"`
		Password string `json:"password"`
	}](data)
	if err != nil {
		return nil, err
	}
	return ctl.Orch.Register(req.Email, req.NickName, req.Password)
}

func (ctl *SignalWSController) heartBeat(_ context.Context, _ *core.Session, data json.RawMessage) (any, error) {
	return data, nil
}

func (ctl *SignalWSController) getEmailCaptcha(ctx context.Context, _ *core.Session, data json.RawMessage) (any, error) {
	req, err := bind[struct {
		Email string `json:"email"`
	}](data)
	if err != nil {
		return nil, err
	}
	return nil, ctl.Orch.RequestCaptcha(ctx, req.Email)
}

func (ctl *SignalWSController) verifyEmailCaptcha(_ context.Context, _ *core.Session, data json.RawMessage) (any, error) {
	req, err := bind[struct {
		Email   string `json:"email"`
		Captcha string `json:"captcha"`
	}](data)
	if err != nil {
		return nil, err
	}
	return nil, ctl.Orch.VerifyCaptcha(req.Email, req.Captcha)
}

func (ctl *SignalWSController) onlineUserCount(context.Context, *core.Session, json.RawMessage) (any, error) {
	return orch.CountEvent{Count: ctl.Orch.OnlineCount()}, nil
}

// logout closes the connection; the read pump then reconciles it like a drop.
func (ctl *SignalWSController) logout(_ context.Context, sess *core.Session, _ json.RawMessage) (any, error) {
	log.Info().Str("module", "signal").Str("conn", string(sess.ID())).Msg("logout")
	sess.Conn().Close()
	return nil, nil
}

func (ctl *SignalWSController) changeNickName(_ context.Context, sess *core.Session, data json.RawMessage) (any, error) {
	req, err := bind[struct {
		NickName string `json:"nickName"`
	}](data)
	if err != nil {
		return nil, err
	}
	return ctl.Orch.ChangeNickName(sess, req.NickName)
}

func (ctl *SignalWSController) changeEmail(_ context.Context, sess *core.Session, data json.RawMessage) (any, error) {
	req, err := bind[struct {
		Email string `json:"newEmail"`
	}](data)
	if err != nil {
		return nil, err
	}
	return ctl.Orch.ChangeEmail(sess, req.Email)
}

func (ctl *SignalWSController) changePassword(_ context.Context, sess *core.Session, data json.RawMessage) (any, error) {
	req, err := bind[struct {
		Old string `json:"oldPassword"`
		New string `json:"newPassword"`
	}](data)
	if err != nil {
		return nil, err
	}
	return ctl.Orch.ChangePassword(sess, req.Old, req.New)
}
