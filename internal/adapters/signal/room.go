package signal

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dkeye/danmaku/internal/core"
	"github.com/dkeye/danmaku/internal/domain"
	"github.com/dkeye/danmaku/internal/live"
)

type roomIDRequest struct {
	ID       domain.RoomID `json:"id"`
	Password string        `json:"password"`
}

type danmakuRequest struct {
	ID       domain.RoomID          `json:"id"`
	Content  string                 `json:"content"`
	Color    string                 `json:"color"`
	Position domain.DanmakuPosition `json:"position"`
}

func (ctl *SignalWSController) createRoom(_ context.Context, sess *core.Session, data json.RawMessage) (any, error) {
	req, err := bind[domain.RoomSettings](data)
	if err != nil {
		return nil, err
	}
	return ctl.Orch.CreateRoom(sess, req)
}

func (ctl *SignalWSController) joinRoom(_ context.Context, _ *core.Session, data json.RawMessage) (any, error) {
	req, err := bind[struct {
		Query any `json:"query"`
	}](data)
	if err != nil {
		return nil, err
	}
	return ctl.Orch.JoinRoom(queryString(req.Query))
}

// queryString accepts a numeric room id or an invite code.
func queryString(q any) string {
	switch v := q.(type) {
	case nil:
		return ""
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return fmt.Sprint(v)
	}
}

func (ctl *SignalWSController) verifyRoomPassword(_ context.Context, sess *core.Session, data json.RawMessage) (any, error) {
	req, err := bind[roomIDRequest](data)
	if err != nil {
		return nil, err
	}
	return nil, ctl.Orch.CheckEntry(sess, req.ID, req.Password)
}

func (ctl *SignalWSController) roomList(context.Context, *core.Session, json.RawMessage) (any, error) {
	return ctl.Orch.RoomList(), nil
}

func (ctl *SignalWSController) resumeRoom(_ context.Context, sess *core.Session, _ json.RawMessage) (any, error) {
	return ctl.Orch.Resume(sess)
}

func (ctl *SignalWSController) roomEntered(_ context.Context, sess *core.Session, data json.RawMessage) (any, error) {
	req, err := bind[roomIDRequest](data)
	if err != nil {
		return nil, err
	}
	return ctl.Orch.Enter(sess, req.ID)
}

func (ctl *SignalWSController) leave(_ context.Context, sess *core.Session, _ json.RawMessage) (any, error) {
	return nil, ctl.Orch.Leave(sess)
}

func (ctl *SignalWSController) roomInfo(_ context.Context, sess *core.Session, _ json.RawMessage) (any, error) {
	return ctl.Orch.RoomInfo(sess)
}

func (ctl *SignalWSController) getPushURL(_ context.Context, sess *core.Session, _ json.RawMessage) (any, error) {
	return ctl.Orch.PushURL(sess)
}

func (ctl *SignalWSController) getPullURL(_ context.Context, sess *core.Session, data json.RawMessage) (any, error) {
	req, err := bind[struct {
		Type live.StreamType `json:"type"`
	}](data)
	if err != nil {
		return nil, err
	}
	return ctl.Orch.PullURL(sess, req.Type)
}

func (ctl *SignalWSController) switchStream(_ context.Context, sess *core.Session, data json.RawMessage) (any, error) {
	req, err := bind[struct {
		Flag bool `json:"flag"`
	}](data)
	if err != nil {
		return nil, err
	}
	return nil, ctl.Orch.SwitchEnterable(sess, req.Flag)
}

func (ctl *SignalWSController) sendDanmaku(_ context.Context, sess *core.Session, data json.RawMessage) (any, error) {
	req, err := bind[danmakuRequest](data)
	if err != nil {
		return nil, err
	}
	return ctl.Orch.PostDanmaku(sess, req.Content, req.Color, req.Position)
}

func (ctl *SignalWSController) getRoomDanmaku(_ context.Context, sess *core.Session, _ json.RawMessage) (any, error) {
	return ctl.Orch.RecentDanmaku(sess)
}

func (ctl *SignalWSController) uploadCapture(_ context.Context, sess *core.Session, data json.RawMessage) (any, error) {
	req, err := bind[struct {
		Image string `json:"image"`
	}](data)
	if err != nil {
		return nil, err
	}
	return nil, ctl.Orch.UploadCapture(sess, req.Image)
}
