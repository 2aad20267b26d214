package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/danmaku/internal/app/orch"
	"github.com/dkeye/danmaku/internal/core"
	"github.com/dkeye/danmaku/internal/domain"
	"github.com/dkeye/danmaku/internal/live"
)

type toggleRequest struct {
	IDs    []domain.UserID `json:"uid"`
	Action bool            `json:"action"`
}

func (ctl *SignalWSController) adminRooms(context.Context, *core.Session, json.RawMessage) (any, error) {
	return ctl.Orch.AdminRooms(), nil
}

func (ctl *SignalWSController) adminUsers(context.Context, *core.Session, json.RawMessage) (any, error) {
	return ctl.Orch.AdminUsers()
}

func (ctl *SignalWSController) adminStopStream(_ context.Context, _ *core.Session, data json.RawMessage) (any, error) {
	req, err := bind[roomIDRequest](data)
	if err != nil {
		return nil, err
	}
	return nil, ctl.Orch.StopStream(req.ID)
}

func (ctl *SignalWSController) adminSendDanmaku(_ context.Context, _ *core.Session, data json.RawMessage) (any, error) {
	req, err := bind[danmakuRequest](data)
	if err != nil {
		return nil, err
	}
	return ctl.Orch.AdminDanmaku(req.ID, req.Content, req.Color, req.Position)
}

func (ctl *SignalWSController) adminMonitor(_ context.Context, sess *core.Session, data json.RawMessage) (any, error) {
	req, err := bind[struct {
		ID         any    `json:"id"`
		InviteCode string `json:"inviteCode"`
	}](data)
	if err != nil {
		return nil, err
	}
	query := req.InviteCode
	if query == "" {
		query = queryString(req.ID)
	}
	return ctl.Orch.Monitor(sess, query)
}

func (ctl *SignalWSController) adminUnmonitor(_ context.Context, sess *core.Session, _ json.RawMessage) (any, error) {
	ctl.Orch.Unmonitor(sess)
	return nil, nil
}

func (ctl *SignalWSController) adminToggleStream(_ context.Context, _ *core.Session, data json.RawMessage) (any, error) {
	req, err := bind[toggleRequest](data)
	if err != nil {
		return nil, err
	}
	return partial(ctl.Orch.ToggleStream(req.IDs, req.Action))
}

func (ctl *SignalWSController) adminToggleSilent(_ context.Context, _ *core.Session, data json.RawMessage) (any, error) {
	req, err := bind[toggleRequest](data)
	if err != nil {
		return nil, err
	}
	return partial(ctl.Orch.ToggleSilent(req.IDs, req.Action))
}

// partial reports how many ids of a batch failed alongside PartError.
func partial(failed int, err error) (any, error) {
	if err != nil && failed > 0 {
		return map[string]int{"count": failed}, err
	}
	return nil, err
}

func (ctl *SignalWSController) adminEditUser(_ context.Context, _ *core.Session, data json.RawMessage) (any, error) {
	req, err := bind[orch.EditUser](data)
	if err != nil {
		return nil, err
	}
	return ctl.Orch.EditUser(req)
}

func (ctl *SignalWSController) adminLogs(_ context.Context, _ *core.Session, data json.RawMessage) (any, error) {
	req, err := bind[struct {
		Page   int    `json:"page"`
		Size   int    `json:"itemsPerPage"`
		Module string `json:"logType"`
	}](data)
	if err != nil {
		return nil, err
	}
	return ctl.Orch.AuditLogs(req.Page, req.Size, req.Module)
}

func (ctl *SignalWSController) adminCaptures(context.Context, *core.Session, json.RawMessage) (any, error) {
	return ctl.Orch.Captures(), nil
}

func (ctl *SignalWSController) adminPullURL(_ context.Context, _ *core.Session, data json.RawMessage) (any, error) {
	req, err := bind[struct {
		ID   domain.RoomID   `json:"id"`
		Type live.StreamType `json:"type"`
	}](data)
	if err != nil {
		return nil, err
	}
	return ctl.Orch.AdminPullURL(req.ID, req.Type)
}
