package orch

import (
	"encoding/json"

	"github.com/dkeye/danmaku/internal/core"
	"github.com/dkeye/danmaku/internal/domain"
	"github.com/rs/zerolog/log"
)

// Relayed is what the counterpart receives: the opaque payload tagged with its sender.
type Relayed struct {
	Data json.RawMessage `json:"data"`
	From domain.UserID   `json:"from"`
}

// Relay forwards an Offer, Answer or Candidate payload. A viewer always reaches
// its room's streamer; the streamer reaches the viewer named by to. Answers only
// flow from viewer to streamer. A missing counterpart drops the payload.
func (o *Orchestrator) Relay(sess *core.Session, typ string, payload json.RawMessage, to domain.UserID) error {
	u, room, err := o.participating(sess)
	if err != nil {
		return err
	}
	var target *core.Session
	switch u.Status {
	case domain.StatusClient:
		if s, ok := room.Streamer(); ok {
			target = s.Session
		}
	case domain.StatusStreaming:
		if typ == "Answer" {
			return core.InvalidStatus
		}
		if v, ok := room.Viewer(to); ok {
			target = v.Session
		}
	}
	if target == nil {
		log.Debug().Str("module", "orch.relay").Str("type", typ).Uint("from", uint(u.Profile.ID)).Uint("to", uint(to)).Msg("counterpart absent")
		return nil
	}
	if err := target.Emit(typ, Relayed{Data: payload, From: u.Profile.ID}); err != nil {
		log.Debug().Err(err).Str("module", "orch.relay").Str("type", typ).Str("conn", string(target.ID())).Msg("relay dropped")
	}
	return nil
}
