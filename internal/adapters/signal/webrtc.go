package signal

import (
	"context"
	"encoding/json"

	"github.com/dkeye/danmaku/internal/core"
	"github.com/dkeye/danmaku/internal/domain"
)

// relay builds the handler for one negotiation message. field names the
// payload member, e.g. "offer" in {"offer": ..., "to": 12}.
func (ctl *SignalWSController) relay(typ, field string) handlerFunc {
	return func(_ context.Context, sess *core.Session, data json.RawMessage) (any, error) {
		var body map[string]json.RawMessage
		if err := json.Unmarshal(data, &body); err != nil {
			return nil, core.ParamsFormatError
		}
		payload, ok := body[field]
		if !ok {
			return nil, core.ParamsFormatError
		}
		var to domain.UserID
		if raw, ok := body["to"]; ok {
			if err := json.Unmarshal(raw, &to); err != nil {
				return nil, core.ParamsFormatError
			}
		}
		return nil, ctl.Orch.Relay(sess, typ, payload, to)
	}
}
