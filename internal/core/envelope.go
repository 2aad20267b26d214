package core

import (
	"encoding/json"
	"time"
)

// Inbound is the client envelope: {"type": ..., "data": {...}}.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type outbound struct {
	Type string  `json:"type"`
	Data payload `json:"data"`
}

type payload struct {
	Msg       any   `json:"msg"`
	Timestamp int64 `json:"timestamp"`
}

// Encode wraps msg into the outbound envelope stamped with now in epoch ms.
func Encode(typ string, msg any, now time.Time) (Frame, error) {
	return json.Marshal(outbound{
		Type: typ,
		Data: payload{Msg: msg, Timestamp: now.UnixMilli()},
	})
}

// Decode parses an inbound envelope. A missing data object decodes as {}.
func Decode(raw []byte) (Inbound, error) {
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		return Inbound{}, err
	}
	if len(in.Data) == 0 || string(in.Data) == "null" {
		in.Data = json.RawMessage("{}")
	}
	return in, nil
}
