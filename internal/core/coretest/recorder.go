// Package coretest provides an in-memory signal connection for tests.
package coretest

import (
	"encoding/json"
	"sync"

	"github.com/dkeye/danmaku/internal/core"
)

type Envelope struct {
	Type string `json:"type"`
	Data struct {
		Msg       json.RawMessage `json:"msg"`
		Timestamp int64           `json:"timestamp"`
	} `json:"data"`
}

// Result decodes the message as a response body.
func (e Envelope) Result() (core.Result, json.RawMessage) {
	var r struct {
		Code core.Code       `json:"code"`
		Msg  string          `json:"msg"`
		Data json.RawMessage `json:"data"`
	}
	_ = json.Unmarshal(e.Data.Msg, &r)
	return core.Result{Code: r.Code, Msg: r.Msg}, r.Data
}

// Recorder captures every frame sent to it.
type Recorder struct {
	mu     sync.Mutex
	frames []core.Frame
	closed bool
	full   bool
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) TrySend(f core.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return core.ErrClosed
	}
	if r.full {
		return core.ErrBackpressure
	}
	r.frames = append(r.frames, f)
	return nil
}

func (r *Recorder) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
}

func (r *Recorder) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// SetFull makes every following TrySend fail with backpressure.
func (r *Recorder) SetFull(full bool) {
	r.mu.Lock()
	r.full = full
	r.mu.Unlock()
}

func (r *Recorder) Envelopes() []Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Envelope, 0, len(r.frames))
	for _, f := range r.frames {
		var e Envelope
		if err := json.Unmarshal(f, &e); err == nil {
			out = append(out, e)
		}
	}
	return out
}

func (r *Recorder) Types() []string {
	envs := r.Envelopes()
	out := make([]string, len(envs))
	for i, e := range envs {
		out[i] = e.Type
	}
	return out
}

// Last returns the most recent envelope of the given type.
func (r *Recorder) Last(typ string) (Envelope, bool) {
	envs := r.Envelopes()
	for i := len(envs) - 1; i >= 0; i-- {
		if envs[i].Type == typ {
			return envs[i], true
		}
	}
	return Envelope{}, false
}

func (r *Recorder) Count(typ string) int {
	n := 0
	for _, t := range r.Types() {
		if t == typ {
			n++
		}
	}
	return n
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	r.frames = nil
	r.mu.Unlock()
}

// Session wraps a new recorder in a core session.
func Session(id string) (*core.Session, *Recorder) {
	rec := NewRecorder()
	return core.NewSession(core.ConnID(id), rec), rec
}
