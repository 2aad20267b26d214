package app

import "github.com/dkeye/danmaku/internal/core"

type BackpressureAction int

const (
	DropFrame BackpressureAction = iota
	KickMember
)

// Policy decides what happens to a recipient whose send buffer is full.
type Policy interface {
	OnBackPressure(sess *core.Session) BackpressureAction
}

// SimplePolicy drops the frame, or closes the slow connection when Kick is set.
type SimplePolicy struct {
	Kick bool
}

func (p SimplePolicy) OnBackPressure(sess *core.Session) BackpressureAction {
	if p.Kick {
		return KickMember
	}
	return DropFrame
}

// PolicyFor maps the slow_consumer setting ("drop" or "kick") to a policy.
func PolicyFor(mode string) Policy {
	return SimplePolicy{Kick: mode == "kick"}
}
