package app

import "github.com/harvey0995/GhostBridge/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickDevice
	DropFrame
)

// Policy decides what happens to a receiver whose send buffer is full.
type Policy interface {
	OnBackPressure(sid core.SessionID) BackpressureAction
}

// SimplePolicy kicks slow receivers so one stalled connection cannot hold
// payload frames for the rest of the room.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(sid core.SessionID) BackpressureAction {
	return KickDevice
}
