package app

import "github.com/dkeye/Parley/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	DropFrame
	CloseSession
)

// Policy decides what happens to a session whose send buffer is full.
type Policy interface {
	OnBackPressure(sess core.Session, event core.EventName) BackpressureAction
}

type SimplePolicy struct{}

// OnBackPressure closes the session; the adapter read loop then unregisters it.
func (SimplePolicy) OnBackPressure(core.Session, core.EventName) BackpressureAction {
	return CloseSession
}

// LenientPolicy keeps slow sessions and only loses the frame.
type LenientPolicy struct{}

func (LenientPolicy) OnBackPressure(core.Session, core.EventName) BackpressureAction {
	return DropFrame
}
