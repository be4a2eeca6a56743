package app

import (
	"github.com/openboard/openboard/internal/core"
	"github.com/openboard/openboard/internal/domain"
)

// Op is a canvas-mutating operation kind the guard decides on.
type Op int

const (
	OpAddObject Op = iota
	OpModifyObject
	OpRemoveObject
	OpClearCanvas
	OpDrawingStart
	OpDrawingPath
	OpDrawingEnd
)

// Guard is the pure permission decision. No transport, no room lookup.
type Guard struct{}

// Authorize allows a mutation only for members holding edit rights.
// A connection with no membership is always denied.
func (Guard) Authorize(m *domain.Membership, op Op) bool {
	if m == nil {
		return false
	}
	return m.CanEdit()
}

// Silent reports whether a denial of op is dropped without an error
// event. Stroke traffic fails quietly; explicit object operations get
// an error back.
func (Guard) Silent(op Op) bool {
	switch op {
	case OpDrawingStart, OpDrawingPath, OpDrawingEnd:
		return true
	default:
		return false
	}
}

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
	DropFrame
)

// BackpressurePolicy decides what to do with a member whose send
// buffer is full during fan-out.
type BackpressurePolicy interface {
	OnBackPressure(room core.RoomService, member core.SessionID) BackpressureAction
}

type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(room core.RoomService, member core.SessionID) BackpressureAction {
	return KickMember
}
