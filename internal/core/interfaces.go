package core

import (
	"encoding/json"

	"github.com/openboard/openboard/internal/domain"
)

// Frame is a raw outbound payload, already marshaled.
type Frame []byte

// SessionID identifies one live connection.
type SessionID string

// SignalConnection abstracts the messaging transport for one member.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// PublishResult reports delivery stats/backpressure to the orchestrator.
type PublishResult struct {
	SentTo  int
	Dropped []SessionID
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ConnectionID SessionID         `json:"connectionId"`
	DisplayName  string            `json:"displayName"`
	Permission   domain.Permission `json:"permission"`
	IsOwner      bool              `json:"isOwner"`
}

// RoomInfo is the public-listing view of a room.
type RoomInfo struct {
	ID          domain.RoomID   `json:"id"`
	Name        domain.RoomName `json:"name"`
	MemberCount int             `json:"memberCount"`
	HasPassword bool            `json:"hasPassword"`
}

// RoomService is the core-facing API of a room. It owns the membership
// set, the ordered canvas store and in-flight strokes, but never
// touches transport resources beyond fan-out sends.
type RoomService interface {
	Meta() *domain.Room
	OwnerSID() SessionID

	MemberCount() int
	MembersSnapshot() []MemberDTO
	Membership(sid SessionID) (*domain.Membership, bool)
	AddMember(sid SessionID, m *domain.Membership, conn SignalConnection)
	RemoveMember(sid SessionID)
	SetPermission(sid SessionID, p domain.Permission) bool

	Broadcast(from SessionID, data Frame) PublishResult
	Unicast(to SessionID, data Frame) bool

	AddObject(obj domain.CanvasObject)
	ModifyObject(obj domain.CanvasObject) bool
	RemoveObject(id string) bool
	ClearCanvas()
	CanvasSnapshot() []domain.CanvasObject

	StrokeStart(sid SessionID, style json.RawMessage)
	StrokeAppend(sid SessionID, point json.RawMessage) bool
	StrokeEnd(sid SessionID) bool
}
