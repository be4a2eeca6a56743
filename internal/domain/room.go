package domain

import "errors"

type (
	RoomID   string
	RoomName string
)

const MaxRoomNameLen = 64

var (
	ErrRoomNameEmpty   = errors.New("room name empty")
	ErrRoomNameTooLong = errors.New("room name too long")
	ErrBadPermission   = errors.New("unknown permission")
)

// Permission is a member's mutation right inside one room.
type Permission string

const (
	PermissionEdit Permission = "edit"
	PermissionView Permission = "view"
)

// ParsePermission validates a wire value. Empty means "use the room
// default" and is resolved by the caller.
func ParsePermission(s string) (Permission, error) {
	switch Permission(s) {
	case PermissionEdit, PermissionView:
		return Permission(s), nil
	default:
		return "", ErrBadPermission
	}
}

// Room is collaboration-space meta only; membership and canvas state
// live in the room service that wraps it.
type Room struct {
	ID        RoomID
	Name      RoomName
	IsPrivate bool
	// PasswordHash is a bcrypt hash, empty when the room is open.
	PasswordHash      []byte
	DefaultPermission Permission
}

func NewRoom(id RoomID, name string, isPrivate bool, passwordHash []byte, defaultPermission Permission) (*Room, error) {
	if len(name) == 0 {
		return nil, ErrRoomNameEmpty
	}
	if len(name) > MaxRoomNameLen {
		return nil, ErrRoomNameTooLong
	}
	if defaultPermission == "" {
		defaultPermission = PermissionEdit
	}
	return &Room{
		ID:                id,
		Name:              RoomName(name),
		IsPrivate:         isPrivate,
		PasswordHash:      passwordHash,
		DefaultPermission: defaultPermission,
	}, nil
}

func (r *Room) HasPassword() bool { return len(r.PasswordHash) > 0 }
