package orch

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/openboard/openboard/internal/core"
)

// Event names, client->server and server->client. Canvas and drawing
// events are rebroadcast under their inbound name.
const (
	EvtRegisterUser            = "register-user"
	EvtRegistrationSuccess     = "registration-success"
	EvtGetRooms                = "get-rooms"
	EvtRoomsList               = "rooms-list"
	EvtCreateRoom              = "create-room"
	EvtRoomCreated             = "room-created"
	EvtJoinRoom                = "join-room"
	EvtRoomJoined              = "room-joined"
	EvtLeaveRoom               = "leave-room"
	EvtRoomLeft                = "room-left"
	EvtChangePermission        = "change-permission"
	EvtPermissionChanged       = "permission-changed"
	EvtPermissionChangeSuccess = "permission-change-success"
	EvtGetRoomUsers            = "get-room-users"
	EvtRoomUsers               = "room-users"
	EvtAddObject               = "add-object"
	EvtModifyObject            = "modify-object"
	EvtRemoveObject            = "remove-object"
	EvtClearCanvas             = "clear-canvas"
	EvtDrawingStart            = "drawing-start"
	EvtDrawingPath             = "drawing-path"
	EvtDrawingEnd              = "drawing-end"
	EvtUserJoined              = "user-joined"
	EvtUserLeft                = "user-left"
	EvtError                   = "error"
	EvtPing                    = "ping"
	EvtPong                    = "pong"
)

// Error messages surfaced to clients.
const (
	msgNotRegistered     = "Please register first"
	msgRoomNotFound      = "Room not found"
	msgWrongPassword     = "Incorrect password"
	msgNoEditPermission  = "No edit permission"
	msgNotOwner          = "Only the room owner can do that"
	msgTargetNotFound    = "User not found in room"
	msgObjectNotFound    = "Object not found"
	msgInvalidPayload    = "Invalid payload"
	msgInvalidName       = "Invalid display name"
	msgInvalidRoomName   = "Invalid room name"
	msgInvalidPermission = "Invalid permission"
	msgUnknownEvent      = "Unknown event"
)

// Envelope frames every message on the wire. Data stays raw so opaque
// canvas payloads survive a round trip byte for byte.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func encode(event string, data any) core.Frame {
	var (
		env Envelope
		err error
	)
	env.Event = event
	if data != nil {
		env.Data, err = json.Marshal(data)
		if err != nil {
			log.Error().Err(err).Str("module", "orch").Str("event", event).Msg("encode payload")
			return nil
		}
	}
	b, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("module", "orch").Str("event", event).Msg("encode envelope")
		return nil
	}
	return b
}

type errorPayload struct {
	Message string `json:"message"`
}

type userJoinedPayload struct {
	DisplayName string `json:"displayName"`
	MemberCount int    `json:"memberCount"`
}

type userLeftPayload struct {
	DisplayName string `json:"displayName"`
	MemberCount int    `json:"memberCount"`
}
