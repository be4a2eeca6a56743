package orch

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/openboard/openboard/internal/app"
	"github.com/openboard/openboard/internal/core"
	"github.com/openboard/openboard/internal/domain"
)

func (o *Orchestrator) handleGetRooms(sid core.SessionID) {
	o.sendTo(sid, EvtRoomsList, o.Rooms.ListPublic())
}

func (o *Orchestrator) handleCreateRoom(sid core.SessionID, data json.RawMessage) {
	user, ok := o.Registry.User(sid)
	if !ok {
		o.errorTo(sid, msgNotRegistered)
		return
	}

	var p struct {
		Name              string `json:"name"`
		IsPrivate         bool   `json:"isPrivate"`
		Password          string `json:"password"`
		DefaultPermission string `json:"defaultPermission"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		o.errorTo(sid, msgInvalidPayload)
		return
	}

	defaultPerm := domain.PermissionEdit
	if p.DefaultPermission != "" {
		var err error
		defaultPerm, err = domain.ParsePermission(p.DefaultPermission)
		if err != nil {
			o.errorTo(sid, msgInvalidPermission)
			return
		}
	}

	var hash []byte
	if p.Password != "" {
		var err error
		hash, err = bcrypt.GenerateFromPassword([]byte(p.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Error().Err(err).Str("module", "orch").Msg("hash room password")
			o.errorTo(sid, msgInvalidPayload)
			return
		}
	}

	room, err := domain.NewRoom(app.NewRoomID(), p.Name, p.IsPrivate, hash, defaultPerm)
	if err != nil {
		o.errorTo(sid, msgInvalidRoomName)
		return
	}

	conn, ok := o.Registry.Conn(sid)
	if !ok {
		return
	}

	// A connection holds at most one membership: creating a room while
	// in another leaves the old one first.
	o.leaveCurrentRoom(sid, "")

	svc := o.Rooms.Create(room, sid)
	svc.AddMember(sid, domain.NewMembership(user.DisplayName, domain.PermissionEdit, true), conn)
	o.Registry.SetRoom(sid, room.ID)

	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(room.ID)).Str("name", p.Name).Msg("room created")
	o.sendTo(sid, EvtRoomCreated, struct {
		RoomID     domain.RoomID     `json:"roomId"`
		Name       domain.RoomName   `json:"name"`
		Permission domain.Permission `json:"permission"`
		IsOwner    bool              `json:"isOwner"`
	}{room.ID, room.Name, domain.PermissionEdit, true})
}

func (o *Orchestrator) handleJoinRoom(sid core.SessionID, data json.RawMessage) {
	user, ok := o.Registry.User(sid)
	if !ok {
		o.errorTo(sid, msgNotRegistered)
		return
	}

	var p struct {
		RoomID   string `json:"roomId"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		o.errorTo(sid, msgInvalidPayload)
		return
	}

	roomID := domain.RoomID(p.RoomID)
	svc, ok := o.Rooms.Get(roomID)
	if !ok {
		o.errorTo(sid, msgRoomNotFound)
		return
	}
	meta := svc.Meta()
	if meta.HasPassword() {
		if bcrypt.CompareHashAndPassword(meta.PasswordHash, []byte(p.Password)) != nil {
			o.errorTo(sid, msgWrongPassword)
			return
		}
	}

	conn, ok := o.Registry.Conn(sid)
	if !ok {
		return
	}

	// Leave the prior room first; the target room survives even if the
	// departure emptied it (re-join of one's own room).
	o.leaveCurrentRoom(sid, roomID)

	svc.AddMember(sid, domain.NewMembership(user.DisplayName, meta.DefaultPermission, false), conn)
	o.Registry.SetRoom(sid, roomID)

	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("room", string(roomID)).Str("name", user.DisplayName).Msg("joined room")
	o.sendTo(sid, EvtRoomJoined, struct {
		RoomID        domain.RoomID         `json:"roomId"`
		Name          domain.RoomName       `json:"name"`
		Permission    domain.Permission     `json:"permission"`
		IsOwner       bool                  `json:"isOwner"`
		CanvasObjects []domain.CanvasObject `json:"canvasObjects"`
	}{roomID, meta.Name, meta.DefaultPermission, false, svc.CanvasSnapshot()})

	o.broadcast(svc, sid, encode(EvtUserJoined, userJoinedPayload{
		DisplayName: user.DisplayName,
		MemberCount: svc.MemberCount(),
	}))
}

func (o *Orchestrator) handleLeaveRoom(sid core.SessionID) {
	o.leaveCurrentRoom(sid, "")
	o.sendTo(sid, EvtRoomLeft, nil)
}

func (o *Orchestrator) handleChangePermission(sid core.SessionID, data json.RawMessage) {
	var p struct {
		TargetConnectionID string `json:"targetConnectionId"`
		NewPermission      string `json:"newPermission"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		o.errorTo(sid, msgInvalidPayload)
		return
	}

	roomID, ok := o.Registry.RoomOf(sid)
	if !ok {
		o.errorTo(sid, msgRoomNotFound)
		return
	}
	svc, ok := o.Rooms.Get(roomID)
	if !ok {
		o.errorTo(sid, msgRoomNotFound)
		return
	}
	if svc.OwnerSID() != sid {
		o.errorTo(sid, msgNotOwner)
		return
	}

	perm, err := domain.ParsePermission(p.NewPermission)
	if err != nil {
		o.errorTo(sid, msgInvalidPermission)
		return
	}

	target := core.SessionID(p.TargetConnectionID)
	if !svc.SetPermission(target, perm) {
		o.errorTo(sid, msgTargetNotFound)
		return
	}

	log.Info().Str("module", "orch").Str("room", string(roomID)).Str("target", string(target)).Str("permission", string(perm)).Msg("permission changed")
	svc.Unicast(target, encode(EvtPermissionChanged, struct {
		NewPermission domain.Permission `json:"newPermission"`
	}{perm}))
	o.sendTo(sid, EvtPermissionChangeSuccess, struct {
		TargetConnectionID string            `json:"targetConnectionId"`
		NewPermission      domain.Permission `json:"newPermission"`
	}{p.TargetConnectionID, perm})
}

func (o *Orchestrator) handleGetRoomUsers(sid core.SessionID) {
	roomID, ok := o.Registry.RoomOf(sid)
	if !ok {
		o.errorTo(sid, msgRoomNotFound)
		return
	}
	svc, ok := o.Rooms.Get(roomID)
	if !ok {
		o.errorTo(sid, msgRoomNotFound)
		return
	}
	if svc.OwnerSID() != sid {
		o.errorTo(sid, msgNotOwner)
		return
	}
	o.sendTo(sid, EvtRoomUsers, svc.MembersSnapshot())
}

func (o *Orchestrator) handleDisconnect(sid core.SessionID) {
	o.leaveCurrentRoom(sid, "")
	o.Registry.Unbind(sid)
	log.Info().Str("module", "orch").Str("sid", string(sid)).Msg("disconnected")
}

// leaveCurrentRoom removes sid's membership from its current room, if
// any, notifies the remaining members and deletes the room when it
// became empty. keep names a room that must survive its own emptying
// (the re-join case); pass "" otherwise.
func (o *Orchestrator) leaveCurrentRoom(sid core.SessionID, keep domain.RoomID) {
	roomID, ok := o.Registry.RoomOf(sid)
	if !ok {
		return
	}
	o.Registry.ClearRoom(sid)

	svc, ok := o.Rooms.Get(roomID)
	if !ok {
		return
	}
	m, wasMember := svc.Membership(sid)
	svc.RemoveMember(sid)

	if wasMember {
		o.broadcast(svc, sid, encode(EvtUserLeft, userLeftPayload{
			DisplayName: m.DisplayName,
			MemberCount: svc.MemberCount(),
		}))
	}

	if svc.MemberCount() == 0 && roomID != keep {
		o.Rooms.Delete(roomID)
	}
}
