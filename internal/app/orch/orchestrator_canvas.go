package orch

import (
	"encoding/json"

	"github.com/openboard/openboard/internal/app"
	"github.com/openboard/openboard/internal/config"
	"github.com/openboard/openboard/internal/core"
	"github.com/openboard/openboard/internal/domain"
)

// authorizeOp resolves sid's room and checks mutation rights. On denial
// the caller gets an error event unless the guard classifies the op as
// silent (stroke traffic).
func (o *Orchestrator) authorizeOp(sid core.SessionID, op app.Op) (core.RoomService, bool) {
	var svc core.RoomService
	var m *domain.Membership
	if roomID, ok := o.Registry.RoomOf(sid); ok {
		if s, ok := o.Rooms.Get(roomID); ok {
			svc = s
			m, _ = s.Membership(sid)
		}
	}
	if !o.Guard.Authorize(m, op) {
		if !o.Guard.Silent(op) {
			o.errorTo(sid, msgNoEditPermission)
		}
		return nil, false
	}
	return svc, true
}

// relayOnMiss applies the configured missing-target policy after a
// modify/remove whose id was absent locally. Reports whether the event
// should still be rebroadcast.
func (o *Orchestrator) relayOnMiss(sid core.SessionID) bool {
	switch o.OnMissingTarget {
	case config.Suppress:
		return false
	case config.ErrorOut:
		o.errorTo(sid, msgObjectNotFound)
		return false
	default:
		return true
	}
}

func (o *Orchestrator) handleAddObject(sid core.SessionID, data json.RawMessage, frame []byte) {
	svc, ok := o.authorizeOp(sid, app.OpAddObject)
	if !ok {
		return
	}
	obj, err := domain.ParseCanvasObject(data)
	if err != nil {
		o.errorTo(sid, msgInvalidPayload)
		return
	}
	svc.AddObject(obj)
	o.broadcast(svc, sid, frame)
}

func (o *Orchestrator) handleModifyObject(sid core.SessionID, data json.RawMessage, frame []byte) {
	svc, ok := o.authorizeOp(sid, app.OpModifyObject)
	if !ok {
		return
	}
	obj, err := domain.ParseCanvasObject(data)
	if err != nil {
		o.errorTo(sid, msgInvalidPayload)
		return
	}
	if !svc.ModifyObject(obj) && !o.relayOnMiss(sid) {
		return
	}
	o.broadcast(svc, sid, frame)
}

func (o *Orchestrator) handleRemoveObject(sid core.SessionID, data json.RawMessage, frame []byte) {
	svc, ok := o.authorizeOp(sid, app.OpRemoveObject)
	if !ok {
		return
	}
	var p struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.ID == "" {
		o.errorTo(sid, msgInvalidPayload)
		return
	}
	// Removing an absent id is a safe no-op locally; rebroadcast is
	// governed by the same missing-target policy as modify.
	if !svc.RemoveObject(p.ID) && !o.relayOnMiss(sid) {
		return
	}
	o.broadcast(svc, sid, frame)
}

func (o *Orchestrator) handleClearCanvas(sid core.SessionID, frame []byte) {
	svc, ok := o.authorizeOp(sid, app.OpClearCanvas)
	if !ok {
		return
	}
	svc.ClearCanvas()
	o.broadcast(svc, sid, frame)
}
