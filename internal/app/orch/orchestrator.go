package orch

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/openboard/openboard/internal/app"
	"github.com/openboard/openboard/internal/config"
	"github.com/openboard/openboard/internal/core"
)

type eventKind int

const (
	evInbound eventKind = iota
	evDisconnect
)

type event struct {
	kind  eventKind
	sid   core.SessionID
	frame []byte
}

// Orchestrator owns all room and identity mutations. A single Run loop
// drains the event channel and handles each message to completion, so
// every inbound event across all connections is totally ordered and no
// handler ever races another.
type Orchestrator struct {
	Registry        *app.Registry
	Rooms           *app.RoomManagerImpl
	Guard           app.Guard
	Policy          app.BackpressurePolicy
	OnMissingTarget config.MissingTargetPolicy

	events chan event
}

func New(reg *app.Registry, rooms *app.RoomManagerImpl, policy app.BackpressurePolicy, onMissingTarget config.MissingTargetPolicy) *Orchestrator {
	if onMissingTarget == "" {
		onMissingTarget = config.RelayAnyway
	}
	return &Orchestrator{
		Registry:        reg,
		Rooms:           rooms,
		Policy:          policy,
		OnMissingTarget: onMissingTarget,
		events:          make(chan event, 256),
	}
}

// Run processes events until ctx is canceled. Exactly one Run loop may
// be active; it is the single writer for all room state.
func (o *Orchestrator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "orch").Msg("event loop stopped")
			return
		case ev := <-o.events:
			switch ev.kind {
			case evInbound:
				o.dispatch(ev.sid, ev.frame)
			case evDisconnect:
				o.handleDisconnect(ev.sid)
			}
		}
	}
}

// Submit queues one inbound frame. Blocks when the loop is saturated,
// which keeps per-connection FIFO order intact.
func (o *Orchestrator) Submit(sid core.SessionID, frame []byte) {
	o.events <- event{kind: evInbound, sid: sid, frame: frame}
}

// Disconnect queues the implicit teardown event for a dead connection.
func (o *Orchestrator) Disconnect(sid core.SessionID) {
	o.events <- event{kind: evDisconnect, sid: sid}
}

func (o *Orchestrator) dispatch(sid core.SessionID, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		log.Warn().Err(err).Str("module", "orch").Str("sid", string(sid)).Msg("bad json")
		o.errorTo(sid, msgInvalidPayload)
		return
	}

	switch env.Event {
	case EvtRegisterUser:
		o.handleRegister(sid, env.Data)
	case EvtGetRooms:
		o.handleGetRooms(sid)
	case EvtCreateRoom:
		o.handleCreateRoom(sid, env.Data)
	case EvtJoinRoom:
		o.handleJoinRoom(sid, env.Data)
	case EvtLeaveRoom:
		o.handleLeaveRoom(sid)
	case EvtChangePermission:
		o.handleChangePermission(sid, env.Data)
	case EvtGetRoomUsers:
		o.handleGetRoomUsers(sid)
	case EvtAddObject:
		o.handleAddObject(sid, env.Data, frame)
	case EvtModifyObject:
		o.handleModifyObject(sid, env.Data, frame)
	case EvtRemoveObject:
		o.handleRemoveObject(sid, env.Data, frame)
	case EvtClearCanvas:
		o.handleClearCanvas(sid, frame)
	case EvtDrawingStart:
		o.handleDrawingStart(sid, env.Data, frame)
	case EvtDrawingPath:
		o.handleDrawingPath(sid, env.Data, frame)
	case EvtDrawingEnd:
		o.handleDrawingEnd(sid, frame)
	case EvtPing:
		o.sendTo(sid, EvtPong, nil)
	default:
		log.Warn().Str("module", "orch").Str("event", env.Event).Msg("unknown event")
		o.errorTo(sid, msgUnknownEvent)
	}
}

func (o *Orchestrator) send(conn core.SignalConnection, event string, data any) {
	frame := encode(event, data)
	if frame == nil {
		return
	}
	_ = conn.TrySend(frame)
}

func (o *Orchestrator) sendTo(sid core.SessionID, event string, data any) {
	conn, ok := o.Registry.Conn(sid)
	if !ok {
		return
	}
	o.send(conn, event, data)
}

func (o *Orchestrator) errorTo(sid core.SessionID, msg string) {
	o.sendTo(sid, EvtError, errorPayload{Message: msg})
}

// broadcast fans a frame out to everyone in the room except from and
// applies the backpressure policy to members whose buffers were full.
func (o *Orchestrator) broadcast(room core.RoomService, from core.SessionID, frame core.Frame) {
	if frame == nil {
		return
	}
	res := room.Broadcast(from, frame)
	if o.Policy == nil {
		return
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(room, slow) {
		case app.KickMember:
			o.Registry.Cancel(slow)
		case app.MarkSlow, app.DropFrame, app.NoAction:
		}
	}
}
