package orch

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/openboard/openboard/internal/app"
	"github.com/openboard/openboard/internal/core"
)

// Stroke events are relayed verbatim and never stored on the canvas.
// Denials are silent, and a continuation without an open stroke is
// dropped instead of relayed so receivers never see an unknown origin.

func (o *Orchestrator) handleDrawingStart(sid core.SessionID, data json.RawMessage, frame []byte) {
	svc, ok := o.authorizeOp(sid, app.OpDrawingStart)
	if !ok {
		return
	}
	var p struct {
		Pointer json.RawMessage `json:"pointer"`
		Style   json.RawMessage `json:"style"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Warn().Str("module", "orch").Str("sid", string(sid)).Msg("bad drawing-start payload")
		return
	}
	svc.StrokeStart(sid, p.Style)
	if p.Pointer != nil {
		svc.StrokeAppend(sid, p.Pointer)
	}
	o.broadcast(svc, sid, frame)
}

func (o *Orchestrator) handleDrawingPath(sid core.SessionID, data json.RawMessage, frame []byte) {
	svc, ok := o.authorizeOp(sid, app.OpDrawingPath)
	if !ok {
		return
	}
	var p struct {
		Pointer json.RawMessage `json:"pointer"`
	}
	if err := json.Unmarshal(data, &p); err != nil || p.Pointer == nil {
		return
	}
	if !svc.StrokeAppend(sid, p.Pointer) {
		return
	}
	o.broadcast(svc, sid, frame)
}

func (o *Orchestrator) handleDrawingEnd(sid core.SessionID, frame []byte) {
	svc, ok := o.authorizeOp(sid, app.OpDrawingEnd)
	if !ok {
		return
	}
	if !svc.StrokeEnd(sid) {
		return
	}
	o.broadcast(svc, sid, frame)
}
