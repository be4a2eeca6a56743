package domain

import "encoding/json"

// Stroke is the transient in-flight freehand path one connection is
// drawing. It is relay state only and never enters the canvas store.
type Stroke struct {
	Style  json.RawMessage
	Points []json.RawMessage
}

func NewStroke(style json.RawMessage) *Stroke {
	return &Stroke{Style: append(json.RawMessage(nil), style...)}
}

func (s *Stroke) Append(point json.RawMessage) {
	s.Points = append(s.Points, append(json.RawMessage(nil), point...))
}
