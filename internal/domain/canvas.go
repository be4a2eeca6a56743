package domain

import (
	"encoding/json"
	"errors"
	"strings"
)

var (
	ErrObjectIDEmpty = errors.New("canvas object id empty")
	ErrNotJSONObject = errors.New("canvas object payload is not a JSON object")
)

// ShapeKind tags the variant carried in a canvas object's property bag.
// Unknown kinds are relayed untouched so newer clients keep working.
type ShapeKind string

const (
	ShapeRect    ShapeKind = "rect"
	ShapeCircle  ShapeKind = "circle"
	ShapeText    ShapeKind = "i-text"
	ShapePath    ShapeKind = "path"
	ShapeUnknown ShapeKind = ""
)

// CanvasObject is one addressable drawable element. The full wire
// payload is retained verbatim: receivers and late joiners get exactly
// the bytes the originating client produced, while ID and Kind give the
// engine what it needs for by-id lookup and shape-aware behavior.
type CanvasObject struct {
	ID   string
	Kind ShapeKind
	raw  json.RawMessage
}

// ParseCanvasObject extracts id and shape kind from an add/modify
// payload of the form {"id": ..., "obj": {"type": ..., ...}}.
func ParseCanvasObject(raw json.RawMessage) (CanvasObject, error) {
	var probe struct {
		ID  string `json:"id"`
		Obj struct {
			Type string `json:"type"`
		} `json:"obj"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return CanvasObject{}, ErrNotJSONObject
	}
	if probe.ID == "" {
		return CanvasObject{}, ErrObjectIDEmpty
	}
	obj := CanvasObject{
		ID:   probe.ID,
		Kind: parseShapeKind(probe.Obj.Type),
		raw:  append(json.RawMessage(nil), raw...),
	}
	return obj, nil
}

func parseShapeKind(s string) ShapeKind {
	switch ShapeKind(strings.ToLower(s)) {
	case ShapeRect, ShapeCircle, ShapeText, ShapePath:
		return ShapeKind(strings.ToLower(s))
	default:
		return ShapeUnknown
	}
}

// Raw returns the original wire payload.
func (o CanvasObject) Raw() json.RawMessage { return o.raw }

func (o CanvasObject) MarshalJSON() ([]byte, error) {
	if o.raw == nil {
		return []byte("null"), nil
	}
	return o.raw, nil
}

// Typed property bags, one per shape kind. Fields mirror what the
// drawing surface serializes; anything else stays in the raw payload.
type (
	RectProps struct {
		Left        float64 `json:"left"`
		Top         float64 `json:"top"`
		Width       float64 `json:"width"`
		Height      float64 `json:"height"`
		Fill        string  `json:"fill"`
		Stroke      string  `json:"stroke"`
		StrokeWidth float64 `json:"strokeWidth"`
	}

	CircleProps struct {
		Left        float64 `json:"left"`
		Top         float64 `json:"top"`
		Radius      float64 `json:"radius"`
		Fill        string  `json:"fill"`
		Stroke      string  `json:"stroke"`
		StrokeWidth float64 `json:"strokeWidth"`
	}

	TextProps struct {
		Left     float64 `json:"left"`
		Top      float64 `json:"top"`
		Text     string  `json:"text"`
		Fill     string  `json:"fill"`
		FontSize float64 `json:"fontSize"`
	}

	PathProps struct {
		Path        json.RawMessage `json:"path"`
		Stroke      string          `json:"stroke"`
		StrokeWidth float64         `json:"strokeWidth"`
	}
)

// DecodeProps unmarshals the object's property bag into v, which should
// be the typed struct matching o.Kind.
func (o CanvasObject) DecodeProps(v any) error {
	var outer struct {
		Obj json.RawMessage `json:"obj"`
	}
	if err := json.Unmarshal(o.raw, &outer); err != nil {
		return err
	}
	if outer.Obj == nil {
		return ErrNotJSONObject
	}
	return json.Unmarshal(outer.Obj, v)
}
