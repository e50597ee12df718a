package wire

import (
	"encoding/json"
	"fmt"
)

// EventType discriminates the Event sum type.
type EventType string

const (
	EventClick      EventType = "Click"
	EventHoverEnter EventType = "HoverEnter"
	EventHoverExit  EventType = "HoverExit"
	EventDrop       EventType = "Drop"
	EventSelected   EventType = "Selected"
	EventDeselected EventType = "Deselected"
)

// Event is input delivered to the child describing something that happened
// to its icon in the window system.
type Event struct {
	Type EventType

	Click *ClickEvent
	Drop  *DropEvent
}

type ClickEvent struct {
	Button int32 `json:"button"`
	X      int32 `json:"x"`
	Y      int32 `json:"y"`
}

type DropEvent struct {
	Paths []string `json:"paths"`
}

func ClickAt(button, x, y int32) Event {
	return Event{Type: EventClick, Click: &ClickEvent{Button: button, X: x, Y: y}}
}

func HoverEnter() Event { return Event{Type: EventHoverEnter} }
func HoverExit() Event  { return Event{Type: EventHoverExit} }
func Selected() Event   { return Event{Type: EventSelected} }
func Deselected() Event { return Event{Type: EventDeselected} }
func Drop(paths []string) Event {
	return Event{Type: EventDrop, Drop: &DropEvent{Paths: paths}}
}

func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Type {
	case EventClick:
		return taggedMarshal(e.Type, e.Click)
	case EventDrop:
		return taggedMarshal(e.Type, e.Drop)
	case EventHoverEnter, EventHoverExit, EventSelected, EventDeselected:
		return taggedMarshal(e.Type, struct{}{})
	default:
		return nil, fmt.Errorf("wire: unknown event type %q", e.Type)
	}
}

func (e *Event) UnmarshalJSON(data []byte) error {
	var tag struct {
		Type EventType `json:"type"`
	}
	if err := json.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	e.Type = tag.Type
	switch tag.Type {
	case EventClick:
		e.Click = &ClickEvent{}
		return decodeInto(data, e.Click)
	case EventDrop:
		e.Drop = &DropEvent{}
		return decodeInto(data, e.Drop)
	case EventHoverEnter, EventHoverExit, EventSelected, EventDeselected:
		return nil
	default:
		return fmt.Errorf("%w: unknown event type %q", ErrDecode, tag.Type)
	}
}

// taggedMarshal JSON-encodes payload and splices in a "type" field equal to
// tag, matching the internally-tagged encoding the whole protocol uses.
func taggedMarshal(tag any, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	if m == nil {
		m = map[string]json.RawMessage{}
	}
	typeJSON, err := json.Marshal(tag)
	if err != nil {
		return nil, err
	}
	out := map[string]json.RawMessage{"type": typeJSON}
	for k, v := range m {
		out[k] = v
	}
	return json.Marshal(out)
}
