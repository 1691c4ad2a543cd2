// File: canvas/event.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Drawing event parsing and validation.

package canvas

import (
	"encoding/json"
	"errors"
	"fmt"
)

// EventType names the drawing action.
type EventType string

const (
	EventStart EventType = "start"
	EventMove  EventType = "move"
	EventClear EventType = "clear"
)

var (
	ErrNotJSON          = errors.New("canvas: payload is not a JSON object")
	ErrUnknownType      = errors.New("canvas: unknown event type")
	ErrMissingPosition  = errors.New("canvas: stroke event needs x and y")
	ErrUnexpectedCoords = errors.New("canvas: clear event carries coordinates")
)

// Event is one decoded drawing action.
type Event struct {
	X    float64   `json:"x,omitempty"`
	Y    float64   `json:"y,omitempty"`
	Type EventType `json:"type"`
}

type wireEvent struct {
	X    *float64  `json:"x"`
	Y    *float64  `json:"y"`
	Type EventType `json:"type"`
}

// ParseEvent decodes and validates one event.
func ParseEvent(data []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrNotJSON, err)
	}
	switch w.Type {
	case EventStart, EventMove:
		if w.X == nil || w.Y == nil {
			return Event{}, fmt.Errorf("%w: type %q", ErrMissingPosition, w.Type)
		}
		return Event{X: *w.X, Y: *w.Y, Type: w.Type}, nil
	case EventClear:
		if w.X != nil || w.Y != nil {
			return Event{}, ErrUnexpectedCoords
		}
		return Event{Type: EventClear}, nil
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownType, w.Type)
	}
}

// Validate reports whether text is a well-formed event. Its signature fits
// hub.MessageFilter.
func Validate(text string) error {
	_, err := ParseEvent([]byte(text))
	return err
}

// Encode returns the wire form of e.
func (e Event) Encode() (string, error) {
	if e.Type == EventClear {
		return `{"type":"clear"}`, nil
	}
	if e.Type != EventStart && e.Type != EventMove {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, e.Type)
	}
	b, err := json.Marshal(wireEvent{X: &e.X, Y: &e.Y, Type: e.Type})
	if err != nil {
		return "", err
	}
	return string(b), nil
}
