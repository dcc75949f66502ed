package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/codeduel/go/internal/duel/events"
	"github.com/mcdev12/codeduel/go/internal/duel/room"
)

// Frame is the envelope of every websocket text frame, in both directions
type Frame struct {
	Event events.Name     `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewFrame marshals payload into a frame for the given event name.
func NewFrame(name events.Name, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", name, err)
	}
	return json.Marshal(Frame{Event: name, Data: data})
}

// ParseEventPayload parses frame data into the payload struct for its event
func ParseEventPayload(frame *Frame) (interface{}, error) {
	switch frame.Event {
	case events.RoomUpdate, events.PlayerJoinedRoom, events.PlayerLeftRoom,
		events.PlayerStatusUpdate, events.GameStart, events.ReconnectedToGame:
		var payload events.RoomPayload
		if err := unmarshalData(frame.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case events.GameEnd:
		var payload events.GameEndPayload
		if err := unmarshalData(frame.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case events.GameError:
		var payload events.GameErrorPayload
		if err := unmarshalData(frame.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case events.JoinGameRoom, events.PlayerReady, events.LeaveGameRoom:
		var payload events.RoomIntent
		if err := unmarshalData(frame.Data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil // Unknown event type
	}
}

func unmarshalData(data json.RawMessage, v interface{}) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, v)
}

// ToRoomEvent converts an inbound frame into a reducer event observed at at.
// ok is false for frames the client does not act on.
func ToRoomEvent(frame *Frame, at time.Time) (ev room.Event, ok bool, err error) {
	if !frame.Event.IsInbound() {
		return room.Event{}, false, nil
	}

	payload, err := ParseEventPayload(frame)
	if err != nil {
		return room.Event{}, false, fmt.Errorf("parse %s payload: %w", frame.Event, err)
	}

	switch p := payload.(type) {
	case events.RoomPayload:
		return room.PushEvent(frame.Event, p, at), true, nil
	case events.GameEndPayload:
		return room.GameEndEvent(p, at), true, nil
	case events.GameErrorPayload:
		return room.GameErrorEvent(p, at), true, nil
	default:
		return room.Event{}, false, nil
	}
}
