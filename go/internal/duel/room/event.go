package room

import (
	"time"

	"github.com/mcdev12/codeduel/go/internal/duel/events"
	"github.com/mcdev12/codeduel/go/internal/models"
)

// EventType tags an Event. Push events reuse their wire names; the rest are
// raised locally by the connection, the clocks and the snapshot fetch.
type EventType string

const (
	EventRoomUpdate         = EventType(events.RoomUpdate)
	EventPlayerJoinedRoom   = EventType(events.PlayerJoinedRoom)
	EventPlayerLeftRoom     = EventType(events.PlayerLeftRoom)
	EventPlayerStatusUpdate = EventType(events.PlayerStatusUpdate)
	EventGameStart          = EventType(events.GameStart)
	EventGameEnd            = EventType(events.GameEnd)
	EventGameError          = EventType(events.GameError)
	EventReconnectedToGame  = EventType(events.ReconnectedToGame)

	EventJoined         EventType = "JOINED"
	EventConnectError   EventType = "CONNECT_ERROR"
	EventDisconnected   EventType = "DISCONNECTED"
	EventSnapshotLoaded EventType = "SNAPSHOT_LOADED"
	EventSnapshotFailed EventType = "SNAPSHOT_FAILED"
	EventTick           EventType = "TICK"
	EventIntroElapsed   EventType = "INTRO_ELAPSED"
)

// Event is the single tagged union fed into Reduce. Only the fields relevant
// to Type are set.
type Event struct {
	Type EventType

	// At is when the event was observed; it drives every time computation
	// so that Reduce never reads a clock.
	At time.Time

	Room    *models.Room
	Results *models.GameResults

	// Reason carries the gameEnd reason or the connection failure cause.
	Reason  string
	Message string
}

// PushEvent builds the event for a room-bearing push message.
func PushEvent(name events.Name, payload events.RoomPayload, at time.Time) Event {
	return Event{Type: EventType(name), At: at, Room: payload.Room, Message: payload.Message}
}

// GameEndEvent builds the event for a gameEnd push message.
func GameEndEvent(payload events.GameEndPayload, at time.Time) Event {
	return Event{
		Type:    EventGameEnd,
		At:      at,
		Room:    payload.Room,
		Results: payload.Results,
		Reason:  payload.Reason,
		Message: payload.Message,
	}
}

// GameErrorEvent builds the event for a gameError push message.
func GameErrorEvent(payload events.GameErrorPayload, at time.Time) Event {
	return Event{Type: EventGameError, At: at, Message: payload.Message}
}
