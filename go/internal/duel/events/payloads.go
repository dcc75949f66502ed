package events

import (
	"github.com/mcdev12/codeduel/go/internal/models"
)

// Event payload types shared between the gateway and the room reducer

// RoomPayload is carried by every room-bearing push event
// (roomUpdate, playerJoinedRoom, playerLeftRoom, playerStatusUpdate,
// gameStart, reconnectedToGame).
type RoomPayload struct {
	Room    *models.Room `json:"room"`
	Message string       `json:"message,omitempty"`
}

// GameEndPayload is the payload for a gameEnd event
type GameEndPayload struct {
	Room    *models.Room        `json:"room"`
	Results *models.GameResults `json:"results,omitempty"`
	Reason  string              `json:"reason,omitempty"`
	Message string              `json:"message,omitempty"`
}

// GameErrorPayload is the payload for a gameError event
type GameErrorPayload struct {
	Message string `json:"message"`
}

// RoomIntent is the body of every outbound intent
// (joinGameRoom, playerReady, leaveGameRoom).
type RoomIntent struct {
	RoomID string `json:"roomId"`
	UserID string `json:"userId"`
}
