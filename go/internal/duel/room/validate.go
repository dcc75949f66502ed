package room

import (
	"errors"

	"github.com/mcdev12/codeduel/go/internal/models"
)

var (
	ErrNotInLobby   = errors.New("room is not accepting ready confirmations")
	ErrNotInRoom    = errors.New("user is not a player in this room")
	ErrRoomNotFull  = errors.New("room is not full yet")
	ErrAlreadyReady = errors.New("player is already ready")
)

// CanMarkReady validates a ready confirmation locally so that no intent is
// sent for a request the server would reject anyway.
func CanMarkReady(state ViewState) error {
	if state.Phase != PhaseLobby || state.Room == nil || state.Room.Status != models.RoomStatusWaiting {
		return ErrNotInLobby
	}
	player, ok := state.Room.FindPlayer(state.UserID)
	if !ok {
		return ErrNotInRoom
	}
	if !state.Room.IsFull() {
		return ErrRoomNotFull
	}
	if player.Status == models.PlayerStatusReady {
		return ErrAlreadyReady
	}
	return nil
}
