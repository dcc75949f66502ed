package room

import (
	"time"

	"github.com/mcdev12/codeduel/go/internal/models"
)

// ViewState is the derived, client-only view of a room visit. It is owned
// by Reduce; every other component only submits events.
type ViewState struct {
	Phase  Phase  `json:"phase"`
	UserID string `json:"user_id"`

	// Room is the last authoritative snapshot, never patched locally.
	Room *models.Room `json:"room,omitempty"`

	Connected      bool            `json:"connected"`
	TimeLeft       int             `json:"time_left_sec"`
	CurrentProblem string          `json:"current_problem,omitempty"`
	Opponent       *models.UserRef `json:"opponent,omitempty"`

	// Set once the phase is ended
	GameResults *models.GameResults `json:"game_results,omitempty"`
	EndReason   string              `json:"end_reason,omitempty"`

	// Set once the phase is error. Cancelled distinguishes a cancelled or
	// abandoned room from a connection/auth failure.
	ErrorReason string `json:"error_reason,omitempty"`
	Cancelled   bool   `json:"cancelled,omitempty"`
}

// NewViewState returns the initial connecting state for userID.
func NewViewState(userID string) ViewState {
	return ViewState{
		Phase:  PhaseConnecting,
		UserID: userID,
	}
}

// RoomID returns the id of the last snapshot, or "" before the first one.
func (s ViewState) RoomID() string {
	if s.Room == nil {
		return ""
	}
	return s.Room.RoomID
}

// TimeRemaining computes max(0, floor((endTime - now) / 1s)) in whole seconds.
func TimeRemaining(endTime models.EpochMillis, now time.Time) int {
	diff := int64(endTime) - now.UnixMilli()
	if diff <= 0 {
		return 0
	}
	return int(diff / 1000)
}

// withRoom replaces the snapshot and refreshes every field derived from it.
func (s ViewState) withRoom(r *models.Room, now time.Time) ViewState {
	if r == nil {
		return s
	}
	s.Room = r.Clone()
	s.CurrentProblem = ""
	if problem, ok := s.Room.CurrentProblem(); ok && s.Room.Status == models.RoomStatusInProgress {
		s.CurrentProblem = problem
	}
	if s.Room.EndTime != nil {
		s.TimeLeft = TimeRemaining(*s.Room.EndTime, now)
	}
	return s
}

// resolveOpponent identifies "me" versus "opponent" in a two-player room.
func resolveOpponent(r *models.Room, userID string) (*models.UserRef, bool) {
	if r == nil || len(r.Players) != 2 || userID == "" {
		return nil, false
	}

	var me, other *models.Player
	for i := range r.Players {
		if r.Players[i].User.ID == userID {
			if me != nil {
				return nil, false
			}
			me = &r.Players[i]
		} else {
			other = &r.Players[i]
		}
	}
	if me == nil || other == nil {
		return nil, false
	}
	opponent := other.User
	return &opponent, true
}
