package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// RoomStatus defines the server-side status of a game room.
type RoomStatus string

const (
	RoomStatusWaiting    RoomStatus = "waiting"
	RoomStatusInProgress RoomStatus = "in-progress"
	RoomStatusCompleted  RoomStatus = "completed"
	RoomStatusCancelled  RoomStatus = "cancelled"
)

// Known reports whether s is one of the statuses the server defines
func (s RoomStatus) Known() bool {
	switch s {
	case RoomStatusWaiting, RoomStatusInProgress, RoomStatusCompleted, RoomStatusCancelled:
		return true
	}
	return false
}

// PlayerStatus defines whether a player has confirmed readiness.
type PlayerStatus string

const (
	PlayerStatusWaiting PlayerStatus = "waiting"
	PlayerStatusReady   PlayerStatus = "ready"
)

// Room is the server-authoritative snapshot of a duel room. Clients never
// patch it; every snapshot replaces the previous one.
type Room struct {
	RoomID              string       `json:"roomId"`
	Status              RoomStatus   `json:"status"`
	MaxPlayers          int          `json:"maxPlayers"`
	Players             []Player     `json:"players"`
	ProblemIDs          []string     `json:"problemIds"`
	CurrentProblemIndex int          `json:"currentProblemIndex"`
	EndTime             *EpochMillis `json:"endTime,omitempty"`
	GameResults         *GameResults `json:"gameResults,omitempty"`
}

// Player is a participant entry in a room.
type Player struct {
	User      UserRef      `json:"userId"`
	IsCreator bool         `json:"isCreator"`
	Status    PlayerStatus `json:"status"`
}

// GameResults is attached to a room once it has completed.
type GameResults struct {
	Winner      *UserRef        `json:"winner"`
	Reason      string          `json:"reason"`
	SolvedOrder []PlayerOutcome `json:"solvedOrder"`
}

// PlayerOutcome is one ranked line of the final standings.
type PlayerOutcome struct {
	User                UserRef `json:"userId"`
	ProblemsSolvedCount int     `json:"problemsSolvedCount"`
	TimeTaken           int64   `json:"timeTaken"`
	EloBeforeGame       *int    `json:"eloBeforeGame,omitempty"`
	EloChange           *int    `json:"eloChange,omitempty"`
	EloAfterGame        *int    `json:"eloAfterGame,omitempty"`
}

// IsFull reports whether every seat is taken
func (r *Room) IsFull() bool {
	return r.MaxPlayers > 0 && len(r.Players) >= r.MaxPlayers
}

// FindPlayer returns the player entry for userID, if present.
func (r *Room) FindPlayer(userID string) (*Player, bool) {
	for i := range r.Players {
		if r.Players[i].User.ID == userID {
			return &r.Players[i], true
		}
	}
	return nil, false
}

// CurrentProblem resolves problemIds[currentProblemIndex]. It returns false
// when the index does not point into the sequence.
func (r *Room) CurrentProblem() (string, bool) {
	if r.CurrentProblemIndex < 0 || r.CurrentProblemIndex >= len(r.ProblemIDs) {
		return "", false
	}
	return r.ProblemIDs[r.CurrentProblemIndex], true
}

// Clone returns a deep copy so that callers can hold a snapshot without
// sharing slices with the reducer. Nil slices stay nil.
func (r *Room) Clone() *Room {
	if r == nil {
		return nil
	}
	c := *r
	if r.Players != nil {
		c.Players = make([]Player, len(r.Players))
		copy(c.Players, r.Players)
	}
	if r.ProblemIDs != nil {
		c.ProblemIDs = make([]string, len(r.ProblemIDs))
		copy(c.ProblemIDs, r.ProblemIDs)
	}
	if r.EndTime != nil {
		end := *r.EndTime
		c.EndTime = &end
	}
	c.GameResults = r.GameResults.Clone()
	return &c
}

// Clone returns a deep copy of the results.
func (g *GameResults) Clone() *GameResults {
	if g == nil {
		return nil
	}
	c := *g
	if g.Winner != nil {
		w := *g.Winner
		c.Winner = &w
	}
	if g.SolvedOrder != nil {
		c.SolvedOrder = make([]PlayerOutcome, len(g.SolvedOrder))
		copy(c.SolvedOrder, g.SolvedOrder)
	}
	return &c
}

// EpochMillis is an absolute timestamp in milliseconds since the Unix epoch.
// It decodes from a JSON number or an RFC 3339 string.
type EpochMillis int64

// NewEpochMillis converts t to milliseconds.
func NewEpochMillis(t time.Time) EpochMillis {
	return EpochMillis(t.UnixMilli())
}

// Time returns the timestamp as a time.Time
func (e EpochMillis) Time() time.Time {
	return time.UnixMilli(int64(e))
}

func (e *EpochMillis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
			*e = EpochMillis(ms)
			return nil
		}
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		*e = NewEpochMillis(t)
		return nil
	}

	var ms float64
	if err := json.Unmarshal(data, &ms); err != nil {
		return fmt.Errorf("invalid timestamp: %w", err)
	}
	*e = EpochMillis(int64(ms))
	return nil
}
