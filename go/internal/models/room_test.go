package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRefUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want UserRef
	}{
		{name: "bare id", raw: `"u1"`, want: UserRef{ID: "u1"}},
		{name: "populated", raw: `{"_id":"u1","username":"alice","avatar":"a.png"}`, want: UserRef{ID: "u1", Username: "alice", Avatar: "a.png"}},
		{name: "id and profile picture", raw: `{"id":"u2","username":"bob","profilePicture":"b.png"}`, want: UserRef{ID: "u2", Username: "bob", Avatar: "b.png"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got UserRef
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &got))
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "u1", UserRef{ID: "u1"}.DisplayName())
	assert.Equal(t, "alice", UserRef{ID: "u1", Username: "alice"}.DisplayName())
}

func TestEpochMillisUnmarshal(t *testing.T) {
	want := EpochMillis(1_700_000_600_000)

	for _, raw := range []string{
		`1700000600000`,
		`"1700000600000"`,
		`"` + want.Time().UTC().Format(time.RFC3339Nano) + `"`,
	} {
		var got EpochMillis
		require.NoError(t, json.Unmarshal([]byte(raw), &got), raw)
		assert.Equal(t, want, got, raw)
	}

	var bad EpochMillis
	assert.Error(t, json.Unmarshal([]byte(`"tomorrow"`), &bad))
}

func TestRoomHelpers(t *testing.T) {
	r := &Room{
		RoomID:     "R1",
		Status:     RoomStatusWaiting,
		MaxPlayers: 2,
		Players: []Player{
			{User: UserRef{ID: "u1"}, IsCreator: true, Status: PlayerStatusReady},
		},
		ProblemIDs:          []string{"p1", "p2"},
		CurrentProblemIndex: 1,
	}

	assert.True(t, r.Status.Known())
	assert.False(t, RoomStatus("active").Known())

	assert.False(t, r.IsFull())
	p, ok := r.FindPlayer("u1")
	require.True(t, ok)
	assert.True(t, p.IsCreator)
	_, ok = r.FindPlayer("u9")
	assert.False(t, ok)

	problem, ok := r.CurrentProblem()
	assert.True(t, ok)
	assert.Equal(t, "p2", problem)

	r.CurrentProblemIndex = 5
	_, ok = r.CurrentProblem()
	assert.False(t, ok)

	r.Players = append(r.Players, Player{User: UserRef{ID: "u2"}, Status: PlayerStatusWaiting})
	assert.True(t, r.IsFull())
}

func TestRoomCloneIsDeep(t *testing.T) {
	end := EpochMillis(1_700_000_600_000)
	r := &Room{
		RoomID:      "R1",
		Players:     []Player{{User: UserRef{ID: "u1"}}},
		ProblemIDs:  []string{"p1"},
		EndTime:     &end,
		GameResults: &GameResults{Winner: &UserRef{ID: "u1"}, SolvedOrder: []PlayerOutcome{{User: UserRef{ID: "u1"}}}},
	}

	c := r.Clone()
	require.Equal(t, r, c)

	c.Players[0].Status = PlayerStatusReady
	c.ProblemIDs[0] = "p9"
	*c.EndTime = 0
	c.GameResults.Winner.ID = "u2"
	c.GameResults.SolvedOrder[0].ProblemsSolvedCount = 3

	assert.Equal(t, PlayerStatus(""), r.Players[0].Status)
	assert.Equal(t, "p1", r.ProblemIDs[0])
	assert.Equal(t, end, *r.EndTime)
	assert.Equal(t, "u1", r.GameResults.Winner.ID)
	assert.Zero(t, r.GameResults.SolvedOrder[0].ProblemsSolvedCount)

	var nilRoom *Room
	assert.Nil(t, nilRoom.Clone())
	assert.Nil(t, (&Room{}).Clone().Players)
}
