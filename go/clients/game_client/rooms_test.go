package game_client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/codeduel/go/clients"
	"github.com/mcdev12/codeduel/go/internal/models"
)

const bareRoom = `{"roomId":"R1","status":"in-progress","maxPlayers":2,"problemIds":["p1","p2"],` +
	`"currentProblemIndex":1,"endTime":1700000600000,` +
	`"players":[{"userId":{"_id":"u1","username":"alice"},"isCreator":true,"status":"ready"},` +
	`{"userId":"u2","isCreator":false,"status":"ready"}]}`

func newRoomServer(t *testing.T, status int, body string) (*httptest.Server, <-chan *http.Request) {
	t.Helper()
	seen := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case seen <- r.Clone(context.Background()):
		default:
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func TestGetRoom(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "envelope", body: `{"room":` + bareRoom + `}`},
		{name: "bare room", body: bareRoom},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, seen := newRoomServer(t, http.StatusOK, tt.body)
			client := NewGameClient(srv.URL+"/api/", "tok")

			room, err := client.GetRoom(context.Background(), "R1")
			require.NoError(t, err)

			req := <-seen
			assert.Equal(t, "/api/game/room/R1", req.URL.Path)
			assert.Equal(t, "Bearer tok", req.Header.Get(AuthorizationHeader))
			assert.NotEmpty(t, req.Header.Get(clients.RequestIDHeader))

			assert.Equal(t, "R1", room.RoomID)
			assert.Equal(t, models.RoomStatusInProgress, room.Status)
			require.Len(t, room.Players, 2)
			assert.Equal(t, "alice", room.Players[0].User.Username)
			assert.Equal(t, "u2", room.Players[1].User.ID)
			require.NotNil(t, room.EndTime)
			assert.Equal(t, models.EpochMillis(1700000600000), *room.EndTime)

			problem, ok := room.CurrentProblem()
			assert.True(t, ok)
			assert.Equal(t, "p2", problem)
		})
	}
}

func TestGetRoomNotFound(t *testing.T) {
	srv, _ := newRoomServer(t, http.StatusNotFound, `{"message":"Room not found"}`)
	client := NewGameClient(srv.URL, "")

	_, err := client.GetRoom(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestGetRoomServerError(t *testing.T) {
	srv, _ := newRoomServer(t, http.StatusInternalServerError, `boom`)
	client := NewGameClient(srv.URL, "")

	_, err := client.GetRoom(context.Background(), "R1")
	require.Error(t, err)

	var statusErr *clients.StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	assert.Equal(t, "boom", statusErr.Body)
}

func TestGetRoomEmptySnapshot(t *testing.T) {
	srv, _ := newRoomServer(t, http.StatusOK, `{"room":null,"message":"gone"}`)
	client := NewGameClient(srv.URL, "")

	_, err := client.GetRoom(context.Background(), "R1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gone")
}

func TestGetRoomHonoursContext(t *testing.T) {
	srv, _ := newRoomServer(t, http.StatusOK, bareRoom)
	client := NewGameClient(srv.URL, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetRoom(ctx, "R1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
