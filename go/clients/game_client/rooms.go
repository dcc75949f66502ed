package game_client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/mcdev12/codeduel/go/clients"
	"github.com/mcdev12/codeduel/go/internal/models"
)

var ErrRoomNotFound = errors.New("room not found")

// roomEnvelope is the wrapped form of the room snapshot response
type roomEnvelope struct {
	Room    json.RawMessage `json:"room"`
	Message string          `json:"message"`
}

// GetRoom fetches the authoritative snapshot of a room. Both the
// {"room": {...}} envelope and a bare room object are accepted.
func (c *GameClient) GetRoom(ctx context.Context, roomID string) (*models.Room, error) {
	if roomID == "" {
		return nil, fmt.Errorf("failed to get room: empty room id")
	}

	endpoint := fmt.Sprintf(RoomEndpoint, url.PathEscape(roomID))
	body, err := c.Get(ctx, endpoint)
	if err != nil {
		var statusErr *clients.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("failed to get room %s: %w", roomID, ErrRoomNotFound)
		}
		return nil, fmt.Errorf("failed to get room %s: %w", roomID, err)
	}

	room, err := decodeRoom(body)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal room %s: %w", roomID, err)
	}
	return room, nil
}

func decodeRoom(body []byte) (*models.Room, error) {
	raw := body

	var envelope roomEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, err
	}
	if len(envelope.Room) > 0 && !bytes.Equal(envelope.Room, []byte("null")) {
		raw = envelope.Room
	}

	var room models.Room
	if err := json.Unmarshal(raw, &room); err != nil {
		return nil, err
	}
	if room.RoomID == "" {
		if envelope.Message != "" {
			return nil, fmt.Errorf("empty room snapshot: %s", envelope.Message)
		}
		return nil, errors.New("empty room snapshot")
	}
	return &room, nil
}
