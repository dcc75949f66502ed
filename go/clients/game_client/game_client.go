package game_client

import (
	"github.com/mcdev12/codeduel/go/clients"
)

type GameClient struct {
	*clients.BaseClient
}

func NewGameClient(baseURL, authToken string) *GameClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	client := &GameClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	if authToken != "" {
		client.SetHeader(AuthorizationHeader, "Bearer "+authToken)
	}

	return client
}
