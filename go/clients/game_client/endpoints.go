package game_client

const (
	// Base URL
	DefaultBaseURL = "http://localhost:5000/api"

	// API Endpoints
	RoomEndpoint = "/game/room/%s"

	// Headers
	AuthorizationHeader = "Authorization"
)
