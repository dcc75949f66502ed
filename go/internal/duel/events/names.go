package events

// Name is the wire name of a push event or outbound intent.
type Name string

// Inbound push events
const (
	RoomUpdate         Name = "roomUpdate"
	PlayerJoinedRoom   Name = "playerJoinedRoom"
	PlayerLeftRoom     Name = "playerLeftRoom"
	PlayerStatusUpdate Name = "playerStatusUpdate"
	GameStart          Name = "gameStart"
	GameEnd            Name = "gameEnd"
	GameError          Name = "gameError"
	ReconnectedToGame  Name = "reconnectedToGame"
)

// Outbound intents
const (
	JoinGameRoom  Name = "joinGameRoom"
	PlayerReady   Name = "playerReady"
	LeaveGameRoom Name = "leaveGameRoom"
)

// IsInbound reports whether n is one of the push events the server emits.
func (n Name) IsInbound() bool {
	switch n {
	case RoomUpdate, PlayerJoinedRoom, PlayerLeftRoom, PlayerStatusUpdate,
		GameStart, GameEnd, GameError, ReconnectedToGame:
		return true
	}
	return false
}
