package controller

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/codeduel/go/internal/duel/room"
)

// Notifier surfaces notices to the user. Implementations must be safe for
// concurrent use: the event loop and the action methods both notify.
type Notifier interface {
	Notify(roomID string, notice room.Notice)
}

// LogNotifier writes notices to the global logger
type LogNotifier struct{}

func (LogNotifier) Notify(roomID string, notice room.Notice) {
	var evt *zerolog.Event
	switch notice.Level {
	case room.LevelError:
		evt = log.Error()
	case room.LevelWarning:
		evt = log.Warn()
	default:
		evt = log.Info()
	}
	evt.Str("room_id", roomID).
		Bool("fatal", notice.Fatal).
		Msg(notice.Message)
}

// NotifierFunc adapts a function to a Notifier
type NotifierFunc func(roomID string, notice room.Notice)

func (f NotifierFunc) Notify(roomID string, notice room.Notice) { f(roomID, notice) }
