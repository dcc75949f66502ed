package room

import "time"

// IntroDuration is how long the battle intro is presented before the match
// view takes over. It is not the match countdown.
const IntroDuration = 5 * time.Second

// EffectType tags a side effect requested by Reduce.
type EffectType string

const (
	EffectFetchSnapshot   EffectType = "FETCH_SNAPSHOT"
	EffectArmCountdown    EffectType = "ARM_COUNTDOWN"
	EffectDisarmCountdown EffectType = "DISARM_COUNTDOWN"
	EffectStartIntro      EffectType = "START_INTRO"
	EffectCancelIntro     EffectType = "CANCEL_INTRO"
	EffectNotify          EffectType = "NOTIFY"
)

// Effect is work Reduce asks its owner to perform. Reduce itself never
// touches timers, sockets or the network.
type Effect struct {
	Type EffectType

	EndTime  time.Time     // EffectArmCountdown
	Duration time.Duration // EffectStartIntro
	Notice   Notice        // EffectNotify
}

// Level is the severity of a user-facing notice.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notice is a user-facing notification. Fatal notices accompany the
// transition into the error phase; the UI is expected to route back to the
// room listing after showing one.
type Notice struct {
	Level   Level
	Message string
	Fatal   bool
}

// Transition is the result of one Reduce call. Applied is false when the
// event was ignored, in which case State is the input state unchanged.
type Transition struct {
	State   ViewState
	Applied bool
	Effects []Effect
}

func notify(level Level, msg string, fatal bool) Effect {
	return Effect{Type: EffectNotify, Notice: Notice{Level: level, Message: msg, Fatal: fatal}}
}
