package room

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/mcdev12/codeduel/go/internal/models"
)

// fatalErrorTerms mark a gameError as meaning the room itself is unusable
var fatalErrorTerms = []string{"not found", "full", "not active"}

// IsFatalGameError reports whether a gameError message means the room is
// invalid for this user (missing, full or no longer active).
func IsFatalGameError(message string) bool {
	lower := strings.ToLower(message)
	for _, term := range fatalErrorTerms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

// Reduce is the single source of truth for phase transitions. It is a pure
// function: side effects are returned as Effects for the caller to run.
// Events that do not apply to the current phase are ignored and reported
// with Applied=false and the input state returned as is.
func Reduce(state ViewState, ev Event) Transition {
	if state.Phase.IsTerminal() {
		return ignored(state)
	}

	switch ev.Type {
	case EventJoined:
		return onJoined(state)
	case EventConnectError:
		return finish(state, fail(state, fmt.Sprintf("connection failed: %s", ev.Reason), false))
	case EventDisconnected:
		return onDisconnected(state, ev)
	case EventSnapshotLoaded:
		return onSnapshotLoaded(state, ev)
	case EventSnapshotFailed:
		if state.Phase != PhaseConnecting {
			return ignored(state)
		}
		return finish(state, fail(state, fmt.Sprintf("failed to load room: %s", ev.Reason), false))
	case EventRoomUpdate, EventPlayerJoinedRoom, EventPlayerLeftRoom, EventPlayerStatusUpdate, EventGameStart:
		return onRoomEvent(state, ev)
	case EventReconnectedToGame:
		return onReconnected(state, ev)
	case EventGameEnd:
		return onGameEnd(state, ev)
	case EventGameError:
		return onGameError(state, ev)
	case EventTick:
		return onTick(state, ev)
	case EventIntroElapsed:
		return onIntroElapsed(state, ev)
	default:
		return ignored(state)
	}
}

func ignored(state ViewState) Transition {
	return Transition{State: state}
}

// finish marks next as applied and attaches the effects implied by the phase
// change from prev to next, followed by any handler-specific extras.
func finish(prev, next ViewState, extra ...Effect) Transition {
	effects := phaseEffects(prev, next)
	effects = append(effects, extra...)
	return Transition{State: next, Applied: true, Effects: effects}
}

func phaseEffects(prev, next ViewState) []Effect {
	var effects []Effect

	if prev.Phase == PhaseBattleIntro && next.Phase != PhaseBattleIntro {
		effects = append(effects, Effect{Type: EffectCancelIntro})
	}
	if prev.Phase == PhaseInProgress && next.Phase != PhaseInProgress {
		effects = append(effects, Effect{Type: EffectDisarmCountdown})
	}
	if next.Phase == PhaseBattleIntro && prev.Phase != PhaseBattleIntro {
		effects = append(effects, Effect{Type: EffectStartIntro, Duration: IntroDuration})
	}
	if next.Phase == PhaseInProgress && next.Room != nil && next.Room.EndTime != nil {
		if prev.Phase != PhaseInProgress || endTimeChanged(prev.Room, next.Room) {
			effects = append(effects, Effect{Type: EffectArmCountdown, EndTime: next.Room.EndTime.Time()})
		}
	}

	if next.Phase != prev.Phase {
		switch next.Phase {
		case PhaseError:
			level := LevelError
			if next.Cancelled {
				level = LevelWarning
			}
			effects = append(effects, notify(level, next.ErrorReason, true))
		case PhaseEnded:
			msg := "game over"
			if next.EndReason != "" {
				msg = fmt.Sprintf("game over: %s", next.EndReason)
			}
			effects = append(effects, notify(LevelInfo, msg, false))
		}
	}

	return effects
}

func endTimeChanged(a, b *models.Room) bool {
	if a == nil || a.EndTime == nil {
		return b != nil && b.EndTime != nil
	}
	if b == nil || b.EndTime == nil {
		return true
	}
	return *a.EndTime != *b.EndTime
}

func fail(state ViewState, reason string, cancelled bool) ViewState {
	state.Phase = PhaseError
	state.ErrorReason = reason
	state.Cancelled = cancelled
	return state
}

func end(state ViewState, results *models.GameResults, reason string) ViewState {
	state.Phase = PhaseEnded
	if results == nil && state.Room != nil {
		results = state.Room.GameResults
	}
	state.GameResults = results.Clone()
	if reason == "" && results != nil {
		reason = results.Reason
	}
	state.EndReason = reason
	return state
}

// resolve picks the phase implied by a fresh snapshot. introAllowed is only
// true when the status flips to in-progress while the user sits in the lobby.
func resolve(state ViewState, r *models.Room, at time.Time, introAllowed bool) ViewState {
	next := state.withRoom(r, at)

	switch r.Status {
	case models.RoomStatusWaiting:
		if len(r.Players) == 0 {
			return fail(next, "room is empty", true)
		}
		next.Phase = PhaseLobby
	case models.RoomStatusInProgress:
		opponent, ok := resolveOpponent(r, state.UserID)
		next.Opponent = opponent
		if introAllowed && ok {
			next.Phase = PhaseBattleIntro
		} else {
			next.Phase = PhaseInProgress
		}
	case models.RoomStatusCompleted:
		next = end(next, r.GameResults, "")
	case models.RoomStatusCancelled:
		return fail(next, "room was cancelled", true)
	default:
		return fail(next, unexpectedStatus(r.Status), false)
	}

	return next
}

func unexpectedStatus(status models.RoomStatus) string {
	return fmt.Sprintf("unexpected room status %q", status)
}

// rejectSnapshot drops a snapshot whose status cannot follow the current
// phase. The snapshot is kept out of the state and a warning is raised.
func rejectSnapshot(state ViewState, status models.RoomStatus) Transition {
	return Transition{State: state, Effects: []Effect{notify(LevelWarning, unexpectedStatus(status), false)}}
}

func onJoined(state ViewState) Transition {
	if state.Connected {
		return ignored(state)
	}
	next := state
	next.Connected = true
	if state.Phase == PhaseConnecting {
		return finish(state, next, Effect{Type: EffectFetchSnapshot})
	}
	return finish(state, next)
}

func onDisconnected(state ViewState, ev Event) Transition {
	if !state.Connected {
		return ignored(state)
	}
	next := state
	next.Connected = false

	msg := "disconnected from game server"
	if ev.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, ev.Reason)
	}
	return finish(state, next, notify(LevelWarning, msg, false))
}

func onSnapshotLoaded(state ViewState, ev Event) Transition {
	if state.Phase != PhaseConnecting {
		return ignored(state)
	}
	if ev.Room == nil {
		return finish(state, fail(state, "failed to load room: empty snapshot", false))
	}
	return finish(state, resolve(state, ev.Room, ev.At, false))
}

func onRoomEvent(state ViewState, ev Event) Transition {
	if ev.Room == nil {
		return ignored(state)
	}

	switch state.Phase {
	case PhaseLobby:
		if !ev.Room.Status.Known() {
			return rejectSnapshot(state, ev.Room.Status)
		}
		next := resolve(state, ev.Room, ev.At, true)
		if next.Phase == state.Phase && reflect.DeepEqual(state.Room, next.Room) {
			return ignored(state)
		}
		return finish(state, next)

	case PhaseBattleIntro, PhaseInProgress:
		// The start was already observed; late starts and readiness changes
		// are stale.
		if ev.Type == EventGameStart || ev.Type == EventPlayerStatusUpdate {
			return ignored(state)
		}
		if reflect.DeepEqual(state.Room, ev.Room) {
			return ignored(state)
		}

		next := state.withRoom(ev.Room, ev.At)
		switch ev.Room.Status {
		case models.RoomStatusInProgress:
		case models.RoomStatusCompleted:
			next = end(next, ev.Room.GameResults, "")
		case models.RoomStatusCancelled:
			next = fail(next, "room was cancelled", true)
		default:
			// a running match cannot go back to waiting
			return rejectSnapshot(state, ev.Room.Status)
		}
		return finish(state, next)

	default:
		// connecting: the pending snapshot fetch is a superset of anything
		// pushed before it resolves
		return ignored(state)
	}
}

func onReconnected(state ViewState, ev Event) Transition {
	if ev.Room == nil {
		return ignored(state)
	}
	if state.Phase == PhaseInProgress && reflect.DeepEqual(state.Room, ev.Room) {
		return ignored(state)
	}
	if !ev.Room.Status.Known() && state.Phase != PhaseConnecting {
		return rejectSnapshot(state, ev.Room.Status)
	}

	next := resolve(state, ev.Room, ev.At, false)
	next.Connected = true
	return finish(state, next)
}

func onGameEnd(state ViewState, ev Event) Transition {
	if state.Phase == PhaseConnecting {
		return ignored(state)
	}
	next := state
	if ev.Room != nil {
		next = next.withRoom(ev.Room, ev.At)
	}
	return finish(state, end(next, ev.Results, ev.Reason))
}

func onGameError(state ViewState, ev Event) Transition {
	if IsFatalGameError(ev.Message) {
		return finish(state, fail(state, ev.Message, false))
	}

	msg := ev.Message
	if msg == "" {
		msg = "game server reported an error"
	}
	// transient: surfaced but the state machine stays put
	return Transition{State: state, Effects: []Effect{notify(LevelWarning, msg, false)}}
}

func onTick(state ViewState, ev Event) Transition {
	if state.Phase != PhaseInProgress || state.Room == nil || state.Room.EndTime == nil {
		return ignored(state)
	}
	remaining := TimeRemaining(*state.Room.EndTime, ev.At)
	if remaining == state.TimeLeft {
		return ignored(state)
	}
	next := state
	next.TimeLeft = remaining
	return finish(state, next)
}

func onIntroElapsed(state ViewState, ev Event) Transition {
	if state.Phase != PhaseBattleIntro {
		return ignored(state)
	}
	next := state
	next.Phase = PhaseInProgress
	if next.Room != nil && next.Room.EndTime != nil {
		next.TimeLeft = TimeRemaining(*next.Room.EndTime, ev.At)
	}
	return finish(state, next)
}
