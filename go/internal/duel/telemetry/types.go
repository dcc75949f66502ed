package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// PhaseEvent records one applied phase change of a room view
type PhaseEvent struct {
	ID            uuid.UUID `json:"eventId"`
	RoomID        string    `json:"roomId"`
	UserID        string    `json:"userId"`
	Phase         string    `json:"phase"`
	PreviousPhase string    `json:"previousPhase"`
	Trigger       string    `json:"trigger"`
	TimeLeft      int       `json:"timeLeft"`
	Reason        string    `json:"reason,omitempty"`
	At            time.Time `json:"timestamp"`
}

// Publisher ships phase events somewhere outside the process
type Publisher interface {
	Publish(ctx context.Context, event PhaseEvent) error
	Close() error
}
