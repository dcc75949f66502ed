package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event PhaseEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockPublisher) Close() error {
	return m.Called().Error(0)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "duel.client.R1.inProgress", Subject("duel.client", "R1", "inProgress"))
	assert.Equal(t, "duel.client.a_b_c.lobby", Subject("duel.client", "a.b*c", "lobby"))
	assert.Equal(t, "duel.client._.error", Subject("duel.client", "", "error"))
}

func TestMetricPublisherRecordsOutcome(t *testing.T) {
	ev := PhaseEvent{ID: uuid.New(), RoomID: "R1", Phase: "lobby", At: time.Now()}

	inner := &mockPublisher{}
	inner.On("Publish", mock.Anything, ev).Return(nil).Once()
	inner.On("Publish", mock.Anything, ev).Return(errors.New("broker down")).Once()
	inner.On("Close").Return(nil)

	counters := NewCounters()
	p := NewMetricPublisher(inner, counters)

	require.NoError(t, p.Publish(context.Background(), ev))
	require.Error(t, p.Publish(context.Background(), ev))
	require.NoError(t, p.Close())

	snap := counters.Snapshot()
	assert.Equal(t, 1, snap.Published)
	assert.Equal(t, 1, snap.PublishFailure)
	inner.AssertExpectations(t)
}

func TestCounters(t *testing.T) {
	c := NewCounters()
	c.RecordEvent("roomUpdate", true)
	c.RecordEvent("roomUpdate", true)
	c.RecordEvent("gameStart", false)
	c.RecordTransition("lobby", "battleIntro")

	snap := c.Snapshot()
	assert.Equal(t, map[string]int{"roomUpdate": 2}, snap.EventsApplied)
	assert.Equal(t, map[string]int{"gameStart": 1}, snap.EventsIgnored)
	assert.Equal(t, map[string]int{"lobby->battleIntro": 1}, snap.Transitions)

	// snapshots are copies
	snap.EventsApplied["roomUpdate"] = 99
	assert.Equal(t, 2, c.Snapshot().EventsApplied["roomUpdate"])
}

func TestLogAndNoOpPublishers(t *testing.T) {
	ev := PhaseEvent{ID: uuid.New(), RoomID: "R1", Phase: "ended"}
	for _, p := range []Publisher{NewLogPublisher(), NoOpPublisher{}} {
		assert.NoError(t, p.Publish(context.Background(), ev))
		assert.NoError(t, p.Close())
	}
}

func TestNewNATSPublisherFailsWithoutServer(t *testing.T) {
	cfg := DefaultNATSConfig()
	cfg.URL = "nats://127.0.0.1:1"
	cfg.MaxReconnects = 0

	_, err := NewNATSPublisher(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to NATS")
}
