package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/codeduel/go/internal/duel/countdown"
	"github.com/mcdev12/codeduel/go/internal/duel/gateway"
	"github.com/mcdev12/codeduel/go/internal/duel/room"
	"github.com/mcdev12/codeduel/go/internal/duel/telemetry"
	"github.com/mcdev12/codeduel/go/internal/models"
)

var (
	ErrClosed         = errors.New("room controller closed")
	ErrAlreadyStarted = errors.New("room controller already started")
)

// RoomFetcher loads the authoritative room snapshot
type RoomFetcher interface {
	GetRoom(ctx context.Context, roomID string) (*models.Room, error)
}

// Transport is the persistent connection to the game server
type Transport interface {
	Open(ctx context.Context, roomID, userID string) (*gateway.Connection, error)
	SetReady() error
	Leave() error
	Close()
}

// TransportFactory builds the transport for one room visit. dispatch must
// receive every connection and push event.
type TransportFactory func(dispatch gateway.Dispatcher) Transport

// Config holds the collaborators and tuning of a Controller
type Config struct {
	RoomID string
	UserID string

	Fetcher      RoomFetcher
	NewTransport TransportFactory

	Clock     clockwork.Clock
	Notifier  Notifier
	Publisher telemetry.Publisher
	Metrics   telemetry.MetricsCollector

	FetchTimeout   time.Duration
	PublishTimeout time.Duration
	InboxSize      int
}

func (c Config) validate() error {
	switch {
	case c.RoomID == "":
		return errors.New("room id is required")
	case c.UserID == "":
		return errors.New("user id is required")
	case c.Fetcher == nil:
		return errors.New("room fetcher is required")
	case c.NewTransport == nil:
		return errors.New("transport factory is required")
	}
	return nil
}

// Controller owns one room visit. Every input (push events, connection
// changes, clock ticks, fetch results) is serialized through a single event
// loop that feeds room.Reduce and runs the effects it returns.
type Controller struct {
	roomID string
	userID string

	clock     clockwork.Clock
	fetcher   RoomFetcher
	transport Transport
	countdown *countdown.Clock
	notifier  Notifier
	publisher telemetry.Publisher
	metrics   telemetry.MetricsCollector

	fetchTimeout   time.Duration
	publishTimeout time.Duration

	inbox   chan room.Event
	done    chan struct{}
	stopped chan struct{}

	lifecycleMu sync.Mutex
	started     bool
	closed      bool

	stateMu sync.RWMutex
	state   room.ViewState

	subMu sync.Mutex
	subs  map[chan room.ViewState]struct{}

	// owned by the event loop
	introTimer  clockwork.Timer
	fetchCancel context.CancelFunc
}

// New creates a controller in the connecting phase. Nothing happens until
// Start is called.
func New(cfg Config) (*Controller, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid controller config: %w", err)
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = LogNotifier{}
	}
	if cfg.Publisher == nil {
		cfg.Publisher = telemetry.NoOpPublisher{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = &telemetry.NoOpMetricsCollector{}
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 2 * time.Second
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 64
	}

	c := &Controller{
		roomID:         cfg.RoomID,
		userID:         cfg.UserID,
		clock:          cfg.Clock,
		fetcher:        cfg.Fetcher,
		notifier:       cfg.Notifier,
		publisher:      cfg.Publisher,
		metrics:        cfg.Metrics,
		fetchTimeout:   cfg.FetchTimeout,
		publishTimeout: cfg.PublishTimeout,
		inbox:          make(chan room.Event, cfg.InboxSize),
		done:           make(chan struct{}),
		stopped:        make(chan struct{}),
		state:          room.NewViewState(cfg.UserID),
		subs:           make(map[chan room.ViewState]struct{}),
	}
	c.countdown = countdown.New(c.clock, func(t countdown.Tick) {
		c.post(room.Event{Type: room.EventTick, At: t.At})
	})
	c.transport = cfg.NewTransport(c.post)

	return c, nil
}

// Start runs the event loop and opens the connection. The context bounds
// the dial only; the visit lasts until Close.
func (c *Controller) Start(ctx context.Context) error {
	c.lifecycleMu.Lock()
	if c.closed {
		c.lifecycleMu.Unlock()
		return ErrClosed
	}
	if c.started {
		c.lifecycleMu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.lifecycleMu.Unlock()

	log.Info().
		Str("room_id", c.roomID).
		Str("user_id", c.userID).
		Msg("starting room controller")

	go c.run()
	go func() {
		// Failures arrive as CONNECT_ERROR through the dispatcher.
		if _, err := c.transport.Open(ctx, c.roomID, c.userID); err != nil && !errors.Is(err, gateway.ErrClosed) {
			log.Debug().Err(err).Str("room_id", c.roomID).Msg("open returned error")
		}
	}()
	return nil
}

// State returns the current view state. The returned value must be treated
// as read-only.
func (c *Controller) State() room.ViewState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// Subscribe returns a channel that receives the current state and then every
// applied change. Slow readers only see the latest state. The channel is
// closed when the controller closes or cancel is called.
func (c *Controller) Subscribe() (<-chan room.ViewState, func()) {
	ch := make(chan room.ViewState, 1)

	c.subMu.Lock()
	if c.subs == nil {
		c.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	c.subs[ch] = struct{}{}
	ch <- c.State()
	c.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()
			if _, ok := c.subs[ch]; ok {
				delete(c.subs, ch)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// MarkReady confirms readiness in a full lobby. Requests the server would
// reject are refused locally with a room validation error and never sent.
func (c *Controller) MarkReady() error {
	if c.isClosed() {
		c.notify(room.Notice{Level: room.LevelWarning, Message: ErrClosed.Error()})
		return ErrClosed
	}
	if err := room.CanMarkReady(c.State()); err != nil {
		c.notify(room.Notice{Level: room.LevelWarning, Message: err.Error()})
		return err
	}
	if err := c.transport.SetReady(); err != nil {
		c.notify(room.Notice{Level: room.LevelError, Message: fmt.Sprintf("could not mark ready: %s", err)})
		return fmt.Errorf("mark ready: %w", err)
	}

	log.Info().Str("room_id", c.roomID).Str("user_id", c.userID).Msg("marked ready")
	return nil
}

// LeaveRoom announces the departure and tears the visit down.
func (c *Controller) LeaveRoom() error {
	if c.isClosed() {
		c.notify(room.Notice{Level: room.LevelWarning, Message: ErrClosed.Error()})
		return ErrClosed
	}

	err := c.transport.Leave()
	if err != nil {
		log.Warn().Err(err).Str("room_id", c.roomID).Msg("leave intent not sent")
		err = fmt.Errorf("leave room: %w", err)
	}
	c.Close()
	return err
}

// Close disarms every clock, cancels an in-flight fetch and closes the
// connection. It is idempotent. It must not be called from a Notifier.
func (c *Controller) Close() {
	c.lifecycleMu.Lock()
	if c.closed {
		c.lifecycleMu.Unlock()
		return
	}
	c.closed = true
	started := c.started
	close(c.done)
	c.lifecycleMu.Unlock()

	if started {
		<-c.stopped
	} else {
		c.teardown()
	}
	c.transport.Close()
	c.countdown.Disarm()

	c.subMu.Lock()
	for ch := range c.subs {
		close(ch)
	}
	c.subs = nil
	c.subMu.Unlock()

	log.Info().Str("room_id", c.roomID).Msg("room controller closed")
}

// Done is closed once Close has been called
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) isClosed() bool {
	c.lifecycleMu.Lock()
	defer c.lifecycleMu.Unlock()
	return c.closed
}

// post hands an event to the loop. Events posted after Close are dropped.
func (c *Controller) post(ev room.Event) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.inbox <- ev:
	case <-c.done:
	}
}

func (c *Controller) run() {
	defer close(c.stopped)
	for {
		select {
		case <-c.done:
			c.teardown()
			return
		case ev := <-c.inbox:
			select {
			case <-c.done:
				// late input after close
				continue
			default:
			}
			c.apply(ev)
		}
	}
}

func (c *Controller) teardown() {
	c.stopIntro()
	if c.fetchCancel != nil {
		c.fetchCancel()
		c.fetchCancel = nil
	}
	c.countdown.Disarm()
}

func (c *Controller) apply(ev room.Event) {
	prev := c.State()
	tr := room.Reduce(prev, ev)
	c.metrics.RecordEvent(string(ev.Type), tr.Applied)

	if tr.Applied {
		c.setState(tr.State)
		if tr.State.Phase != prev.Phase {
			c.onPhaseChange(prev, tr.State, ev)
		}
	} else if ev.Type != room.EventTick {
		log.Debug().
			Str("room_id", c.roomID).
			Str("event", string(ev.Type)).
			Str("phase", prev.Phase.String()).
			Msg("event ignored")
	}

	for _, eff := range tr.Effects {
		c.runEffect(eff)
	}
}

func (c *Controller) setState(s room.ViewState) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()

	c.subMu.Lock()
	defer c.subMu.Unlock()
	for ch := range c.subs {
		select {
		case ch <- s:
		default:
			// replace the unread state with the newer one
			select {
			case <-ch:
			default:
			}
			ch <- s
		}
	}
}

func (c *Controller) onPhaseChange(prev, next room.ViewState, ev room.Event) {
	c.metrics.RecordTransition(prev.Phase.String(), next.Phase.String())

	log.Info().
		Str("room_id", c.roomID).
		Str("user_id", c.userID).
		Str("from", prev.Phase.String()).
		Str("phase", next.Phase.String()).
		Str("event", string(ev.Type)).
		Msg("phase changed")

	reason := next.ErrorReason
	if next.Phase == room.PhaseEnded {
		reason = next.EndReason
	}
	event := telemetry.PhaseEvent{
		ID:            uuid.New(),
		RoomID:        c.roomID,
		UserID:        c.userID,
		Phase:         next.Phase.String(),
		PreviousPhase: prev.Phase.String(),
		Trigger:       string(ev.Type),
		TimeLeft:      next.TimeLeft,
		Reason:        reason,
		At:            ev.At,
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.publishTimeout)
	defer cancel()
	if err := c.publisher.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("room_id", c.roomID).Msg("failed to publish phase change")
	}
}

func (c *Controller) runEffect(eff room.Effect) {
	switch eff.Type {
	case room.EffectFetchSnapshot:
		c.fetchSnapshot()
	case room.EffectArmCountdown:
		c.countdown.Arm(eff.EndTime)
	case room.EffectDisarmCountdown:
		c.countdown.Disarm()
	case room.EffectStartIntro:
		c.startIntro(eff.Duration)
	case room.EffectCancelIntro:
		c.stopIntro()
	case room.EffectNotify:
		c.notify(eff.Notice)
	default:
		log.Warn().Str("effect", string(eff.Type)).Msg("unknown effect")
	}
}

func (c *Controller) fetchSnapshot() {
	if c.fetchCancel != nil {
		c.fetchCancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
	c.fetchCancel = cancel

	go func() {
		defer cancel()
		r, err := c.fetcher.GetRoom(ctx, c.roomID)
		if err != nil {
			log.Error().Err(err).Str("room_id", c.roomID).Msg("failed to load room snapshot")
			c.post(room.Event{Type: room.EventSnapshotFailed, At: c.clock.Now(), Reason: err.Error()})
			return
		}
		c.post(room.Event{Type: room.EventSnapshotLoaded, At: c.clock.Now(), Room: r})
	}()
}

func (c *Controller) startIntro(d time.Duration) {
	c.stopIntro()
	c.introTimer = c.clock.AfterFunc(d, func() {
		c.post(room.Event{Type: room.EventIntroElapsed, At: c.clock.Now()})
	})
}

func (c *Controller) stopIntro() {
	if c.introTimer != nil {
		c.introTimer.Stop()
		c.introTimer = nil
	}
}

func (c *Controller) notify(n room.Notice) {
	c.notifier.Notify(c.roomID, n)
}
