package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/mcdev12/codeduel/go/internal/duel/events"
	"github.com/mcdev12/codeduel/go/internal/duel/room"
)

var (
	ErrClosed         = errors.New("connection manager closed")
	ErrNotConnected   = errors.New("not connected to game server")
	ErrThrottled      = errors.New("outbound intent throttled")
	ErrSendBufferFull = errors.New("send buffer full")
)

// Dispatcher receives every connection lifecycle event and inbound push
// event. It is called from the connection's goroutines.
type Dispatcher func(room.Event)

// ConnectionManager owns the single websocket connection of one room visit.
// The connection is dialed once, reused for every intent and released on
// Close. It never reconnects on its own.
type ConnectionManager struct {
	config   ConnectionConfig
	dialer   *websocket.Dialer
	clock    clockwork.Clock
	dispatch Dispatcher
	limiter  *rate.Limiter

	// openMu serializes Open so that concurrent callers share one dial
	openMu sync.Mutex

	mu         sync.Mutex
	conn       *Connection
	openErr    error
	closed     bool
	cancelDial context.CancelFunc

	closeOnce sync.Once
}

// Connection is the client side of a websocket connection to the game server
type Connection struct {
	ID      string
	RoomID  string
	UserID  string
	Conn    *websocket.Conn
	Manager *ConnectionManager

	ConnectedAt time.Time

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	// intentional is set when the local side tears the connection down, so
	// the read pump does not report it as a disconnect.
	intentional atomic.Bool
	wg          sync.WaitGroup
}

// ConnectionConfig holds configuration for the game server connection
type ConnectionConfig struct {
	URL       string
	AuthToken string

	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PingInterval     time.Duration
	MaxMessageSize   int64
	ReadBufferSize   int
	WriteBufferSize  int
	SendBufferSize   int

	// Outbound intents are throttled to IntentRate per second with bursts
	// of IntentBurst.
	IntentRate  rate.Limit
	IntentBurst int
}

// DefaultConnectionConfig returns default websocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		URL:              "ws://localhost:5000/game",
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		ReadTimeout:      60 * time.Second,
		PingInterval:     30 * time.Second,
		MaxMessageSize:   64 * 1024, // rooms carry full player lists and results
		ReadBufferSize:   4096,
		WriteBufferSize:  1024,
		SendBufferSize:   32,
		IntentRate:       5,
		IntentBurst:      3,
	}
}

// withDefaults fills zero durations and sizes from DefaultConnectionConfig
func (c ConnectionConfig) withDefaults() ConnectionConfig {
	def := DefaultConnectionConfig()
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = def.HandshakeTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = def.SendBufferSize
	}
	if c.IntentRate <= 0 {
		c.IntentRate = def.IntentRate
	}
	if c.IntentBurst <= 0 {
		c.IntentBurst = def.IntentBurst
	}
	return c
}

// NewConnectionManager creates a connection manager. Nothing is dialed until
// Open is called.
func NewConnectionManager(config ConnectionConfig, clock clockwork.Clock, dispatch Dispatcher) *ConnectionManager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if dispatch == nil {
		dispatch = func(room.Event) {}
	}
	config = config.withDefaults()

	return &ConnectionManager{
		config: config,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: config.HandshakeTimeout,
			ReadBufferSize:   config.ReadBufferSize,
			WriteBufferSize:  config.WriteBufferSize,
		},
		clock:    clock,
		dispatch: dispatch,
		limiter:  rate.NewLimiter(config.IntentRate, config.IntentBurst),
	}
}

// Open connects to the game server for roomID and announces the user with
// joinGameRoom. It is idempotent: later calls return the same connection, or
// the first failure. A failed dial is reported once as CONNECT_ERROR and
// never retried.
func (cm *ConnectionManager) Open(ctx context.Context, roomID, userID string) (*Connection, error) {
	cm.openMu.Lock()
	defer cm.openMu.Unlock()

	cm.mu.Lock()
	if cm.closed {
		cm.mu.Unlock()
		return nil, ErrClosed
	}
	if cm.conn != nil || cm.openErr != nil {
		conn, err := cm.conn, cm.openErr
		cm.mu.Unlock()
		return conn, err
	}
	dialCtx, cancel := context.WithCancel(ctx)
	cm.cancelDial = cancel
	cm.mu.Unlock()
	defer cancel()

	target, err := cm.endpoint(roomID, userID)
	if err != nil {
		return nil, cm.failOpen(err)
	}

	header := http.Header{}
	if cm.config.AuthToken != "" {
		header.Set("Authorization", "Bearer "+cm.config.AuthToken)
	}

	wsConn, resp, err := cm.dialer.DialContext(dialCtx, target, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			err = fmt.Errorf("%w (status %d)", err, resp.StatusCode)
		}
		return nil, cm.failOpen(err)
	}

	conn := &Connection{
		ID:          uuid.New().String(),
		RoomID:      roomID,
		UserID:      userID,
		Conn:        wsConn,
		Manager:     cm,
		ConnectedAt: cm.clock.Now(),
		send:        make(chan []byte, cm.config.SendBufferSize),
		done:        make(chan struct{}),
	}

	cm.mu.Lock()
	if cm.closed {
		cm.mu.Unlock()
		wsConn.Close()
		return nil, ErrClosed
	}
	cm.conn = conn
	cm.cancelDial = nil
	cm.mu.Unlock()

	// Queue the join before anything else can be written.
	if err := conn.enqueue(events.JoinGameRoom, events.RoomIntent{RoomID: roomID, UserID: userID}); err != nil {
		log.Error().Err(err).Str("connection_id", conn.ID).Msg("failed to queue join announcement")
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("room_id", roomID).
		Str("user_id", userID).
		Msg("connected to game server")

	// JOINED is reported before the read pump starts so it always precedes
	// the first push event.
	cm.dispatch(room.Event{Type: room.EventJoined, At: cm.clock.Now()})

	conn.wg.Add(2)
	go conn.writePump()
	go conn.readPump()

	return conn, nil
}

func (cm *ConnectionManager) failOpen(err error) error {
	err = fmt.Errorf("connect to game server: %w", err)

	cm.mu.Lock()
	cm.openErr = err
	cm.cancelDial = nil
	closed := cm.closed
	cm.mu.Unlock()

	if closed {
		return ErrClosed
	}

	log.Error().Err(err).Msg("failed to connect to game server")
	cm.dispatch(room.Event{Type: room.EventConnectError, At: cm.clock.Now(), Reason: err.Error()})
	return err
}

func (cm *ConnectionManager) endpoint(roomID, userID string) (string, error) {
	u, err := url.Parse(cm.config.URL)
	if err != nil {
		return "", fmt.Errorf("parse websocket url: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported websocket scheme %q", u.Scheme)
	}
	q := u.Query()
	q.Set("roomId", roomID)
	q.Set("userId", userID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Emit sends a fire-and-forget intent on the open connection.
func (cm *ConnectionManager) Emit(name events.Name, payload interface{}) error {
	cm.mu.Lock()
	conn, closed := cm.conn, cm.closed
	cm.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if conn == nil {
		return ErrNotConnected
	}
	if !cm.limiter.Allow() {
		log.Warn().
			Str("connection_id", conn.ID).
			Str("event", string(name)).
			Msg("dropping throttled intent")
		return ErrThrottled
	}
	return conn.enqueue(name, payload)
}

// SetReady sends playerReady for the open connection.
func (cm *ConnectionManager) SetReady() error {
	return cm.emitIntent(events.PlayerReady)
}

// Leave sends leaveGameRoom for the open connection.
func (cm *ConnectionManager) Leave() error {
	return cm.emitIntent(events.LeaveGameRoom)
}

func (cm *ConnectionManager) emitIntent(name events.Name) error {
	cm.mu.Lock()
	conn := cm.conn
	cm.mu.Unlock()
	if conn == nil {
		return cm.Emit(name, nil)
	}
	return cm.Emit(name, events.RoomIntent{RoomID: conn.RoomID, UserID: conn.UserID})
}

// Connected reports whether a connection is currently open
func (cm *ConnectionManager) Connected() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.conn == nil {
		return false
	}
	select {
	case <-cm.conn.done:
		return false
	default:
		return true
	}
}

// Close releases the connection and aborts a dial in progress. It is
// idempotent and waits for the connection goroutines to exit. Closing does
// not produce a DISCONNECTED event.
func (cm *ConnectionManager) Close() {
	cm.closeOnce.Do(func() {
		cm.mu.Lock()
		cm.closed = true
		conn := cm.conn
		if cm.cancelDial != nil {
			cm.cancelDial()
			cm.cancelDial = nil
		}
		cm.mu.Unlock()

		if conn != nil {
			conn.intentional.Store(true)
			conn.shutdown()
			conn.wg.Wait()
			log.Info().
				Str("connection_id", conn.ID).
				Str("room_id", conn.RoomID).
				Msg("connection closed")
		}
	})
}

func (c *Connection) enqueue(name events.Name, payload interface{}) error {
	data, err := NewFrame(name, payload)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.send <- data:
		log.Debug().
			Str("connection_id", c.ID).
			Str("event", string(name)).
			Msg("intent queued")
		return nil
	case <-c.done:
		return ErrClosed
	default:
		log.Warn().
			Str("connection_id", c.ID).
			Str("event", string(name)).
			Msg("connection send buffer full, dropping intent")
		return ErrSendBufferFull
	}
}

func (c *Connection) shutdown() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// writePump handles sending frames and keepalive pings to the server
func (c *Connection) writePump() {
	cfg := c.Manager.config
	ticker := c.Manager.clock.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		c.wg.Done()
	}()

	for {
		select {
		case <-c.done:
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if c.flush() {
				c.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			}
			return

		case message := <-c.send:
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				c.shutdown()
				return
			}

		case <-ticker.Chan():
			c.Conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				c.shutdown()
				return
			}
		}
	}
}

// flush writes the frames still queued at close, under the deadline the
// caller has set. It reports false if a write failed.
func (c *Connection) flush() bool {
	for {
		select {
		case message := <-c.send:
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Warn().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to flush queued frame")
				return false
			}
		default:
			return true
		}
	}
}

// readPump decodes inbound frames and dispatches them until the connection
// drops.
func (c *Connection) readPump() {
	cfg := c.Manager.config
	defer func() {
		c.shutdown()
		c.wg.Done()
	}()

	c.Conn.SetReadLimit(cfg.MaxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if c.intentional.Load() {
				return
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			log.Warn().
				Str("connection_id", c.ID).
				Str("room_id", c.RoomID).
				Msg("disconnected from game server")
			c.Manager.dispatch(room.Event{
				Type:   room.EventDisconnected,
				At:     c.Manager.clock.Now(),
				Reason: disconnectReason(err),
			})
			return
		}

		c.handleServerMessage(message)
		c.Conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	}
}

func (c *Connection) handleServerMessage(message []byte) {
	var frame Frame
	if err := json.Unmarshal(message, &frame); err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", c.ID).
			Msg("discarding malformed frame")
		return
	}

	ev, ok, err := ToRoomEvent(&frame, c.Manager.clock.Now())
	if err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", c.ID).
			Str("event", string(frame.Event)).
			Msg("discarding undecodable event")
		return
	}
	if !ok {
		log.Debug().
			Str("connection_id", c.ID).
			Str("event", string(frame.Event)).
			Msg("ignoring unknown event")
		return
	}

	log.Debug().
		Str("connection_id", c.ID).
		Str("event", string(frame.Event)).
		Msg("received server event")
	c.Manager.dispatch(ev)
}

func disconnectReason(err error) string {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		if closeErr.Text != "" {
			return closeErr.Text
		}
		return fmt.Sprintf("close %d", closeErr.Code)
	}
	return err.Error()
}
