package countdown

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// DefaultInterval is the tick cadence while a match is running
const DefaultInterval = time.Second

// Tick is one countdown report.
type Tick struct {
	EndTime   time.Time
	At        time.Time
	Remaining int
}

// Clock is a local ticker derived from a server-supplied absolute end time.
// Its cadence is independent of how often the server pushes updates; the
// server remains the authority on when the round actually ends.
type Clock struct {
	clock    clockwork.Clock
	interval time.Duration
	report   func(Tick)

	mu     sync.Mutex
	ticker clockwork.Ticker
	stopCh chan struct{}
}

// New creates a disarmed countdown. report is called from the countdown's
// own goroutine and must not block for long.
func New(clock clockwork.Clock, report func(Tick)) *Clock {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Clock{
		clock:    clock,
		interval: DefaultInterval,
		report:   report,
	}
}

// Remaining computes max(0, floor((endTime - now) / 1s)).
func Remaining(endTime, now time.Time) int {
	diff := endTime.UnixMilli() - now.UnixMilli()
	if diff <= 0 {
		return 0
	}
	return int(diff / 1000)
}

// Arm starts ticking towards endTime, replacing any running countdown. The
// current remaining time is reported immediately, then once per interval
// until a tick reports zero.
func (c *Clock) Arm(endTime time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.disarmLocked()

	ticker := c.clock.NewTicker(c.interval)
	stopCh := make(chan struct{})
	c.ticker = ticker
	c.stopCh = stopCh

	go c.run(endTime, ticker, stopCh)

	log.Debug().
		Time("end_time", endTime).
		Dur("interval", c.interval).
		Msg("countdown armed")
}

// Disarm cancels the running countdown, if any. It is safe to call repeatedly.
func (c *Clock) Disarm() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disarmLocked() {
		log.Debug().Msg("countdown disarmed")
	}
}

// Armed reports whether a countdown is currently ticking
func (c *Clock) Armed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopCh != nil
}

func (c *Clock) disarmLocked() bool {
	if c.stopCh == nil {
		return false
	}
	// Stop the ticker here rather than in run so that no further tick can
	// fire once Disarm returns.
	c.ticker.Stop()
	close(c.stopCh)
	c.ticker = nil
	c.stopCh = nil
	return true
}

func (c *Clock) run(endTime time.Time, ticker clockwork.Ticker, stopCh chan struct{}) {
	if c.emit(endTime, c.clock.Now(), stopCh) {
		c.expire(stopCh)
		return
	}

	for {
		select {
		case <-stopCh:
			return
		case now := <-ticker.Chan():
			if c.emit(endTime, now, stopCh) {
				c.expire(stopCh)
				return
			}
		}
	}
}

// emit reports the remaining time and returns true once it has reached zero.
func (c *Clock) emit(endTime, now time.Time, stopCh chan struct{}) bool {
	select {
	case <-stopCh:
		return false
	default:
	}

	remaining := Remaining(endTime, now)
	if c.report != nil {
		c.report(Tick{EndTime: endTime, At: now, Remaining: remaining})
	}
	return remaining == 0
}

// expire releases the ticker after the zero tick, unless a newer Arm or a
// Disarm already replaced it.
func (c *Clock) expire(stopCh chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopCh == stopCh {
		c.disarmLocked()
		log.Debug().Msg("countdown reached zero")
	}
}
