package countdown

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect() (chan Tick, func(Tick)) {
	ch := make(chan Tick, 64)
	return ch, func(t Tick) { ch <- t }
}

func next(t *testing.T, ch <-chan Tick) Tick {
	t.Helper()
	select {
	case tick := <-ch:
		return tick
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for countdown tick")
		return Tick{}
	}
}

func assertSilent(t *testing.T, ch <-chan Tick) {
	t.Helper()
	select {
	case tick := <-ch:
		t.Fatalf("unexpected tick: %+v", tick)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRemaining(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)

	assert.Equal(t, 600, Remaining(now.Add(10*time.Minute), now))
	assert.Equal(t, 0, Remaining(now.Add(999*time.Millisecond), now))
	assert.Equal(t, 1, Remaining(now.Add(1999*time.Millisecond), now))
	assert.Equal(t, 0, Remaining(now, now))
	assert.Equal(t, 0, Remaining(now.Add(-time.Hour), now))
}

func TestArmReportsImmediatelyThenEverySecond(t *testing.T) {
	fc := clockwork.NewFakeClock()
	ticks, report := collect()
	c := New(fc, report)

	end := fc.Now().Add(3 * time.Second)
	c.Arm(end)
	require.True(t, c.Armed())

	assert.Equal(t, 3, next(t, ticks).Remaining)

	var got []int
	for i := 0; i < 3; i++ {
		fc.Advance(time.Second)
		got = append(got, next(t, ticks).Remaining)
	}
	assert.Equal(t, []int{2, 1, 0}, got)

	require.Eventually(t, func() bool { return !c.Armed() }, time.Second, 5*time.Millisecond)

	fc.Advance(time.Second)
	assertSilent(t, ticks)
}

func TestArmPastEndTimeReportsZeroOnce(t *testing.T) {
	fc := clockwork.NewFakeClock()
	ticks, report := collect()
	c := New(fc, report)

	c.Arm(fc.Now().Add(-5 * time.Second))

	tick := next(t, ticks)
	assert.Equal(t, 0, tick.Remaining)
	require.Eventually(t, func() bool { return !c.Armed() }, time.Second, 5*time.Millisecond)

	fc.Advance(time.Second)
	assertSilent(t, ticks)
}

func TestRearmReplacesRunningCountdown(t *testing.T) {
	fc := clockwork.NewFakeClock()
	ticks, report := collect()
	c := New(fc, report)

	first := fc.Now().Add(10 * time.Second)
	c.Arm(first)
	assert.Equal(t, 10, next(t, ticks).Remaining)

	second := fc.Now().Add(60 * time.Second)
	c.Arm(second)
	tick := next(t, ticks)
	assert.Equal(t, second, tick.EndTime)
	assert.Equal(t, 60, tick.Remaining)

	fc.Advance(time.Second)
	tick = next(t, ticks)
	assert.Equal(t, second, tick.EndTime)
	assert.Equal(t, 59, tick.Remaining)

	assertSilent(t, ticks)
}

func TestDisarmIsIdempotent(t *testing.T) {
	fc := clockwork.NewFakeClock()
	ticks, report := collect()
	c := New(fc, report)

	c.Disarm()
	assert.False(t, c.Armed())

	c.Arm(fc.Now().Add(30 * time.Second))
	next(t, ticks)

	c.Disarm()
	c.Disarm()
	assert.False(t, c.Armed())

	fc.Advance(5 * time.Second)
	assertSilent(t, ticks)
}

func TestRemainingNeverIncreases(t *testing.T) {
	fc := clockwork.NewFakeClock()
	ticks, report := collect()
	c := New(fc, report)
	defer c.Disarm()

	c.Arm(fc.Now().Add(5*time.Second + 500*time.Millisecond))

	prev := next(t, ticks).Remaining
	for i := 0; i < 5; i++ {
		fc.Advance(time.Second)
		cur := next(t, ticks).Remaining
		assert.LessOrEqual(t, cur, prev)
		prev = cur
	}
	assert.Equal(t, 0, prev)
}
