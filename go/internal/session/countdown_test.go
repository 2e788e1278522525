package session

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countdownHarness serializes test calls and ticks the way the loop does.
type countdownHarness struct {
	mu         sync.Mutex
	clock      fakeClock
	countdowns *Countdowns
	member     *recorder
	gameID     uuid.UUID
}

func newCountdownHarness(t *testing.T) *countdownHarness {
	t.Helper()
	h := &countdownHarness{
		clock:  clockwork.NewFakeClock(),
		member: &recorder{},
		gameID: uuid.New(),
	}
	metrics := NewMetrics(nil)
	registry := NewRegistry(h.clock)
	rooms := NewRooms(registry, metrics)
	registry.Connect("c1", h.member)
	rooms.Join("c1", h.gameID)
	h.countdowns = NewCountdowns(h.clock, time.Second, rooms, metrics, h.schedule)
	t.Cleanup(func() { h.do(h.countdowns.StopAll) })
	return h
}

func (h *countdownHarness) schedule(task func()) bool {
	h.do(task)
	return true
}

func (h *countdownHarness) do(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn()
}

func (h *countdownHarness) start(d time.Duration) {
	h.do(func() { h.countdowns.Start(h.gameID, d) })
}

// advance moves the clock by one second and waits for the resulting frame.
func (h *countdownHarness) advance(t *testing.T) Envelope {
	t.Helper()
	before := h.member.len()
	h.clock.Advance(time.Second)
	require.Eventually(t, func() bool { return h.member.len() > before }, time.Second, time.Millisecond)
	return h.member.last()
}

func TestCountdowns_TicksThenEnds(t *testing.T) {
	h := newCountdownHarness(t)
	h.start(3 * time.Second)

	start := h.member.last()
	require.Equal(t, EventCountdownStart, start.Event)
	startPayload := start.Data.(CountdownStartPayload)
	assert.Equal(t, int64(3000), startPayload.DurationMs)
	assert.Equal(t, startPayload.StartedAt.Add(3*time.Second), startPayload.EndsAt)

	tick := h.advance(t)
	require.Equal(t, EventCountdownTick, tick.Event)
	assert.Equal(t, CountdownTickPayload{GameID: h.gameID, SecondsRemaining: 2, RemainingMs: 2000}, tick.Data)

	tick = h.advance(t)
	require.Equal(t, EventCountdownTick, tick.Event)
	assert.Equal(t, int64(1), tick.Data.(CountdownTickPayload).SecondsRemaining)

	end := h.advance(t)
	require.Equal(t, EventCountdownEnd, end.Event)
	assert.Equal(t, h.gameID, end.Data.(CountdownEndPayload).GameID)

	h.do(func() {
		_, active := h.countdowns.Active(h.gameID)
		assert.False(t, active)
	})

	h.clock.Advance(5 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []EventName{EventCountdownStart, EventCountdownTick, EventCountdownTick, EventCountdownEnd},
		h.member.events(), "nothing follows the end")
}

func TestCountdowns_TicksAreMonotonic(t *testing.T) {
	h := newCountdownHarness(t)
	h.start(5 * time.Second)

	last := int64(5000)
	for i := 0; i < 4; i++ {
		frame := h.advance(t)
		require.Equal(t, EventCountdownTick, frame.Event)
		remaining := frame.Data.(CountdownTickPayload).RemainingMs
		assert.Less(t, remaining, last)
		last = remaining
	}
	assert.Equal(t, EventCountdownEnd, h.advance(t).Event)
}

func TestCountdowns_ShorterThanInterval(t *testing.T) {
	h := newCountdownHarness(t)
	h.start(400 * time.Millisecond)

	frame := h.advance(t)
	assert.Equal(t, EventCountdownEnd, frame.Event, "terminal event arrives within one interval of the deadline")
}

func TestCountdowns_RestartReplacesTimer(t *testing.T) {
	h := newCountdownHarness(t)
	h.start(10 * time.Second)
	h.advance(t)

	h.start(5 * time.Second)
	h.do(func() { assert.Equal(t, 1, h.countdowns.Len()) })

	before := h.member.len()
	tick := h.advance(t)
	require.Equal(t, EventCountdownTick, tick.Event)
	assert.Equal(t, int64(4000), tick.Data.(CountdownTickPayload).RemainingMs)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before+1, h.member.len(), "the replaced timer must not tick")
}

func TestCountdowns_StopIsSilent(t *testing.T) {
	h := newCountdownHarness(t)
	h.start(3 * time.Second)

	var stopped bool
	h.do(func() { stopped = h.countdowns.Stop(h.gameID) })
	assert.True(t, stopped)

	h.do(func() { stopped = h.countdowns.Stop(h.gameID) })
	assert.False(t, stopped, "stop without a timer is a no-op")

	h.clock.Advance(5 * time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []EventName{EventCountdownStart}, h.member.events())
}

func TestCountdowns_DiscardsTickFromCancelledHandle(t *testing.T) {
	h := newCountdownHarness(t)
	h.start(3 * time.Second)

	var stale *countdownTimer
	h.do(func() {
		stale = h.countdowns.active[h.gameID]
		h.countdowns.Stop(h.gameID)
		h.countdowns.Start(h.gameID, 3*time.Second)
		h.countdowns.tick(stale)
	})

	assert.Equal(t, []EventName{EventCountdownStart, EventCountdownStart}, h.member.events())
}

func TestSecondsRemaining(t *testing.T) {
	tests := []struct {
		remaining time.Duration
		want      int64
	}{
		{0, 0},
		{-time.Second, 0},
		{time.Millisecond, 1},
		{999 * time.Millisecond, 1},
		{time.Second, 1},
		{1001 * time.Millisecond, 2},
		{29500 * time.Millisecond, 30},
	}
	for _, tt := range tests {
		t.Run(tt.remaining.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, secondsRemaining(tt.remaining))
		})
	}
}
