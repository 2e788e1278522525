package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Clock is the time source used by the coordinator.
// In production, use clockwork.NewRealClock(). In tests, a fake clock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) clockwork.Ticker
}

// CountdownState describes a running countdown.
type CountdownState struct {
	GameID    uuid.UUID
	StartedAt time.Time
	Duration  time.Duration
	EndsAt    time.Time
}

// Remaining is the time left at now, never negative.
func (s CountdownState) Remaining(now time.Time) time.Duration {
	if d := s.EndsAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

type countdownTimer struct {
	state  CountdownState
	ticker clockwork.Ticker
	done   chan struct{}
}

// Countdowns runs at most one countdown per game. All methods must be called
// from the coordinator loop; ticks are posted back to it through schedule.
type Countdowns struct {
	clock    Clock
	interval time.Duration
	rooms    *Rooms
	metrics  *Metrics
	schedule func(task func()) bool
	onEvent  func(gameID uuid.UUID, event EventName, payload any)

	active map[uuid.UUID]*countdownTimer
}

func NewCountdowns(clock Clock, interval time.Duration, rooms *Rooms, metrics *Metrics, schedule func(task func()) bool) *Countdowns {
	return &Countdowns{
		clock:    clock,
		interval: interval,
		rooms:    rooms,
		metrics:  metrics,
		schedule: schedule,
		active:   make(map[uuid.UUID]*countdownTimer),
	}
}

// Start replaces any running countdown for the game and announces the new one.
func (c *Countdowns) Start(gameID uuid.UUID, d time.Duration) CountdownState {
	if prev, ok := c.active[gameID]; ok {
		c.cancel(prev)
		log.Debug().Str("game_id", gameID.String()).Msg("Replaced running countdown")
	}

	now := c.clock.Now()
	t := &countdownTimer{
		state: CountdownState{
			GameID:    gameID,
			StartedAt: now,
			Duration:  d,
			EndsAt:    now.Add(d),
		},
		ticker: c.clock.NewTicker(c.interval),
		done:   make(chan struct{}),
	}
	c.active[gameID] = t
	c.metrics.Countdowns.Set(float64(len(c.active)))

	c.emit(gameID, EventCountdownStart, CountdownStartPayload{
		GameID:     gameID,
		DurationMs: d.Milliseconds(),
		StartedAt:  t.state.StartedAt,
		EndsAt:     t.state.EndsAt,
	})

	go c.watch(t)

	log.Info().
		Str("game_id", gameID.String()).
		Dur("duration", d).
		Time("ends_at", t.state.EndsAt).
		Msg("Countdown started")
	return t.state
}

// Stop cancels the game's countdown without emitting anything.
func (c *Countdowns) Stop(gameID uuid.UUID) bool {
	t, ok := c.active[gameID]
	if !ok {
		return false
	}
	c.cancel(t)
	log.Info().Str("game_id", gameID.String()).Msg("Countdown stopped")
	return true
}

// StopAll cancels every countdown. Used on shutdown.
func (c *Countdowns) StopAll() {
	for _, t := range c.active {
		c.cancel(t)
	}
}

func (c *Countdowns) Active(gameID uuid.UUID) (CountdownState, bool) {
	t, ok := c.active[gameID]
	if !ok {
		return CountdownState{}, false
	}
	return t.state, true
}

func (c *Countdowns) Len() int {
	return len(c.active)
}

// watch forwards ticker fires to the loop until the timer is cancelled.
func (c *Countdowns) watch(t *countdownTimer) {
	for {
		select {
		case <-t.done:
			return
		case <-t.ticker.Chan():
			if !c.schedule(func() { c.tick(t) }) {
				return
			}
		}
	}
}

func (c *Countdowns) tick(t *countdownTimer) {
	// A tick queued before cancellation belongs to a dead handle.
	if c.active[t.state.GameID] != t {
		return
	}

	now := c.clock.Now()
	remaining := t.state.EndsAt.Sub(now)
	if remaining <= 0 {
		c.cancel(t)
		c.emit(t.state.GameID, EventCountdownEnd, CountdownEndPayload{
			GameID:  t.state.GameID,
			EndedAt: now,
		})
		log.Info().Str("game_id", t.state.GameID.String()).Msg("Countdown finished")
		return
	}

	c.emit(t.state.GameID, EventCountdownTick, CountdownTickPayload{
		GameID:           t.state.GameID,
		SecondsRemaining: secondsRemaining(remaining),
		RemainingMs:      remaining.Milliseconds(),
	})
}

// cancel stops the ticker, ends the watcher and forgets the handle.
func (c *Countdowns) cancel(t *countdownTimer) {
	t.ticker.Stop()
	close(t.done)
	if c.active[t.state.GameID] == t {
		delete(c.active, t.state.GameID)
	}
	c.metrics.Countdowns.Set(float64(len(c.active)))
}

func (c *Countdowns) emit(gameID uuid.UUID, event EventName, payload any) {
	c.rooms.Broadcast(gameID, event, payload)
	if c.onEvent != nil {
		c.onEvent(gameID, event, payload)
	}
}

// secondsRemaining rounds up so the display reads 1 until the very end.
func secondsRemaining(d time.Duration) int64 {
	if d <= 0 {
		return 0
	}
	return int64((d + time.Second - 1) / time.Second)
}
