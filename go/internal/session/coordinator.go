package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// ErrStopped is returned when work is submitted after the coordinator exited.
var ErrStopped = errors.New("coordinator stopped")

// Config tunes the coordinator.
type Config struct {
	TickInterval      time.Duration `yaml:"tick_interval"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	StaleThreshold    time.Duration `yaml:"stale_threshold"`
	MaxCountdown      time.Duration `yaml:"max_countdown"`
	StoreTimeout      time.Duration `yaml:"store_timeout"`
	QueueSize         int           `yaml:"queue_size"`
	JournalBuffer     int           `yaml:"journal_buffer"`
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		TickInterval:      time.Second,
		HeartbeatInterval: 15 * time.Second,
		StaleThreshold:    30 * time.Second,
		MaxCountdown:      10 * time.Minute,
		StoreTimeout:      5 * time.Second,
		QueueSize:         1024,
		JournalBuffer:     256,
	}
}

func (c Config) Validate() error {
	switch {
	case c.TickInterval <= 0:
		return fmt.Errorf("tick interval must be positive, got %s", c.TickInterval)
	case c.HeartbeatInterval <= 0:
		return fmt.Errorf("heartbeat interval must be positive, got %s", c.HeartbeatInterval)
	case c.StaleThreshold < 2*c.HeartbeatInterval:
		return fmt.Errorf("stale threshold %s must be at least twice the heartbeat interval %s",
			c.StaleThreshold, c.HeartbeatInterval)
	case c.MaxCountdown <= 0:
		return fmt.Errorf("max countdown must be positive, got %s", c.MaxCountdown)
	case c.StoreTimeout <= 0:
		return fmt.Errorf("store timeout must be positive, got %s", c.StoreTimeout)
	case c.QueueSize <= 0:
		return fmt.Errorf("queue size must be positive, got %d", c.QueueSize)
	case c.JournalBuffer <= 0:
		return fmt.Errorf("journal buffer must be positive, got %d", c.JournalBuffer)
	}
	return nil
}

type Option func(*Coordinator)

func WithClock(clock Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

func WithJournal(j Journal) Option {
	return func(c *Coordinator) { c.journal = j }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// Coordinator owns all session state. Every mutation of the registry, rooms
// and countdowns runs as a task on the single goroutine inside Run; other
// goroutines only enqueue work.
type Coordinator struct {
	cfg     Config
	clock   Clock
	store   GameStore
	journal Journal
	metrics *Metrics

	registry   *Registry
	rooms      *Rooms
	countdowns *Countdowns
	monitor    *HeartbeatMonitor

	tasks   chan func()
	records chan Record
	done    chan struct{}
	running atomic.Bool

	// base context for store and journal calls, detached from shutdown
	callCtx context.Context
}

func New(store GameStore, cfg Config, opts ...Option) (*Coordinator, error) {
	if store == nil {
		return nil, errors.New("game store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid coordinator config: %w", err)
	}

	c := &Coordinator{
		cfg:     cfg,
		clock:   clockwork.NewRealClock(),
		store:   store,
		journal: noopJournal{},
		tasks:   make(chan func(), cfg.QueueSize),
		records: make(chan Record, cfg.JournalBuffer),
		done:    make(chan struct{}),
		callCtx: context.Background(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}

	c.registry = NewRegistry(c.clock)
	c.rooms = NewRooms(c.registry, c.metrics)
	c.countdowns = NewCountdowns(c.clock, cfg.TickInterval, c.rooms, c.metrics, c.submit)
	c.countdowns.onEvent = c.record
	c.monitor = NewHeartbeatMonitor(c.clock, cfg.HeartbeatInterval, cfg.StaleThreshold, c.registry, c.submit, c.evict)
	return c, nil
}

// Run processes tasks until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return errors.New("coordinator already running")
	}
	c.callCtx = context.WithoutCancel(ctx)

	monitorCtx, cancelMonitor := context.WithCancel(ctx)
	defer cancelMonitor()
	go c.monitor.Run(monitorCtx)
	if _, ok := c.journal.(noopJournal); !ok {
		go c.publishRecords()
	}

	log.Info().Int("queue_size", c.cfg.QueueSize).Msg("Session coordinator started")

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			log.Info().Msg("Session coordinator stopped")
			return nil
		case task := <-c.tasks:
			c.runTask(task)
		}
	}
}

func (c *Coordinator) runTask(task func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Coordinator task panicked")
		}
	}()
	task()
}

func (c *Coordinator) shutdown() {
	close(c.done)
	c.countdowns.StopAll()
	for _, id := range c.connectionIDs() {
		if conn, ok := c.registry.Disconnect(id); ok {
			if err := conn.transport.Close(); err != nil {
				log.Debug().Err(err).Str("connection_id", id).Msg("Error closing transport on shutdown")
			}
		}
	}
}

// submit enqueues a task for the loop. It reports false once the loop exited.
func (c *Coordinator) submit(task func()) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.tasks <- task:
		return true
	case <-c.done:
		return false
	}
}

// Do runs fn on the loop and waits for it to finish.
func (c *Coordinator) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !c.submit(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return ErrStopped
	}
}

// await runs a store call off the loop and posts the continuation back to it.
// The continuation must re-check registry state before mutating anything.
func await[T any](c *Coordinator, call func(ctx context.Context) (T, error), then func(T, error)) {
	go func() {
		ctx, cancel := context.WithTimeout(c.callCtx, c.cfg.StoreTimeout)
		result, err := call(ctx)
		cancel()
		if !c.submit(func() { then(result, err) }) {
			log.Debug().Msg("Discarded store result after shutdown")
		}
	}()
}

// Transport-facing API. Safe for concurrent use.

func (c *Coordinator) Connect(connID string, t Transport) {
	c.submit(func() {
		c.registry.Connect(connID, t)
		c.metrics.Connections.Set(float64(c.registry.Len()))
		log.Info().Str("connection_id", connID).Msg("Client connected")
	})
}

// Disconnect runs the leave path for a transport that closed on its own.
func (c *Coordinator) Disconnect(connID string) {
	c.submit(func() {
		c.disconnect(connID, false)
	})
}

// Heartbeat refreshes liveness, e.g. from a transport-level pong.
func (c *Coordinator) Heartbeat(connID string) {
	c.submit(func() {
		c.registry.Touch(connID)
	})
}

// Dispatch handles one raw inbound frame.
func (c *Coordinator) Dispatch(connID string, raw []byte) {
	c.submit(func() {
		c.handleMessage(connID, raw)
	})
}

// GameStatusChanged reacts to status changes made outside the coordinator.
func (c *Coordinator) GameStatusChanged(gameID uuid.UUID, status GameStatus) {
	if !status.Terminal() {
		return
	}
	c.submit(func() {
		if c.countdowns.Stop(gameID) {
			log.Info().
				Str("game_id", gameID.String()).
				Str("status", string(status)).
				Msg("Stopped countdown for finished game")
		}
	})
}

// Stats is a point-in-time snapshot of coordinator state.
type Stats struct {
	Connections int            `json:"connections"`
	Rooms       int            `json:"rooms"`
	Countdowns  int            `json:"countdowns"`
	RoomMembers map[string]int `json:"roomMembers"`
}

func (c *Coordinator) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := c.Do(ctx, func() {
		stats = Stats{
			Connections: c.registry.Len(),
			Rooms:       c.rooms.Count(),
			Countdowns:  c.countdowns.Len(),
			RoomMembers: make(map[string]int, c.rooms.Count()),
		}
		for gameID, room := range c.rooms.members {
			stats.RoomMembers[gameID.String()] = len(room)
		}
	})
	return stats, err
}

// StopCountdown cancels a game's countdown on behalf of an operator.
func (c *Coordinator) StopCountdown(ctx context.Context, gameID uuid.UUID) (bool, error) {
	var stopped bool
	err := c.Do(ctx, func() {
		stopped = c.countdowns.Stop(gameID)
	})
	return stopped, err
}

// Loop-side helpers

func (c *Coordinator) connectionIDs() []string {
	ids := make([]string, 0, len(c.registry.conns))
	for id := range c.registry.conns {
		ids = append(ids, id)
	}
	return ids
}

// disconnect removes the entry once and runs the leave path for its binding.
func (c *Coordinator) disconnect(connID string, closeTransport bool) {
	conn, ok := c.registry.Disconnect(connID)
	if !ok {
		return
	}
	c.metrics.Connections.Set(float64(c.registry.Len()))

	if closeTransport {
		if err := conn.transport.Close(); err != nil {
			log.Debug().Err(err).Str("connection_id", connID).Msg("Error closing transport")
		}
	}

	log.Info().Str("connection_id", connID).Msg("Client disconnected")

	if conn.Binding != nil {
		c.rooms.Leave(connID, conn.Binding.GameID)
		c.release(*conn.Binding)
	}
}

func (c *Coordinator) evict(conn *Connection) {
	c.metrics.Evictions.Inc()
	c.disconnect(conn.ID, true)
}

// release deactivates a player whose last connection went away and tells the room.
func (c *Coordinator) release(b Binding) {
	if others := c.registry.BoundTo(b.GameID, b.PlayerID); len(others) > 0 {
		log.Debug().
			Str("game_id", b.GameID.String()).
			Str("player_id", b.PlayerID.String()).
			Int("connections", len(others)).
			Msg("Player still connected elsewhere")
		c.reconcileCountdown(b.GameID)
		return
	}

	d := dialectFor(b.Lobby)
	await(c, func(ctx context.Context) ([]Player, error) {
		ok, err := c.store.DeactivatePlayer(ctx, b.GameID, b.PlayerID)
		if err != nil {
			log.Error().
				Err(err).
				Str("game_id", b.GameID.String()).
				Str("player_id", b.PlayerID.String()).
				Msg("Failed to deactivate player")
		} else if !ok {
			log.Debug().Str("player_id", b.PlayerID.String()).Msg("Player was already inactive")
		}
		return c.store.ListActivePlayers(ctx, b.GameID)
	}, func(players []Player, err error) {
		c.announceLeft(d, b.GameID, b.PlayerID, players, err)
		c.reconcileCountdown(b.GameID)
	})
}

// announceLeft broadcasts player-left. Without a fresh roster the players
// field is omitted so clients keep their last snapshot.
func (c *Coordinator) announceLeft(d dialect, gameID, playerID uuid.UUID, players []Player, listErr error) {
	if listErr != nil {
		log.Warn().
			Err(listErr).
			Str("game_id", gameID.String()).
			Str("player_id", playerID.String()).
			Msg("Failed to load players after leave, broadcasting without roster")
		c.broadcast(gameID, d.playerLeft, LeftPayload{GameID: gameID, PlayerID: playerID})
		return
	}
	c.broadcast(gameID, d.playerLeft, PlayerLeftPayload{
		GameID:   gameID,
		PlayerID: playerID,
		Players:  players,
	})
}

// reconcileCountdown stops a countdown that no longer has enough players to pace.
func (c *Coordinator) reconcileCountdown(gameID uuid.UUID) {
	if c.rooms.Size(gameID) >= 2 {
		return
	}
	if c.countdowns.Stop(gameID) {
		log.Info().
			Str("game_id", gameID.String()).
			Int("members", c.rooms.Size(gameID)).
			Msg("Stopped countdown after players left")
	}
}

func (c *Coordinator) broadcast(gameID uuid.UUID, event EventName, payload any) {
	c.rooms.Broadcast(gameID, event, payload)
	c.record(gameID, event, payload)
}

// record queues a broadcast event for the journal without blocking the loop.
// Records are dropped while the buffer is full.
func (c *Coordinator) record(gameID uuid.UUID, event EventName, payload any) {
	if event == EventCountdownTick {
		return
	}
	if _, ok := c.journal.(noopJournal); ok {
		return
	}
	rec := Record{
		ID:         uuid.New(),
		GameID:     gameID,
		Event:      event,
		Payload:    payload,
		OccurredAt: c.clock.Now(),
	}
	select {
	case c.records <- rec:
	default:
		c.metrics.JournalDropped.Inc()
		log.Warn().
			Str("game_id", gameID.String()).
			Str("event", string(event)).
			Int("buffer", c.cfg.JournalBuffer).
			Msg("Journal buffer full, dropping event")
	}
}

// publishRecords drains the journal buffer one record at a time until shutdown.
func (c *Coordinator) publishRecords() {
	for {
		select {
		case <-c.done:
			return
		case rec := <-c.records:
			c.publish(rec)
		}
	}
}

func (c *Coordinator) publish(rec Record) {
	ctx, cancel := context.WithTimeout(c.callCtx, c.cfg.StoreTimeout)
	defer cancel()
	if err := c.journal.Publish(ctx, rec); err != nil {
		log.Warn().
			Err(err).
			Str("game_id", rec.GameID.String()).
			Str("event", string(rec.Event)).
			Msg("Failed to journal event")
	}
}
