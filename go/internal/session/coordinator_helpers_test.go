package session_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/quizlive/go/internal/gamestore"
	"github.com/mcdev12/quizlive/go/internal/gamestore/memstore"
	"github.com/mcdev12/quizlive/go/internal/session"
)

const waitFor = 2 * time.Second

type fakeClock interface {
	session.Clock
	Advance(d time.Duration)
	BlockUntilContext(ctx context.Context, n int) error
}

// client is a fake transport that remembers every frame it was sent.
type client struct {
	id string

	mu     sync.Mutex
	frames []session.Envelope
	seen   map[session.EventName]int
	closed bool
}

func (c *client) Send(event session.EventName, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, session.Envelope{Event: event, Data: payload})
	return nil
}

func (c *client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// next waits for the first frame named event that an earlier call has not returned.
func (c *client) next(t *testing.T, event session.EventName) session.Envelope {
	t.Helper()
	var found session.Envelope
	require.Eventually(t, func() bool {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.seen == nil {
			c.seen = make(map[session.EventName]int)
		}
		skip := c.seen[event]
		for _, f := range c.frames {
			if f.Event != event {
				continue
			}
			if skip > 0 {
				skip--
				continue
			}
			found = f
			c.seen[event]++
			return true
		}
		return false
	}, waitFor, time.Millisecond, "%s never received %s", c.id, event)
	return found
}

func (c *client) count(event session.EventName) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, f := range c.frames {
		if f.Event == event {
			n++
		}
	}
	return n
}

type fixture struct {
	t     *testing.T
	coord *session.Coordinator
	clock fakeClock
	store *memstore.Store
	game  gamestore.GameSeed
}

func testConfig() session.Config {
	cfg := session.DefaultConfig()
	cfg.StoreTimeout = time.Second
	return cfg
}

func newFixture(t *testing.T, store session.GameStore, mem *memstore.Store) *fixture {
	t.Helper()
	return newFixtureWith(t, store, mem, testConfig())
}

func newFixtureWith(t *testing.T, store session.GameStore, mem *memstore.Store, cfg session.Config, opts ...session.Option) *fixture {
	t.Helper()
	game := gamestore.DemoGame("ABC123", "host-1")
	require.NoError(t, mem.Seed(game))

	clock := clockwork.NewFakeClock()
	coord, err := session.New(store, cfg, append([]session.Option{session.WithClock(clock)}, opts...)...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- coord.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	// the heartbeat monitor's ticker
	waitCtx, cancelWait := context.WithTimeout(context.Background(), waitFor)
	defer cancelWait()
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))

	return &fixture{t: t, coord: coord, clock: clock, store: mem, game: game}
}

func newMemFixture(t *testing.T) *fixture {
	mem := memstore.New()
	return newFixture(t, mem, mem)
}

func (f *fixture) connect(id string) *client {
	c := &client{id: id}
	f.coord.Connect(id, c)
	return c
}

func (f *fixture) send(c *client, event session.EventName, data any) {
	f.t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(f.t, err)
	msg, err := json.Marshal(session.Message{Event: event, Data: raw})
	require.NoError(f.t, err)
	f.coord.Dispatch(c.id, msg)
}

// join sends JOIN_GAME and waits for the success reply.
func (f *fixture) join(c *client, name, userID string) session.JoinedPayload {
	f.t.Helper()
	f.send(c, session.EventJoinGame, session.JoinRequest{GameCode: f.game.Game.Code, PlayerName: name, UserID: userID})
	return c.next(f.t, session.EventJoinGameSuccess).Data.(session.JoinedPayload)
}

// sync waits until every task queued so far has run.
func (f *fixture) sync() session.Stats {
	f.t.Helper()
	stats, err := f.coord.Stats(context.Background())
	require.NoError(f.t, err)
	return stats
}

func (f *fixture) activePlayers() []session.Player {
	f.t.Helper()
	players, err := f.store.ListActivePlayers(context.Background(), f.game.Game.ID)
	require.NoError(f.t, err)
	return players
}

func (f *fixture) correctOption(q gamestore.QuestionSeed) uuid.UUID {
	for _, o := range q.Options {
		if o.IsCorrect {
			return o.ID
		}
	}
	f.t.Fatal("question has no correct option")
	return uuid.Nil
}

// settle gives in-flight continuations time to land before asserting absence.
func settle() {
	time.Sleep(50 * time.Millisecond)
}
