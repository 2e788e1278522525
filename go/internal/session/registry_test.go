package session

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_ConnectAndDisconnect(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRegistry(clock)

	conn := r.Connect("c1", &recorder{})
	assert.Equal(t, clock.Now(), conn.LastHeartbeatAt)
	assert.Nil(t, conn.Binding)
	assert.Equal(t, 1, r.Len())

	b := Binding{GameID: uuid.New(), PlayerID: uuid.New()}
	require.True(t, r.Bind("c1", b))

	removed, ok := r.Disconnect("c1")
	require.True(t, ok)
	require.NotNil(t, removed.Binding)
	assert.Equal(t, b, *removed.Binding)
	assert.Zero(t, r.Len())

	_, ok = r.Disconnect("c1")
	assert.False(t, ok, "second disconnect must be a no-op")
}

func TestRegistry_OperationsOnMissingConnection(t *testing.T) {
	r := NewRegistry(clockwork.NewFakeClock())

	assert.False(t, r.Touch("ghost"))
	assert.False(t, r.Bind("ghost", Binding{GameID: uuid.New(), PlayerID: uuid.New()}))
	assert.Nil(t, r.Unbind("ghost"))
	_, ok := r.Get("ghost")
	assert.False(t, ok)
}

func TestRegistry_UnbindReturnsPrevious(t *testing.T) {
	r := NewRegistry(clockwork.NewFakeClock())
	r.Connect("c1", &recorder{})

	assert.Nil(t, r.Unbind("c1"))

	b := Binding{GameID: uuid.New(), PlayerID: uuid.New(), Lobby: true}
	r.Bind("c1", b)
	prev := r.Unbind("c1")
	require.NotNil(t, prev)
	assert.Equal(t, b, *prev)

	conn, _ := r.Get("c1")
	assert.Nil(t, conn.Binding)
}

func TestRegistry_BoundTo(t *testing.T) {
	r := NewRegistry(clockwork.NewFakeClock())
	gameID, playerID := uuid.New(), uuid.New()

	for _, id := range []string{"c3", "c1", "c2"} {
		r.Connect(id, &recorder{})
	}
	r.Bind("c3", Binding{GameID: gameID, PlayerID: playerID})
	r.Bind("c1", Binding{GameID: gameID, PlayerID: playerID})
	r.Bind("c2", Binding{GameID: gameID, PlayerID: uuid.New()})

	assert.Equal(t, []string{"c1", "c3"}, r.BoundTo(gameID, playerID))
	assert.Empty(t, r.BoundTo(uuid.New(), playerID))
}

func TestRegistry_Stale(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRegistry(clock)
	threshold := 30 * time.Second

	r.Connect("quiet", &recorder{})
	r.Connect("chatty", &recorder{})

	clock.Advance(threshold)
	assert.Empty(t, r.Stale(threshold), "exactly at the threshold is still live")

	r.Touch("chatty")
	clock.Advance(time.Millisecond)

	stale := r.Stale(threshold)
	require.Len(t, stale, 1)
	assert.Equal(t, "quiet", stale[0].ID)
}
