package session

import (
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRooms_JoinLeaveIdempotent(t *testing.T) {
	registry := NewRegistry(clockwork.NewFakeClock())
	rooms := NewRooms(registry, NewMetrics(nil))
	gameID := uuid.New()

	rooms.Join("c1", gameID)
	rooms.Join("c1", gameID)
	rooms.Join("c2", gameID)
	assert.Equal(t, []string{"c1", "c2"}, rooms.Members(gameID))
	assert.Equal(t, 1, rooms.Count())

	rooms.Leave("c1", gameID)
	rooms.Leave("c1", gameID)
	rooms.Leave("c1", uuid.New())
	assert.Equal(t, []string{"c2"}, rooms.Members(gameID))

	rooms.Leave("c2", gameID)
	assert.Empty(t, rooms.Members(gameID))
	assert.Zero(t, rooms.Count(), "empty rooms are dropped")
}

func TestRooms_Broadcast(t *testing.T) {
	registry := NewRegistry(clockwork.NewFakeClock())
	rooms := NewRooms(registry, NewMetrics(nil))
	gameID, otherGame := uuid.New(), uuid.New()

	a, b, broken, outsider := &recorder{}, &recorder{}, &recorder{fail: true}, &recorder{}
	registry.Connect("a", a)
	registry.Connect("b", b)
	registry.Connect("broken", broken)
	registry.Connect("outsider", outsider)
	rooms.Join("a", gameID)
	rooms.Join("b", gameID)
	rooms.Join("broken", gameID)
	rooms.Join("ghost", gameID)
	rooms.Join("outsider", otherGame)

	payload := GameStartedPayload{GameID: gameID}
	delivered := rooms.Broadcast(gameID, EventGameStarted, payload)

	assert.Equal(t, 2, delivered, "failed and unknown members are skipped")
	require.Equal(t, 1, a.len())
	assert.Equal(t, EventGameStarted, a.last().Event)
	assert.Equal(t, payload, a.last().Data)
	assert.Equal(t, 1, b.len())
	assert.Zero(t, outsider.len())
}

func TestRooms_Send(t *testing.T) {
	registry := NewRegistry(clockwork.NewFakeClock())
	rooms := NewRooms(registry, NewMetrics(nil))

	rec := &recorder{}
	registry.Connect("c1", rec)

	assert.True(t, rooms.Send("c1", EventPong, PongPayload{Timestamp: 1}))
	assert.False(t, rooms.Send("missing", EventPong, PongPayload{}))
	assert.Equal(t, []EventName{EventPong}, rec.events())
}
