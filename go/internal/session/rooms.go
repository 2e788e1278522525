package session

import (
	"sort"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Rooms maps games to the connections subscribed to their events.
// Owned by the coordinator loop.
type Rooms struct {
	registry *Registry
	metrics  *Metrics
	members  map[uuid.UUID]map[string]struct{}
}

func NewRooms(registry *Registry, metrics *Metrics) *Rooms {
	return &Rooms{
		registry: registry,
		metrics:  metrics,
		members:  make(map[uuid.UUID]map[string]struct{}),
	}
}

// Join is idempotent.
func (r *Rooms) Join(connID string, gameID uuid.UUID) {
	room, ok := r.members[gameID]
	if !ok {
		room = make(map[string]struct{})
		r.members[gameID] = room
	}
	room[connID] = struct{}{}
	r.metrics.Rooms.Set(float64(len(r.members)))
}

// Leave is idempotent. Empty rooms are dropped.
func (r *Rooms) Leave(connID string, gameID uuid.UUID) {
	room, ok := r.members[gameID]
	if !ok {
		return
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(r.members, gameID)
	}
	r.metrics.Rooms.Set(float64(len(r.members)))
}

// Members returns a sorted snapshot of the room.
func (r *Rooms) Members(gameID uuid.UUID) []string {
	room := r.members[gameID]
	ids := make([]string, 0, len(room))
	for id := range room {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (r *Rooms) Size(gameID uuid.UUID) int {
	return len(r.members[gameID])
}

// Count returns the number of non-empty rooms.
func (r *Rooms) Count() int {
	return len(r.members)
}

// Broadcast sends to every current member and returns how many sends were accepted.
// Delivery failures are logged and otherwise ignored.
func (r *Rooms) Broadcast(gameID uuid.UUID, event EventName, payload any) int {
	delivered := 0
	for _, id := range r.Members(gameID) {
		if r.Send(id, event, payload) {
			delivered++
		}
	}
	r.metrics.Broadcasts.WithLabelValues(string(event)).Inc()
	log.Debug().
		Str("game_id", gameID.String()).
		Str("event", string(event)).
		Int("delivered", delivered).
		Msg("Broadcast room event")
	return delivered
}

// Send delivers to a single connection.
func (r *Rooms) Send(connID string, event EventName, payload any) bool {
	conn, ok := r.registry.Get(connID)
	if !ok {
		return false
	}
	if err := conn.transport.Send(event, payload); err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", connID).
			Str("event", string(event)).
			Msg("Failed to deliver event")
		return false
	}
	return true
}
