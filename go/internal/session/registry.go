package session

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// Transport delivers frames to one client. Send must not block.
type Transport interface {
	Send(event EventName, payload any) error
	Close() error
}

// Binding ties a connection to a player in a game.
type Binding struct {
	GameID   uuid.UUID
	PlayerID uuid.UUID
	Lobby    bool
}

// Connection is a registry entry.
type Connection struct {
	ID              string
	Binding         *Binding
	ConnectedAt     time.Time
	LastHeartbeatAt time.Time

	transport Transport
}

// Registry tracks live connections. It is owned by the coordinator loop and
// is not safe for concurrent use.
type Registry struct {
	clock Clock
	conns map[string]*Connection
}

func NewRegistry(clock Clock) *Registry {
	return &Registry{
		clock: clock,
		conns: make(map[string]*Connection),
	}
}

// Connect creates an unbound entry. An existing entry with the same id is replaced.
func (r *Registry) Connect(id string, t Transport) *Connection {
	now := r.clock.Now()
	conn := &Connection{
		ID:              id,
		ConnectedAt:     now,
		LastHeartbeatAt: now,
		transport:       t,
	}
	r.conns[id] = conn
	return conn
}

// Disconnect removes the entry and returns it. The second call for the same
// id reports false, which is what makes leave side effects run once.
func (r *Registry) Disconnect(id string) (*Connection, bool) {
	conn, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	delete(r.conns, id)
	return conn, true
}

func (r *Registry) Get(id string) (*Connection, bool) {
	conn, ok := r.conns[id]
	return conn, ok
}

// Touch refreshes the heartbeat timestamp.
func (r *Registry) Touch(id string) bool {
	conn, ok := r.conns[id]
	if !ok {
		return false
	}
	conn.LastHeartbeatAt = r.clock.Now()
	return true
}

func (r *Registry) Bind(id string, b Binding) bool {
	conn, ok := r.conns[id]
	if !ok {
		return false
	}
	conn.Binding = &b
	return true
}

// Unbind clears and returns the previous binding, if any.
func (r *Registry) Unbind(id string) *Binding {
	conn, ok := r.conns[id]
	if !ok {
		return nil
	}
	prev := conn.Binding
	conn.Binding = nil
	return prev
}

// BoundTo returns the ids of connections bound to the player, sorted.
func (r *Registry) BoundTo(gameID, playerID uuid.UUID) []string {
	var ids []string
	for id, conn := range r.conns {
		if conn.Binding != nil && conn.Binding.GameID == gameID && conn.Binding.PlayerID == playerID {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// Stale returns entries whose last heartbeat is older than threshold.
func (r *Registry) Stale(threshold time.Duration) []*Connection {
	now := r.clock.Now()
	var stale []*Connection
	for _, conn := range r.conns {
		if now.Sub(conn.LastHeartbeatAt) > threshold {
			stale = append(stale, conn)
		}
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].ID < stale[j].ID })
	return stale
}

func (r *Registry) Len() int {
	return len(r.conns)
}
