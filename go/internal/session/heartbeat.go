package session

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// HeartbeatMonitor periodically evicts connections that stopped heartbeating.
type HeartbeatMonitor struct {
	clock     Clock
	interval  time.Duration
	threshold time.Duration
	registry  *Registry
	schedule  func(task func()) bool
	evict     func(conn *Connection)
}

func NewHeartbeatMonitor(clock Clock, interval, threshold time.Duration, registry *Registry, schedule func(task func()) bool, evict func(conn *Connection)) *HeartbeatMonitor {
	return &HeartbeatMonitor{
		clock:     clock,
		interval:  interval,
		threshold: threshold,
		registry:  registry,
		schedule:  schedule,
		evict:     evict,
	}
}

// Run posts a scan to the loop every interval until ctx is done.
func (m *HeartbeatMonitor) Run(ctx context.Context) {
	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	log.Info().
		Dur("interval", m.interval).
		Dur("stale_threshold", m.threshold).
		Msg("Heartbeat monitor started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Heartbeat monitor stopped")
			return
		case <-ticker.Chan():
			if !m.schedule(m.Scan) {
				return
			}
		}
	}
}

// Scan evicts every stale entry. Must run on the coordinator loop.
func (m *HeartbeatMonitor) Scan() {
	stale := m.registry.Stale(m.threshold)
	if len(stale) == 0 {
		return
	}
	now := m.clock.Now()
	for _, conn := range stale {
		log.Warn().
			Str("connection_id", conn.ID).
			Dur("silent_for", now.Sub(conn.LastHeartbeatAt)).
			Msg("Evicting stale connection")
		m.evict(conn)
	}
}
