package gamestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/quizlive/go/internal/session"
)

type ListenerConfig struct {
	DatabaseURL   string        `yaml:"database_url"`
	NotifyChannel string        `yaml:"notify_channel"`
	PingInterval  time.Duration `yaml:"ping_interval"`
	MinReconnect  time.Duration `yaml:"min_reconnect"`
	MaxReconnect  time.Duration `yaml:"max_reconnect"`
}

func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		NotifyChannel: "game_status_changed",
		PingInterval:  90 * time.Second,
		MinReconnect:  10 * time.Second,
		MaxReconnect:  time.Minute,
	}
}

// StatusSink receives game status transitions made outside this process.
type StatusSink interface {
	GameStatusChanged(gameID uuid.UUID, status session.GameStatus)
}

// StatusChange is the payload the games trigger sends with pg_notify.
type StatusChange struct {
	GameID uuid.UUID          `json:"gameId"`
	Status session.GameStatus `json:"status"`
}

// StatusListener forwards game status notifications to a StatusSink.
type StatusListener struct {
	listener *pq.Listener
	sink     StatusSink
	cfg      ListenerConfig
}

func NewStatusListener(cfg ListenerConfig, sink StatusSink) (*StatusListener, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		cfg.MinReconnect,
		cfg.MaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Int("event", int(ev)).Msg("status listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("listen on %s: %w", cfg.NotifyChannel, err)
	}

	log.Info().Str("channel", cfg.NotifyChannel).Msg("listening for game status changes")
	return &StatusListener{listener: l, sink: sink, cfg: cfg}, nil
}

// Start blocks until ctx is cancelled.
func (l *StatusListener) Start(ctx context.Context) error {
	ping := time.NewTicker(l.cfg.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("status listener shutting down")
			return l.Stop()
		case note := <-l.listener.Notify:
			if note == nil {
				// connection was re-established; notifications in between are lost
				log.Warn().Str("channel", l.cfg.NotifyChannel).Msg("status listener reconnected")
				continue
			}
			change, err := ParseStatusChange(note.Extra)
			if err != nil {
				log.Error().Err(err).Str("payload", note.Extra).Msg("dropping status notification")
				continue
			}
			l.sink.GameStatusChanged(change.GameID, change.Status)
		case <-ping.C:
			if err := l.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping status listener")
			}
		}
	}
}

func (l *StatusListener) Stop() error {
	return l.listener.Close()
}

func ParseStatusChange(extra string) (StatusChange, error) {
	var change StatusChange
	if err := json.Unmarshal([]byte(extra), &change); err != nil {
		return StatusChange{}, fmt.Errorf("decode status notification: %w", err)
	}
	if change.GameID == uuid.Nil {
		return StatusChange{}, fmt.Errorf("status notification without game id")
	}
	switch change.Status {
	case session.GameStatusWaiting, session.GameStatusInProgress,
		session.GameStatusCompleted, session.GameStatusCancelled:
	default:
		return StatusChange{}, fmt.Errorf("unknown game status %q", change.Status)
	}
	return change, nil
}
