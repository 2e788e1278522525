package journal_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/quizlive/go/internal/journal"
	"github.com/mcdev12/quizlive/go/internal/session"
)

func TestNewMessage(t *testing.T) {
	gameID := uuid.New()
	rec := session.Record{
		ID:         uuid.New(),
		GameID:     gameID,
		Event:      session.EventGameStarted,
		Payload:    session.GameStartedPayload{GameID: gameID},
		OccurredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600)),
	}

	msg, err := journal.NewMessage("quiz.events", rec)
	require.NoError(t, err)

	assert.Equal(t, "quiz.events.GAME_STARTED", msg.Subject)
	assert.Equal(t, rec.ID.String(), msg.Header.Get("Event-ID"))
	assert.Equal(t, gameID.String(), msg.Header.Get("Game-ID"))
	assert.Equal(t, "GAME_STARTED", msg.Header.Get("Event-Type"))

	var env journal.Envelope
	require.NoError(t, json.Unmarshal(msg.Data, &env))
	assert.Equal(t, rec.ID.String(), env.EventID)
	assert.Equal(t, "GAME_STARTED", env.EventType)
	assert.Equal(t, time.UTC, env.Timestamp.Location())
	assert.True(t, rec.OccurredAt.Equal(env.Timestamp))

	var payload session.GameStartedPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	assert.Equal(t, gameID, payload.GameID)
}

func TestNewMessageRejectsUnencodablePayload(t *testing.T) {
	_, err := journal.NewMessage("quiz.events", session.Record{
		ID:      uuid.New(),
		Event:   session.EventPlayerJoined,
		Payload: make(chan int),
	})
	assert.Error(t, err)
}

type stubJournal struct {
	err   error
	calls int
}

func (s *stubJournal) Publish(context.Context, session.Record) error {
	s.calls++
	return s.err
}

func TestMetricPublisher(t *testing.T) {
	reg := prometheus.NewRegistry()
	inner := &stubJournal{}
	p := journal.NewMetricPublisher(inner, reg)

	rec := session.Record{ID: uuid.New(), Event: session.EventPlayerJoined}
	require.NoError(t, p.Publish(context.Background(), rec))

	inner.err = errors.New("nats: timeout")
	assert.ErrorIs(t, p.Publish(context.Background(), rec), inner.err)
	assert.Equal(t, 2, inner.calls)

	families, err := reg.Gather()
	require.NoError(t, err)

	results := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "quizlive_journal_published_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "result" {
					results[l.GetValue()] = m.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, map[string]float64{"ok": 1, "error": 1}, results)
}
