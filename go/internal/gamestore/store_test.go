package gamestore_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/quizlive/go/internal/gamestore"
	"github.com/mcdev12/quizlive/go/internal/gamestore/migrations"
	"github.com/mcdev12/quizlive/go/internal/session"
)

// pgStore returns a migrated store seeded with a fresh demo game. The tests
// need a disposable database in QUIZLIVE_TEST_DATABASE_URL.
func pgStore(t *testing.T) (*gamestore.Store, gamestore.GameSeed) {
	t.Helper()
	dsn := os.Getenv("QUIZLIVE_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("QUIZLIVE_TEST_DATABASE_URL not set")
	}
	require.NoError(t, migrations.Run(dsn))

	ctx := context.Background()
	pool, err := gamestore.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := gamestore.New(pool)
	code := strings.ToUpper(uuid.NewString()[:6])
	seed := gamestore.DemoGame(code, "host-1")
	require.NoError(t, store.Seed(ctx, seed))
	return store, seed
}

func TestStore_JoinLeaveRejoin(t *testing.T) {
	store, seed := pgStore(t)
	ctx := context.Background()
	gameID := seed.Game.ID

	game, err := store.FindGameByCode(ctx, strings.ToLower(seed.Game.Code))
	require.NoError(t, err)
	require.NotNil(t, game)
	assert.Equal(t, gameID, game.ID)

	missing, err := store.FindGameByCode(ctx, "??????")
	require.NoError(t, err)
	assert.Nil(t, missing)

	alice, err := store.AddPlayer(ctx, gameID, "alice", "u-1")
	require.NoError(t, err)
	again, err := store.AddPlayer(ctx, gameID, "alice", "u-1")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, again.ID)

	_, err = store.AddPlayer(ctx, gameID, "guest", "")
	require.NoError(t, err)

	players, err := store.ListActivePlayers(ctx, gameID)
	require.NoError(t, err)
	assert.Len(t, players, 2)

	ok, err := store.DeactivatePlayer(ctx, gameID, alice.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.DeactivatePlayer(ctx, gameID, alice.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	back, err := store.AddPlayer(ctx, gameID, "alice2", "u-1")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, back.ID)
	assert.Equal(t, "alice2", back.Name)
	assert.True(t, back.IsActive)
}

func TestStore_StartAndAnswer(t *testing.T) {
	store, seed := pgStore(t)
	ctx := context.Background()
	gameID := seed.Game.ID

	p, err := store.AddPlayer(ctx, gameID, "bob", "u-2")
	require.NoError(t, err)

	isHost, err := store.IsHost(ctx, gameID, "host-1")
	require.NoError(t, err)
	assert.True(t, isHost)

	started, err := store.StartGame(ctx, gameID, "someone")
	require.NoError(t, err)
	assert.False(t, started)
	started, err = store.StartGame(ctx, gameID, "host-1")
	require.NoError(t, err)
	assert.True(t, started)

	_, err = store.AddPlayer(ctx, gameID, "late", "u-3")
	assert.ErrorIs(t, err, session.ErrConflict)

	q := seed.Questions[0]
	var correct uuid.UUID
	for _, o := range q.Options {
		if o.IsCorrect {
			correct = o.ID
		}
	}
	req := session.AnswerRequest{GameID: gameID, PlayerID: p.ID, QuestionID: q.ID, OptionID: correct}
	outcome, err := store.RecordAnswer(ctx, req)
	require.NoError(t, err)
	assert.True(t, outcome.IsCorrect)
	assert.Equal(t, gamestore.DefaultQuestionPoints, outcome.Points)

	_, err = store.RecordAnswer(ctx, req)
	assert.ErrorIs(t, err, gamestore.ErrAlreadyAnswered)

	req.QuestionID = uuid.New()
	_, err = store.RecordAnswer(ctx, req)
	assert.ErrorIs(t, err, session.ErrNotFound)

	players, err := store.ListActivePlayers(ctx, gameID)
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, gamestore.DefaultQuestionPoints, players[0].Score)
}
