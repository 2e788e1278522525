// Package gamestore holds the Postgres game authority plus the seed and
// scoring rules shared with the in-memory store.
package gamestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mcdev12/quizlive/go/internal/session"
	"github.com/mcdev12/quizlive/go/internal/sqlutil"
)

const uniqueViolation = "23505"

// Store implements session.GameStore on Postgres.
type Store struct {
	pool    *pgxpool.Pool
	queries *Queries
}

var _ session.GameStore = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, queries: NewQueries(pool)}
}

// Connect opens a pool and verifies the database answers.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func (s *Store) FindGameByCode(ctx context.Context, code string) (*session.Game, error) {
	g, err := s.queries.GameByCode(ctx, strings.ToUpper(code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find game %s: %w", code, err)
	}
	return &g, nil
}

func (s *Store) IsHost(ctx context.Context, gameID uuid.UUID, userID string) (bool, error) {
	host, err := s.queries.HostID(ctx, gameID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("load host of %s: %w", gameID, err)
	}
	return userID != "" && host == userID, nil
}

func (s *Store) AddPlayer(ctx context.Context, gameID uuid.UUID, name, userID string) (*session.Player, error) {
	var player session.Player
	err := sqlutil.Run(ctx, s.pool, s.queries.WithTx, func(q *Queries) error {
		status, err := q.LockGameStatus(ctx, gameID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrGameNotFound
		}
		if err != nil {
			return err
		}
		if status != session.GameStatusWaiting {
			return ErrGameNotWaiting
		}

		if userID != "" {
			player, err = q.ActivePlayerByUser(ctx, gameID, userID)
			if err == nil {
				return nil
			}
			if !errors.Is(err, pgx.ErrNoRows) {
				return err
			}
			prev, err := q.LatestInactivePlayerByUser(ctx, gameID, userID)
			if err == nil {
				player, err = q.ReactivatePlayer(ctx, prev.ID, name)
				return err
			}
			if !errors.Is(err, pgx.ErrNoRows) {
				return err
			}
		}

		player, err = q.InsertPlayer(ctx, uuid.New(), gameID, userID, name)
		return err
	})

	// A concurrent join for the same user won the active seat.
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && userID != "" {
		player, err = s.queries.ActivePlayerByUser(ctx, gameID, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("add player to %s: %w", gameID, err)
	}
	return &player, nil
}

func (s *Store) DeactivatePlayer(ctx context.Context, gameID, playerID uuid.UUID) (bool, error) {
	n, err := s.queries.DeactivatePlayer(ctx, gameID, playerID)
	if err != nil {
		return false, fmt.Errorf("deactivate player %s: %w", playerID, err)
	}
	return n == 1, nil
}

func (s *Store) ListActivePlayers(ctx context.Context, gameID uuid.UUID) ([]session.Player, error) {
	players, err := s.queries.ActivePlayers(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("list players of %s: %w", gameID, err)
	}
	return players, nil
}

func (s *Store) StartGame(ctx context.Context, gameID uuid.UUID, hostID string) (bool, error) {
	n, err := s.queries.StartGame(ctx, gameID, hostID)
	if err != nil {
		return false, fmt.Errorf("start game %s: %w", gameID, err)
	}
	return n == 1, nil
}

func (s *Store) RecordAnswer(ctx context.Context, req session.AnswerRequest) (*session.AnswerOutcome, error) {
	var outcome session.AnswerOutcome
	err := sqlutil.Run(ctx, s.pool, s.queries.WithTx, func(q *Queries) error {
		status, err := q.LockGameStatus(ctx, req.GameID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrGameNotFound
		}
		if err != nil {
			return err
		}
		if status != session.GameStatusInProgress {
			return ErrGameNotInProgress
		}

		active, err := q.PlayerActive(ctx, req.GameID, req.PlayerID)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && !active) {
			return ErrPlayerInactive
		}
		if err != nil {
			return err
		}

		key, err := q.AnswerKey(ctx, req.GameID, req.QuestionID, req.OptionID)
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrQuestionNotFound
		}
		if err != nil {
			return err
		}

		outcome = session.AnswerOutcome{
			IsCorrect: key.IsCorrect,
			Points:    Score(key.IsCorrect, key.Points, key.TimeLimit, req.TimeToAnswerMs),
		}
		n, err := q.InsertAnswer(ctx, req, outcome)
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrAlreadyAnswered
		}
		if outcome.Points > 0 {
			return q.AddScore(ctx, req.PlayerID, outcome.Points)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("record answer of %s: %w", req.PlayerID, err)
	}
	return &outcome, nil
}

// Seed inserts a game with its questions and options in one transaction.
func (s *Store) Seed(ctx context.Context, seed GameSeed) error {
	game := seed.Game
	game.Code = strings.ToUpper(game.Code)
	if game.ID == uuid.Nil {
		game.ID = uuid.New()
	}
	if game.Status == "" {
		game.Status = session.GameStatusWaiting
	}

	return sqlutil.Run(ctx, s.pool, s.queries.WithTx, func(q *Queries) error {
		if err := q.InsertGame(ctx, game); err != nil {
			return fmt.Errorf("insert game %s: %w", game.Code, err)
		}
		for i, qs := range seed.Questions {
			if qs.ID == uuid.Nil {
				qs.ID = uuid.New()
			}
			if err := q.InsertQuestion(ctx, game.ID, i+1, qs); err != nil {
				return fmt.Errorf("insert question %d: %w", i+1, err)
			}
			for _, o := range qs.Options {
				if o.ID == uuid.Nil {
					o.ID = uuid.New()
				}
				if err := q.InsertOption(ctx, qs.ID, o); err != nil {
					return fmt.Errorf("insert option for question %d: %w", i+1, err)
				}
			}
		}
		return nil
	})
}
