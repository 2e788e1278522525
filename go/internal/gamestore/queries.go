package gamestore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/mcdev12/quizlive/go/internal/session"
	"github.com/mcdev12/quizlive/go/internal/sqlutil"
)

// DBTX is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries holds the SQL the store runs. Bind to a transaction with WithTx.
type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx pgx.Tx) *Queries {
	return &Queries{db: tx}
}

const playerColumns = `id, game_id, user_id, name, score, is_active, joined_at`

func scanPlayer(row pgx.Row) (session.Player, error) {
	var (
		p      session.Player
		userID pgtype.Text
	)
	err := row.Scan(&p.ID, &p.GameID, &userID, &p.Name, &p.Score, &p.IsActive, &p.JoinedAt)
	p.UserID = sqlutil.FromText(userID)
	return p, err
}

const gameByCode = `
SELECT id, code, title, host_id, status
FROM games
WHERE code = $1`

func (q *Queries) GameByCode(ctx context.Context, code string) (session.Game, error) {
	var g session.Game
	err := q.db.QueryRow(ctx, gameByCode, code).Scan(&g.ID, &g.Code, &g.Title, &g.HostID, &g.Status)
	return g, err
}

const lockGameStatus = `
SELECT status
FROM games
WHERE id = $1
FOR SHARE`

func (q *Queries) LockGameStatus(ctx context.Context, gameID uuid.UUID) (session.GameStatus, error) {
	var status session.GameStatus
	err := q.db.QueryRow(ctx, lockGameStatus, gameID).Scan(&status)
	return status, err
}

const hostID = `SELECT host_id FROM games WHERE id = $1`

func (q *Queries) HostID(ctx context.Context, gameID uuid.UUID) (string, error) {
	var host string
	err := q.db.QueryRow(ctx, hostID, gameID).Scan(&host)
	return host, err
}

const startGame = `
UPDATE games
SET status = 'in_progress', started_at = now()
WHERE id = $1 AND host_id = $2 AND status = 'waiting'`

func (q *Queries) StartGame(ctx context.Context, gameID uuid.UUID, hostID string) (int64, error) {
	tag, err := q.db.Exec(ctx, startGame, gameID, hostID)
	return tag.RowsAffected(), err
}

const activePlayerByUser = `
SELECT ` + playerColumns + `
FROM players
WHERE game_id = $1 AND user_id = $2 AND is_active`

func (q *Queries) ActivePlayerByUser(ctx context.Context, gameID uuid.UUID, userID string) (session.Player, error) {
	return scanPlayer(q.db.QueryRow(ctx, activePlayerByUser, gameID, userID))
}

const latestInactivePlayerByUser = `
SELECT ` + playerColumns + `
FROM players
WHERE game_id = $1 AND user_id = $2 AND NOT is_active
ORDER BY joined_at DESC
LIMIT 1
FOR UPDATE`

func (q *Queries) LatestInactivePlayerByUser(ctx context.Context, gameID uuid.UUID, userID string) (session.Player, error) {
	return scanPlayer(q.db.QueryRow(ctx, latestInactivePlayerByUser, gameID, userID))
}

const reactivatePlayer = `
UPDATE players
SET is_active = true, name = $2, joined_at = now(), left_at = NULL
WHERE id = $1
RETURNING ` + playerColumns

func (q *Queries) ReactivatePlayer(ctx context.Context, playerID uuid.UUID, name string) (session.Player, error) {
	return scanPlayer(q.db.QueryRow(ctx, reactivatePlayer, playerID, name))
}

const insertPlayer = `
INSERT INTO players (id, game_id, user_id, name)
VALUES ($1, $2, $3, $4)
RETURNING ` + playerColumns

func (q *Queries) InsertPlayer(ctx context.Context, id, gameID uuid.UUID, userID, name string) (session.Player, error) {
	return scanPlayer(q.db.QueryRow(ctx, insertPlayer, id, gameID, sqlutil.ToText(userID), name))
}

const deactivatePlayer = `
UPDATE players
SET is_active = false, left_at = now()
WHERE game_id = $1 AND id = $2 AND is_active`

func (q *Queries) DeactivatePlayer(ctx context.Context, gameID, playerID uuid.UUID) (int64, error) {
	tag, err := q.db.Exec(ctx, deactivatePlayer, gameID, playerID)
	return tag.RowsAffected(), err
}

const activePlayers = `
SELECT ` + playerColumns + `
FROM players
WHERE game_id = $1 AND is_active
ORDER BY joined_at, id`

func (q *Queries) ActivePlayers(ctx context.Context, gameID uuid.UUID) ([]session.Player, error) {
	rows, err := q.db.Query(ctx, activePlayers, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	players := make([]session.Player, 0)
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

const playerActive = `SELECT is_active FROM players WHERE game_id = $1 AND id = $2`

func (q *Queries) PlayerActive(ctx context.Context, gameID, playerID uuid.UUID) (bool, error) {
	var active bool
	err := q.db.QueryRow(ctx, playerActive, gameID, playerID).Scan(&active)
	return active, err
}

// AnswerKey is the scoring input for one option of one question.
type AnswerKey struct {
	Points    int
	TimeLimit time.Duration
	IsCorrect bool
}

const answerKey = `
SELECT q.points, q.time_limit_ms, o.is_correct
FROM options o
JOIN questions q ON q.id = o.question_id
WHERE q.game_id = $1 AND q.id = $2 AND o.id = $3`

func (q *Queries) AnswerKey(ctx context.Context, gameID, questionID, optionID uuid.UUID) (AnswerKey, error) {
	var (
		k       AnswerKey
		limitMs int64
	)
	err := q.db.QueryRow(ctx, answerKey, gameID, questionID, optionID).Scan(&k.Points, &limitMs, &k.IsCorrect)
	k.TimeLimit = time.Duration(limitMs) * time.Millisecond
	return k, err
}

const insertAnswer = `
INSERT INTO answers (id, player_id, question_id, option_id, is_correct, points, time_to_answer_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (player_id, question_id) DO NOTHING`

func (q *Queries) InsertAnswer(ctx context.Context, req session.AnswerRequest, outcome session.AnswerOutcome) (int64, error) {
	tag, err := q.db.Exec(ctx, insertAnswer,
		uuid.New(), req.PlayerID, req.QuestionID, req.OptionID,
		outcome.IsCorrect, outcome.Points, req.TimeToAnswerMs)
	return tag.RowsAffected(), err
}

const addScore = `UPDATE players SET score = score + $2 WHERE id = $1`

func (q *Queries) AddScore(ctx context.Context, playerID uuid.UUID, points int) error {
	_, err := q.db.Exec(ctx, addScore, playerID, points)
	return err
}

const insertGame = `
INSERT INTO games (id, code, title, host_id, status)
VALUES ($1, $2, $3, $4, $5)`

func (q *Queries) InsertGame(ctx context.Context, g session.Game) error {
	_, err := q.db.Exec(ctx, insertGame, g.ID, g.Code, g.Title, g.HostID, g.Status)
	return err
}

const insertQuestion = `
INSERT INTO questions (id, game_id, position, body, points, time_limit_ms)
VALUES ($1, $2, $3, $4, $5, $6)`

func (q *Queries) InsertQuestion(ctx context.Context, gameID uuid.UUID, position int, qs QuestionSeed) error {
	_, err := q.db.Exec(ctx, insertQuestion, qs.ID, gameID, position, qs.Body, qs.Points, qs.TimeLimit.Milliseconds())
	return err
}

const insertOption = `
INSERT INTO options (id, question_id, body, is_correct)
VALUES ($1, $2, $3, $4)`

func (q *Queries) InsertOption(ctx context.Context, questionID uuid.UUID, o OptionSeed) error {
	_, err := q.db.Exec(ctx, insertOption, o.ID, questionID, o.Body, o.IsCorrect)
	return err
}
