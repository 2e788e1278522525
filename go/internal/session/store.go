package session

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// GameStatus is the lifecycle state of a game.
type GameStatus string

const (
	GameStatusWaiting    GameStatus = "waiting"
	GameStatusInProgress GameStatus = "in_progress"
	GameStatusCompleted  GameStatus = "completed"
	GameStatusCancelled  GameStatus = "cancelled"
)

// Terminal reports whether no further play can happen in this state.
func (s GameStatus) Terminal() bool {
	return s == GameStatusCompleted || s == GameStatusCancelled
}

type Game struct {
	ID     uuid.UUID  `json:"id"`
	Code   string     `json:"code"`
	Title  string     `json:"title,omitempty"`
	HostID string     `json:"hostId"`
	Status GameStatus `json:"status"`
}

type Player struct {
	ID       uuid.UUID `json:"id"`
	GameID   uuid.UUID `json:"gameId"`
	UserID   string    `json:"userId,omitempty"`
	Name     string    `json:"name"`
	Score    int       `json:"score"`
	IsActive bool      `json:"isActive"`
	JoinedAt time.Time `json:"joinedAt"`
}

// AnswerRequest is both the ANSWER_QUESTION payload and the store input.
type AnswerRequest struct {
	GameID         uuid.UUID `json:"gameId"`
	PlayerID       uuid.UUID `json:"playerId"`
	QuestionID     uuid.UUID `json:"questionId"`
	OptionID       uuid.UUID `json:"optionId"`
	TimeToAnswerMs int64     `json:"timeToAnswerMs"`
}

type AnswerOutcome struct {
	IsCorrect bool `json:"isCorrect"`
	Points    int  `json:"points"`
}

// GameStore is the persistent game authority. Each call is atomic on its own;
// the coordinator never assumes ordering between concurrent calls.
type GameStore interface {
	// FindGameByCode returns nil, nil when no game has that code.
	FindGameByCode(ctx context.Context, code string) (*Game, error)
	IsHost(ctx context.Context, gameID uuid.UUID, userID string) (bool, error)
	// AddPlayer returns the existing active player when userID already joined.
	AddPlayer(ctx context.Context, gameID uuid.UUID, name, userID string) (*Player, error)
	DeactivatePlayer(ctx context.Context, gameID, playerID uuid.UUID) (bool, error)
	ListActivePlayers(ctx context.Context, gameID uuid.UUID) ([]Player, error)
	StartGame(ctx context.Context, gameID uuid.UUID, hostID string) (bool, error)
	RecordAnswer(ctx context.Context, req AnswerRequest) (*AnswerOutcome, error)
}

// Record is a domain event handed to the Journal after it was broadcast.
type Record struct {
	ID         uuid.UUID
	GameID     uuid.UUID
	Event      EventName
	Payload    any
	OccurredAt time.Time
}

// Journal receives a copy of every broadcast domain event.
type Journal interface {
	Publish(ctx context.Context, rec Record) error
}

type noopJournal struct{}

func (noopJournal) Publish(context.Context, Record) error { return nil }
