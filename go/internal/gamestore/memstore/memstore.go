// Package memstore is an in-memory GameStore for tests and local development.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/mcdev12/quizlive/go/internal/gamestore"
	"github.com/mcdev12/quizlive/go/internal/session"
)

type question struct {
	gameID    uuid.UUID
	points    int
	timeLimit time.Duration
	options   map[uuid.UUID]bool
}

type player struct {
	session.Player
	seq int
}

type answerKey struct {
	playerID   uuid.UUID
	questionID uuid.UUID
}

// Store keeps every game in process memory. Safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	clock clockwork.Clock
	seq   int

	games     map[uuid.UUID]*session.Game
	codes     map[string]uuid.UUID
	questions map[uuid.UUID]question
	players   map[uuid.UUID]*player
	answers   map[answerKey]struct{}
}

var _ session.GameStore = (*Store)(nil)

func New() *Store {
	return NewWithClock(clockwork.NewRealClock())
}

func NewWithClock(clock clockwork.Clock) *Store {
	return &Store{
		clock:     clock,
		games:     make(map[uuid.UUID]*session.Game),
		codes:     make(map[string]uuid.UUID),
		questions: make(map[uuid.UUID]question),
		players:   make(map[uuid.UUID]*player),
		answers:   make(map[answerKey]struct{}),
	}
}

// Seed adds a game and its questions.
func (s *Store) Seed(seed gamestore.GameSeed) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	game := seed.Game
	game.Code = strings.ToUpper(game.Code)
	if _, exists := s.codes[game.Code]; exists {
		return fmt.Errorf("game code %s already in use", game.Code)
	}
	if game.ID == uuid.Nil {
		game.ID = uuid.New()
	}
	if game.Status == "" {
		game.Status = session.GameStatusWaiting
	}

	s.games[game.ID] = &game
	s.codes[game.Code] = game.ID
	for _, q := range seed.Questions {
		options := make(map[uuid.UUID]bool, len(q.Options))
		for _, o := range q.Options {
			options[o.ID] = o.IsCorrect
		}
		s.questions[q.ID] = question{
			gameID:    game.ID,
			points:    q.Points,
			timeLimit: q.TimeLimit,
			options:   options,
		}
	}
	return nil
}

// SetStatus forces a game's status, bypassing the host check.
func (s *Store) SetStatus(gameID uuid.UUID, status session.GameStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[gameID]
	if !ok {
		return gamestore.ErrGameNotFound
	}
	game.Status = status
	return nil
}

func (s *Store) FindGameByCode(_ context.Context, code string) (*session.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.codes[strings.ToUpper(code)]
	if !ok {
		return nil, nil
	}
	game := *s.games[id]
	return &game, nil
}

func (s *Store) IsHost(_ context.Context, gameID uuid.UUID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[gameID]
	return ok && game.HostID == userID, nil
}

func (s *Store) AddPlayer(_ context.Context, gameID uuid.UUID, name, userID string) (*session.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	game, ok := s.games[gameID]
	if !ok {
		return nil, gamestore.ErrGameNotFound
	}
	if game.Status != session.GameStatusWaiting {
		return nil, gamestore.ErrGameNotWaiting
	}

	if userID != "" {
		var inactive *player
		for _, p := range s.players {
			if p.GameID != gameID || p.UserID != userID {
				continue
			}
			if p.IsActive {
				existing := p.Player
				return &existing, nil
			}
			if inactive == nil || p.seq > inactive.seq {
				inactive = p
			}
		}
		if inactive != nil {
			s.seq++
			inactive.seq = s.seq
			inactive.Name = name
			inactive.IsActive = true
			inactive.JoinedAt = s.clock.Now()
			rejoined := inactive.Player
			return &rejoined, nil
		}
	}

	s.seq++
	p := &player{
		Player: session.Player{
			ID:       uuid.New(),
			GameID:   gameID,
			UserID:   userID,
			Name:     name,
			IsActive: true,
			JoinedAt: s.clock.Now(),
		},
		seq: s.seq,
	}
	s.players[p.ID] = p
	added := p.Player
	return &added, nil
}

func (s *Store) DeactivatePlayer(_ context.Context, gameID, playerID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.players[playerID]
	if !ok || p.GameID != gameID || !p.IsActive {
		return false, nil
	}
	p.IsActive = false
	return true, nil
}

func (s *Store) ListActivePlayers(_ context.Context, gameID uuid.UUID) ([]session.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := make([]*player, 0)
	for _, p := range s.players {
		if p.GameID == gameID && p.IsActive {
			active = append(active, p)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].seq < active[j].seq })

	players := make([]session.Player, len(active))
	for i, p := range active {
		players[i] = p.Player
	}
	return players, nil
}

func (s *Store) StartGame(_ context.Context, gameID uuid.UUID, hostID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	game, ok := s.games[gameID]
	if !ok || game.HostID != hostID || game.Status != session.GameStatusWaiting {
		return false, nil
	}
	game.Status = session.GameStatusInProgress
	return true, nil
}

func (s *Store) RecordAnswer(_ context.Context, req session.AnswerRequest) (*session.AnswerOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	game, ok := s.games[req.GameID]
	if !ok {
		return nil, gamestore.ErrGameNotFound
	}
	if game.Status != session.GameStatusInProgress {
		return nil, gamestore.ErrGameNotInProgress
	}
	p, ok := s.players[req.PlayerID]
	if !ok || p.GameID != req.GameID || !p.IsActive {
		return nil, gamestore.ErrPlayerInactive
	}
	q, ok := s.questions[req.QuestionID]
	if !ok || q.gameID != req.GameID {
		return nil, gamestore.ErrQuestionNotFound
	}
	correct, ok := q.options[req.OptionID]
	if !ok {
		return nil, gamestore.ErrQuestionNotFound
	}

	key := answerKey{playerID: req.PlayerID, questionID: req.QuestionID}
	if _, answered := s.answers[key]; answered {
		return nil, gamestore.ErrAlreadyAnswered
	}
	s.answers[key] = struct{}{}

	points := gamestore.Score(correct, q.points, q.timeLimit, req.TimeToAnswerMs)
	p.Score += points
	return &session.AnswerOutcome{IsCorrect: correct, Points: points}, nil
}
