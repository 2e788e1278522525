package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/quizlive/go/internal/gamestore"
	"github.com/mcdev12/quizlive/go/internal/session"
)

// Quiz mirrors one entry of the quizzes JSON file
type Quiz struct {
	Code      string     `json:"code"`
	Title     string     `json:"title"`
	HostID    string     `json:"host_id"`
	Questions []Question `json:"questions"`
}

type Question struct {
	Body        string   `json:"body"`
	Points      int      `json:"points"`
	TimeLimitMs int64    `json:"time_limit_ms"`
	Options     []Option `json:"options"`
}

type Option struct {
	Body    string `json:"body"`
	Correct bool   `json:"correct"`
}

func parseQuizzes(data []byte) ([]gamestore.GameSeed, error) {
	var quizzes []Quiz
	if err := json.Unmarshal(data, &quizzes); err != nil {
		return nil, fmt.Errorf("unmarshal quizzes: %w", err)
	}

	seeds := make([]gamestore.GameSeed, 0, len(quizzes))
	for i, q := range quizzes {
		seed, err := q.seed()
		if err != nil {
			return nil, fmt.Errorf("quiz %d: %w", i, err)
		}
		seeds = append(seeds, seed)
	}
	return seeds, nil
}

func (q Quiz) seed() (gamestore.GameSeed, error) {
	if q.Code == "" || q.HostID == "" {
		return gamestore.GameSeed{}, errors.New("code and host_id are required")
	}

	seed := gamestore.GameSeed{
		Game: session.Game{
			ID:     uuid.New(),
			Code:   strings.ToUpper(q.Code),
			Title:  q.Title,
			HostID: q.HostID,
			Status: session.GameStatusWaiting,
		},
	}
	for n, question := range q.Questions {
		qs := gamestore.QuestionSeed{
			ID:        uuid.New(),
			Body:      question.Body,
			Points:    question.Points,
			TimeLimit: time.Duration(question.TimeLimitMs) * time.Millisecond,
		}
		if qs.Points == 0 {
			qs.Points = gamestore.DefaultQuestionPoints
		}
		if qs.TimeLimit == 0 {
			qs.TimeLimit = gamestore.DefaultTimeLimit
		}

		correct := 0
		for _, o := range question.Options {
			if o.Correct {
				correct++
			}
			qs.Options = append(qs.Options, gamestore.OptionSeed{ID: uuid.New(), Body: o.Body, IsCorrect: o.Correct})
		}
		if len(qs.Options) < 2 || correct != 1 {
			return gamestore.GameSeed{}, fmt.Errorf("question %d needs at least two options and exactly one correct", n+1)
		}
		seed.Questions = append(seed.Questions, qs)
	}
	return seed, nil
}
