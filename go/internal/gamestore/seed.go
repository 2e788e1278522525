package gamestore

import (
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/quizlive/go/internal/session"
)

// GameSeed describes a fully authored game. Authoring lives outside this
// service; seeds exist for local development and tests.
type GameSeed struct {
	Game      session.Game
	Questions []QuestionSeed
}

type QuestionSeed struct {
	ID        uuid.UUID
	Body      string
	Points    int
	TimeLimit time.Duration
	Options   []OptionSeed
}

type OptionSeed struct {
	ID        uuid.UUID
	Body      string
	IsCorrect bool
}

// DemoGame returns a small waiting game joinable with code.
func DemoGame(code, hostID string) GameSeed {
	q := func(body string, options ...OptionSeed) QuestionSeed {
		return QuestionSeed{
			ID:        uuid.New(),
			Body:      body,
			Points:    DefaultQuestionPoints,
			TimeLimit: DefaultTimeLimit,
			Options:   options,
		}
	}
	opt := func(body string, correct bool) OptionSeed {
		return OptionSeed{ID: uuid.New(), Body: body, IsCorrect: correct}
	}
	return GameSeed{
		Game: session.Game{
			ID:     uuid.New(),
			Code:   code,
			Title:  "Demo quiz",
			HostID: hostID,
			Status: session.GameStatusWaiting,
		},
		Questions: []QuestionSeed{
			q("Which protocol upgrades an HTTP connection to full duplex?",
				opt("WebSocket", true), opt("FTP", false), opt("SMTP", false)),
			q("How many bits are in a UUID?",
				opt("64", false), opt("128", true), opt("256", false)),
		},
	}
}
