package gamestore

import (
	"fmt"

	"github.com/mcdev12/quizlive/go/internal/session"
)

// Errors returned by GameStore implementations. They wrap the session
// sentinels so the coordinator can classify them.
var (
	ErrGameNotFound      = fmt.Errorf("game %w", session.ErrNotFound)
	ErrQuestionNotFound  = fmt.Errorf("question or option %w", session.ErrNotFound)
	ErrGameNotWaiting    = fmt.Errorf("game is not accepting players: %w", session.ErrConflict)
	ErrGameNotInProgress = fmt.Errorf("game is not in progress: %w", session.ErrConflict)
	ErrPlayerInactive    = fmt.Errorf("player is not active in game: %w", session.ErrConflict)
	ErrAlreadyAnswered   = fmt.Errorf("answer already recorded: %w", session.ErrConflict)
)
