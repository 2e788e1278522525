package session

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const maxPlayerNameLength = 32

func (c *Coordinator) handleMessage(connID string, raw []byte) {
	if _, ok := c.registry.Get(connID); !ok {
		log.Debug().Str("connection_id", connID).Msg("Dropping message from unknown connection")
		return
	}

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.replyError(connID, gameDialect, newError(KindInvalidState, err, "invalid request"))
		return
	}

	switch msg.Event {
	case EventJoinGame:
		c.onJoin(connID, gameDialect, msg.Data)
	case EventJoinLobby:
		c.onJoin(connID, lobbyDialect, msg.Data)
	case EventLeaveGame:
		c.onLeave(connID, gameDialect, msg.Data)
	case EventLeaveLobby:
		c.onLeave(connID, lobbyDialect, msg.Data)
	case EventStartGame:
		c.onStartGame(connID, msg.Data)
	case EventAnswerQuestion:
		c.onAnswer(connID, msg.Data)
	case EventGetLobbyPlayers:
		c.onLobbyPlayers(connID, msg.Data)
	case EventStartCountdown:
		c.onStartCountdown(connID, msg.Data)
	case EventStopCountdown:
		c.onStopCountdown(connID, msg.Data)
	case EventPing:
		c.onPing(connID)
	default:
		c.replyError(connID, gameDialect, invalidState("unknown event %q", msg.Event))
		return
	}
	c.metrics.Messages.WithLabelValues(string(msg.Event)).Inc()
}

func decode[T any](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 {
		return v, invalidState("missing payload")
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, newError(KindInvalidState, err, "invalid payload")
	}
	return v, nil
}

func (r *JoinRequest) normalize() error {
	r.GameCode = strings.ToUpper(strings.TrimSpace(r.GameCode))
	r.PlayerName = strings.TrimSpace(r.PlayerName)
	r.UserID = strings.TrimSpace(r.UserID)
	switch {
	case r.GameCode == "":
		return invalidState("gameCode is required")
	case r.PlayerName == "":
		return invalidState("playerName is required")
	case utf8.RuneCountInString(r.PlayerName) > maxPlayerNameLength:
		return invalidState("playerName must be at most %d characters", maxPlayerNameLength)
	}
	return nil
}

func requireID(id uuid.UUID, field string) error {
	if id == uuid.Nil {
		return invalidState("%s is required", field)
	}
	return nil
}

type joinResult struct {
	game    *Game
	player  Player
	players []Player
}

func (c *Coordinator) onJoin(connID string, d dialect, data json.RawMessage) {
	req, err := decode[JoinRequest](data)
	if err == nil {
		err = req.normalize()
	}
	if err != nil {
		c.replyError(connID, d, err)
		return
	}

	await(c, func(ctx context.Context) (joinResult, error) {
		return c.admitPlayer(ctx, req)
	}, func(res joinResult, err error) {
		if err != nil {
			c.replyError(connID, d, err)
			return
		}
		c.completeJoin(connID, d, res)
	})
}

func (c *Coordinator) admitPlayer(ctx context.Context, req JoinRequest) (joinResult, error) {
	game, err := c.store.FindGameByCode(ctx, req.GameCode)
	if err != nil {
		return joinResult{}, storeFailure(err, "failed to look up game")
	}
	if game == nil {
		return joinResult{}, notFound("game %s not found", req.GameCode)
	}
	if game.Status != GameStatusWaiting {
		return joinResult{}, invalidState("game %s is not accepting players", req.GameCode)
	}

	player, err := c.store.AddPlayer(ctx, game.ID, req.PlayerName, req.UserID)
	if err != nil {
		return joinResult{}, storeFailure(err, "failed to join game")
	}
	players, err := c.store.ListActivePlayers(ctx, game.ID)
	if err != nil {
		return joinResult{}, storeFailure(err, "failed to load players")
	}
	return joinResult{game: game, player: *player, players: players}, nil
}

func (c *Coordinator) completeJoin(connID string, d dialect, res joinResult) {
	gameID := res.game.ID

	conn, ok := c.registry.Get(connID)
	if !ok {
		log.Warn().
			Str("connection_id", connID).
			Str("game_id", gameID.String()).
			Str("player_id", res.player.ID.String()).
			Msg("Connection closed before join completed")
		c.abandon(gameID, res.player.ID)
		return
	}

	if prev := conn.Binding; prev != nil && (prev.GameID != gameID || prev.PlayerID != res.player.ID) {
		c.registry.Unbind(connID)
		c.rooms.Leave(connID, prev.GameID)
		c.release(*prev)
	}

	c.registry.Bind(connID, Binding{GameID: gameID, PlayerID: res.player.ID, Lobby: d == lobbyDialect})
	c.rooms.Join(connID, gameID)

	c.broadcast(gameID, d.playerJoined, PlayerJoinedPayload{
		Player:  res.player,
		Players: res.players,
	})
	c.rooms.Send(connID, d.joined, JoinedPayload{
		GameID:  gameID,
		Player:  res.player,
		Players: res.players,
	})

	log.Info().
		Str("connection_id", connID).
		Str("game_id", gameID.String()).
		Str("player_id", res.player.ID.String()).
		Int("players", len(res.players)).
		Msg("Player joined game")
}

// abandon deactivates a player admitted for a connection that is already gone.
func (c *Coordinator) abandon(gameID, playerID uuid.UUID) {
	if len(c.registry.BoundTo(gameID, playerID)) > 0 {
		return
	}
	await(c, func(ctx context.Context) (bool, error) {
		return c.store.DeactivatePlayer(ctx, gameID, playerID)
	}, func(_ bool, err error) {
		if err != nil {
			log.Error().
				Err(err).
				Str("game_id", gameID.String()).
				Str("player_id", playerID.String()).
				Msg("Failed to deactivate abandoned player")
		}
	})
}

func (c *Coordinator) onLeave(connID string, d dialect, data json.RawMessage) {
	req, err := decode[LeaveRequest](data)
	if err == nil {
		err = requireID(req.GameID, "gameId")
	}
	if err == nil {
		err = requireID(req.PlayerID, "playerId")
	}
	if err == nil && !c.boundAs(connID, req.GameID, req.PlayerID) {
		err = forbidden("cannot leave on behalf of another player")
	}
	if err != nil {
		c.replyError(connID, d, err)
		return
	}

	type roster struct {
		players []Player
		err     error
	}
	await(c, func(ctx context.Context) (roster, error) {
		ok, err := c.store.DeactivatePlayer(ctx, req.GameID, req.PlayerID)
		if err != nil {
			return roster{}, storeFailure(err, "failed to leave game")
		}
		if !ok {
			return roster{}, newError(KindOperationFailed, nil, "failed to leave game")
		}
		players, err := c.store.ListActivePlayers(ctx, req.GameID)
		return roster{players: players, err: err}, nil
	}, func(r roster, err error) {
		if err != nil {
			c.replyError(connID, d, err)
			return
		}
		// Every connection bound to the player loses its membership, not only the caller.
		for _, id := range c.registry.BoundTo(req.GameID, req.PlayerID) {
			c.registry.Unbind(id)
			c.rooms.Leave(id, req.GameID)
		}

		c.announceLeft(d, req.GameID, req.PlayerID, r.players, r.err)
		c.rooms.Send(connID, d.left, LeftPayload{GameID: req.GameID, PlayerID: req.PlayerID})
		c.reconcileCountdown(req.GameID)

		log.Info().
			Str("connection_id", connID).
			Str("game_id", req.GameID.String()).
			Str("player_id", req.PlayerID.String()).
			Msg("Player left game")
	})
}

// boundAs reports whether the connection is bound to the given player.
func (c *Coordinator) boundAs(connID string, gameID, playerID uuid.UUID) bool {
	conn, ok := c.registry.Get(connID)
	return ok && conn.Binding != nil &&
		conn.Binding.GameID == gameID && conn.Binding.PlayerID == playerID
}

func (c *Coordinator) onStartGame(connID string, data json.RawMessage) {
	req, err := decode[StartGameRequest](data)
	if err == nil {
		err = requireID(req.GameID, "gameId")
	}
	if err == nil && strings.TrimSpace(req.HostID) == "" {
		err = invalidState("hostId is required")
	}
	if err != nil {
		c.replyError(connID, gameDialect, err)
		return
	}

	await(c, func(ctx context.Context) (time.Time, error) {
		isHost, err := c.store.IsHost(ctx, req.GameID, req.HostID)
		if err != nil {
			return time.Time{}, storeFailure(err, "failed to verify host")
		}
		if !isHost {
			return time.Time{}, forbidden("only the host can start the game")
		}
		started, err := c.store.StartGame(ctx, req.GameID, req.HostID)
		if err != nil {
			return time.Time{}, storeFailure(err, "failed to start game")
		}
		if !started {
			return time.Time{}, newError(KindOperationFailed, nil, "game could not be started")
		}
		return c.clock.Now(), nil
	}, func(startedAt time.Time, err error) {
		if err != nil {
			c.replyError(connID, gameDialect, err)
			return
		}
		c.broadcast(req.GameID, EventGameStarted, GameStartedPayload{
			GameID:    req.GameID,
			StartedAt: startedAt,
		})
		log.Info().Str("game_id", req.GameID.String()).Msg("Game started")
	})
}

func (c *Coordinator) onAnswer(connID string, data json.RawMessage) {
	req, err := decode[AnswerRequest](data)
	ids := []struct {
		id    uuid.UUID
		field string
	}{
		{req.GameID, "gameId"},
		{req.PlayerID, "playerId"},
		{req.QuestionID, "questionId"},
		{req.OptionID, "optionId"},
	}
	for i := 0; err == nil && i < len(ids); i++ {
		err = requireID(ids[i].id, ids[i].field)
	}
	if err == nil && req.TimeToAnswerMs < 0 {
		err = invalidState("timeToAnswerMs must not be negative")
	}
	if err != nil {
		c.replyError(connID, gameDialect, err)
		return
	}

	await(c, func(ctx context.Context) (*AnswerOutcome, error) {
		outcome, err := c.store.RecordAnswer(ctx, req)
		if err != nil {
			return nil, storeFailure(err, "failed to record answer")
		}
		if outcome == nil {
			return nil, newError(KindOperationFailed, nil, "failed to record answer")
		}
		return outcome, nil
	}, func(outcome *AnswerOutcome, err error) {
		if err != nil {
			c.replyError(connID, gameDialect, err)
			return
		}
		c.broadcast(req.GameID, EventPlayerAnswered, PlayerAnsweredPayload{
			GameID:     req.GameID,
			PlayerID:   req.PlayerID,
			QuestionID: req.QuestionID,
			IsCorrect:  outcome.IsCorrect,
			Points:     outcome.Points,
		})
	})
}

func (c *Coordinator) onLobbyPlayers(connID string, data json.RawMessage) {
	req, err := decode[LobbyPlayersRequest](data)
	if err == nil {
		err = requireID(req.GameID, "gameId")
	}
	if err != nil {
		c.replyError(connID, lobbyDialect, err)
		return
	}

	await(c, func(ctx context.Context) ([]Player, error) {
		players, err := c.store.ListActivePlayers(ctx, req.GameID)
		if err != nil {
			return nil, storeFailure(err, "failed to load players")
		}
		return players, nil
	}, func(players []Player, err error) {
		if err != nil {
			c.replyError(connID, lobbyDialect, err)
			return
		}
		c.rooms.Send(connID, EventLobbyPlayers, LobbyPlayersPayload{GameID: req.GameID, Players: players})
	})
}

func (c *Coordinator) onStartCountdown(connID string, data json.RawMessage) {
	req, err := decode[StartCountdownRequest](data)
	if err == nil {
		err = requireID(req.GameID, "gameId")
	}
	maxMs := c.cfg.MaxCountdown.Milliseconds()
	if err == nil && (req.DurationMs <= 0 || req.DurationMs > maxMs) {
		err = invalidState("durationMs must be between 1 and %d", maxMs)
	}
	if err != nil {
		c.replyError(connID, gameDialect, err)
		return
	}
	c.countdowns.Start(req.GameID, time.Duration(req.DurationMs)*time.Millisecond)
}

func (c *Coordinator) onStopCountdown(connID string, data json.RawMessage) {
	req, err := decode[StopCountdownRequest](data)
	if err == nil {
		err = requireID(req.GameID, "gameId")
	}
	if err != nil {
		c.replyError(connID, gameDialect, err)
		return
	}
	c.countdowns.Stop(req.GameID)
}

func (c *Coordinator) onPing(connID string) {
	c.registry.Touch(connID)
	c.rooms.Send(connID, EventPong, PongPayload{Timestamp: c.clock.Now().UnixMilli()})
}

// replyError sends a classified error to the originating connection only.
func (c *Coordinator) replyError(connID string, d dialect, err error) {
	kind := KindOf(err)
	c.metrics.Errors.WithLabelValues(string(kind)).Inc()

	ev := log.Warn()
	if kind == KindInternal || kind == KindOperationFailed {
		ev = log.Error()
	}
	ev.Err(err).
		Str("connection_id", connID).
		Str("kind", string(kind)).
		Msg("Request rejected")

	c.rooms.Send(connID, d.failure, ErrorPayload{
		Message: clientMessage(err),
		Code:    kind,
	})
}
