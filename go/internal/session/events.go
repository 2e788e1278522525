package session

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventName identifies a message on the wire in either direction.
type EventName string

// Inbound events
const (
	EventJoinGame        EventName = "JOIN_GAME"
	EventJoinLobby       EventName = "JOIN_LOBBY"
	EventLeaveGame       EventName = "LEAVE_GAME"
	EventLeaveLobby      EventName = "LEAVE_LOBBY"
	EventStartGame       EventName = "START_GAME"
	EventAnswerQuestion  EventName = "ANSWER_QUESTION"
	EventGetLobbyPlayers EventName = "GET_LOBBY_PLAYERS"
	EventStartCountdown  EventName = "START_COUNTDOWN"
	EventStopCountdown   EventName = "STOP_COUNTDOWN"
	EventPing            EventName = "PING"
)

// Outbound events
const (
	EventJoinGameSuccess   EventName = "JOIN_GAME_SUCCESS"
	EventPlayerJoined      EventName = "PLAYER_JOINED"
	EventLeaveGameSuccess  EventName = "LEAVE_GAME_SUCCESS"
	EventPlayerLeft        EventName = "PLAYER_LEFT"
	EventLobbyJoined       EventName = "LOBBY_JOINED"
	EventPlayerJoinedLobby EventName = "PLAYER_JOINED_LOBBY"
	EventLobbyLeft         EventName = "LOBBY_LEFT"
	EventPlayerLeftLobby   EventName = "PLAYER_LEFT_LOBBY"
	EventLobbyPlayers      EventName = "LOBBY_PLAYERS"
	EventGameStarted       EventName = "GAME_STARTED"
	EventPlayerAnswered    EventName = "PLAYER_ANSWERED"
	EventCountdownStart    EventName = "COUNTDOWN_START"
	EventCountdownTick     EventName = "COUNTDOWN_TICK"
	EventCountdownEnd      EventName = "COUNTDOWN_END"
	EventPong              EventName = "PONG"
	EventError             EventName = "ERROR"
	EventLobbyError        EventName = "LOBBY_ERROR"
)

// Message is an inbound client frame.
type Message struct {
	Event EventName       `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Envelope is an outbound frame. Transports marshal it as-is.
type Envelope struct {
	Event     EventName `json:"event"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// dialect selects the reply vocabulary for the two client surfaces.
type dialect struct {
	joined       EventName
	playerJoined EventName
	left         EventName
	playerLeft   EventName
	failure      EventName
}

var (
	gameDialect = dialect{
		joined:       EventJoinGameSuccess,
		playerJoined: EventPlayerJoined,
		left:         EventLeaveGameSuccess,
		playerLeft:   EventPlayerLeft,
		failure:      EventError,
	}
	lobbyDialect = dialect{
		joined:       EventLobbyJoined,
		playerJoined: EventPlayerJoinedLobby,
		left:         EventLobbyLeft,
		playerLeft:   EventPlayerLeftLobby,
		failure:      EventLobbyError,
	}
)

func dialectFor(lobby bool) dialect {
	if lobby {
		return lobbyDialect
	}
	return gameDialect
}

// Inbound payloads

type JoinRequest struct {
	GameCode   string `json:"gameCode"`
	PlayerName string `json:"playerName"`
	UserID     string `json:"userId,omitempty"`
}

type LeaveRequest struct {
	GameID   uuid.UUID `json:"gameId"`
	PlayerID uuid.UUID `json:"playerId"`
}

type StartGameRequest struct {
	GameID uuid.UUID `json:"gameId"`
	HostID string    `json:"hostId"`
}

type LobbyPlayersRequest struct {
	GameID uuid.UUID `json:"gameId"`
}

type StartCountdownRequest struct {
	GameID     uuid.UUID `json:"gameId"`
	DurationMs int64     `json:"durationMs"`
}

type StopCountdownRequest struct {
	GameID uuid.UUID `json:"gameId"`
}

// Outbound payloads

type JoinedPayload struct {
	GameID  uuid.UUID `json:"gameId"`
	Player  Player    `json:"player"`
	Players []Player  `json:"players"`
}

type PlayerJoinedPayload struct {
	Player  Player   `json:"player"`
	Players []Player `json:"players"`
}

type LeftPayload struct {
	GameID   uuid.UUID `json:"gameId"`
	PlayerID uuid.UUID `json:"playerId"`
}

type PlayerLeftPayload struct {
	GameID   uuid.UUID `json:"gameId"`
	PlayerID uuid.UUID `json:"playerId"`
	Players  []Player  `json:"players"`
}

type LobbyPlayersPayload struct {
	GameID  uuid.UUID `json:"gameId"`
	Players []Player  `json:"players"`
}

type GameStartedPayload struct {
	GameID    uuid.UUID `json:"gameId"`
	StartedAt time.Time `json:"startedAt"`
}

type PlayerAnsweredPayload struct {
	GameID     uuid.UUID `json:"gameId"`
	PlayerID   uuid.UUID `json:"playerId"`
	QuestionID uuid.UUID `json:"questionId"`
	IsCorrect  bool      `json:"isCorrect"`
	Points     int       `json:"points"`
}

type CountdownStartPayload struct {
	GameID     uuid.UUID `json:"gameId"`
	DurationMs int64     `json:"durationMs"`
	StartedAt  time.Time `json:"startedAt"`
	EndsAt     time.Time `json:"endsAt"`
}

type CountdownTickPayload struct {
	GameID           uuid.UUID `json:"gameId"`
	SecondsRemaining int64     `json:"secondsRemaining"`
	RemainingMs      int64     `json:"remainingMs"`
}

type CountdownEndPayload struct {
	GameID  uuid.UUID `json:"gameId"`
	EndedAt time.Time `json:"endedAt"`
}

type PongPayload struct {
	Timestamp int64 `json:"timestamp"`
}

// ErrorPayload is the body of ERROR and LOBBY_ERROR.
type ErrorPayload struct {
	Message string    `json:"message"`
	Code    ErrorKind `json:"code"`
}
