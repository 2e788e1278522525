// Package admin exposes operator RPCs over Connect. Messages are protobuf
// well-known types so no generated code is needed.
package admin

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/mcdev12/quizlive/go/internal/session"
)

const (
	ServiceName = "quizlive.admin.v1.AdminService"

	GetStatsProcedure      = "/" + ServiceName + "/GetStats"
	StopCountdownProcedure = "/" + ServiceName + "/StopCountdown"
)

// Coordinator is the part of the session coordinator operators can reach.
type Coordinator interface {
	Stats(ctx context.Context) (session.Stats, error)
	StopCountdown(ctx context.Context, gameID uuid.UUID) (bool, error)
}

type Service struct {
	coordinator Coordinator
}

func NewService(coordinator Coordinator) *Service {
	return &Service{coordinator: coordinator}
}

// NewHandler returns the mount path and handler for the admin service.
func NewHandler(svc *Service, opts ...connect.HandlerOption) (string, http.Handler) {
	getStats := connect.NewUnaryHandler(GetStatsProcedure, svc.GetStats, opts...)
	stopCountdown := connect.NewUnaryHandler(StopCountdownProcedure, svc.StopCountdown, opts...)

	return "/" + ServiceName + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case GetStatsProcedure:
			getStats.ServeHTTP(w, r)
		case StopCountdownProcedure:
			stopCountdown.ServeHTTP(w, r)
		default:
			http.NotFound(w, r)
		}
	})
}

func (s *Service) GetStats(ctx context.Context, _ *connect.Request[emptypb.Empty]) (*connect.Response[structpb.Struct], error) {
	stats, err := s.coordinator.Stats(ctx)
	if err != nil {
		return nil, coordinatorError(err)
	}

	members := make(map[string]any, len(stats.RoomMembers))
	for gameID, n := range stats.RoomMembers {
		members[gameID] = n
	}
	body, err := structpb.NewStruct(map[string]any{
		"connections": stats.Connections,
		"rooms":       stats.Rooms,
		"countdowns":  stats.Countdowns,
		"roomMembers": members,
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return connect.NewResponse(body), nil
}

func (s *Service) StopCountdown(ctx context.Context, req *connect.Request[wrapperspb.StringValue]) (*connect.Response[wrapperspb.BoolValue], error) {
	gameID, err := uuid.Parse(req.Msg.GetValue())
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	stopped, err := s.coordinator.StopCountdown(ctx, gameID)
	if err != nil {
		return nil, coordinatorError(err)
	}
	log.Info().
		Str("game_id", gameID.String()).
		Bool("stopped", stopped).
		Msg("Operator stopped countdown")
	return connect.NewResponse(wrapperspb.Bool(stopped)), nil
}

func coordinatorError(err error) error {
	switch {
	case errors.Is(err, session.ErrStopped):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}
