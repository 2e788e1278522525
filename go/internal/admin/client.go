package admin

import (
	"context"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Client calls the admin service of a running coordinator.
type Client struct {
	getStats      *connect.Client[emptypb.Empty, structpb.Struct]
	stopCountdown *connect.Client[wrapperspb.StringValue, wrapperspb.BoolValue]
}

func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	return &Client{
		getStats: connect.NewClient[emptypb.Empty, structpb.Struct](
			httpClient, baseURL+GetStatsProcedure, opts...),
		stopCountdown: connect.NewClient[wrapperspb.StringValue, wrapperspb.BoolValue](
			httpClient, baseURL+StopCountdownProcedure, opts...),
	}
}

func (c *Client) GetStats(ctx context.Context) (map[string]any, error) {
	res, err := c.getStats.CallUnary(ctx, connect.NewRequest(&emptypb.Empty{}))
	if err != nil {
		return nil, err
	}
	return res.Msg.AsMap(), nil
}

func (c *Client) StopCountdown(ctx context.Context, gameID uuid.UUID) (bool, error) {
	res, err := c.stopCountdown.CallUnary(ctx, connect.NewRequest(wrapperspb.String(gameID.String())))
	if err != nil {
		return false, err
	}
	return res.Msg.GetValue(), nil
}
