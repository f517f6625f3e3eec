package rpcserver

import (
	"context"

	"google.golang.org/grpc"

	"github.com/huddlecal/huddle/libs/grpcx"
	"github.com/huddlecal/huddle/services/calendar-service/internal/ranking"
)

// Client calls RankingService over an existing connection.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) Evaluate(ctx context.Context, req *EvaluateRequest, opts ...grpc.CallOption) (*ranking.Result, error) {
	out := new(ranking.Result)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(grpcx.JSONCodecName)}, opts...)
	if err := c.cc.Invoke(ctx, EvaluateMethod, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
