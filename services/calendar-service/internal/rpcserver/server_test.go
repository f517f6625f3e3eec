package rpcserver

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/huddlecal/huddle/libs/grpcx"
	"github.com/huddlecal/huddle/libs/metrics"
	"github.com/huddlecal/huddle/services/calendar-service/internal/ranking"
)

func startServer(t *testing.T) *Client {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpcx.NewServer(logger)
	Register(srv, logger, metrics.New())
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpcx.Dial(lis.Addr().String(), grpcx.DialOptions{JSON: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn)
}

func TestEvaluateOverGRPC(t *testing.T) {
	client := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start, _ := ranking.ParseDate("2025-06-01")
	joined := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	res, err := client.Evaluate(ctx, &EvaluateRequest{
		Definition: ranking.Definition{
			ID:        "cal-1",
			Type:      ranking.TimeBased,
			StartDate: start,
			EndDate:   start,
			Hours:     &ranking.HourRange{Start: 9, End: 12},
		},
		Participants: []ranking.Participant{
			{ID: "alice", JoinedAt: joined, Availability: []string{"2025-06-01T09:00:00", "2025-06-01T09:30:00", "2025-06-01T10:00:00"}},
			{ID: "bob", JoinedAt: joined.Add(time.Minute), Availability: []string{"2025-06-01T09:30:00", "2025-06-01T10:00:00", "2025-06-01T10:30:00"}},
		},
		Request: ranking.Request{DurationHours: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, ranking.TimeBased, res.Type)
	assert.Equal(t, 6, res.Slots)
	assert.Len(t, res.Histogram, 6)
	require.Len(t, res.Candidates, 3)
	top := res.Candidates[0]
	assert.Equal(t, 1, top.Rank)
	assert.Equal(t, []string{"alice", "bob"}, top.ParticipantIDs)
	require.NotNil(t, top.Window)
	assert.Equal(t, "2025-06-01T09:30:00", top.Window.StartSlotKey)
	assert.True(t, top.Window.End.Equal(time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)))
}

func TestEvaluateInvalidDefinition(t *testing.T) {
	client := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	start, _ := ranking.ParseDate("2025-06-02")
	end, _ := ranking.ParseDate("2025-06-01")
	_, err := client.Evaluate(ctx, &EvaluateRequest{
		Definition: ranking.Definition{Type: ranking.DayBased, StartDate: start, EndDate: end},
	})
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
