package rpcserver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/huddlecal/huddle/libs/metrics"
	otelx "github.com/huddlecal/huddle/libs/otel"
	"github.com/huddlecal/huddle/services/calendar-service/internal/ranking"
)

const (
	ServiceName    = "huddle.ranking.v1.RankingService"
	EvaluateMethod = "/" + ServiceName + "/Evaluate"
)

// EvaluateRequest carries everything needed to rank; nothing is loaded from storage.
type EvaluateRequest struct {
	Definition   ranking.Definition    `json:"definition"`
	Participants []ranking.Participant `json:"participants"`
	Request      ranking.Request       `json:"request"`
}

type RankingServer interface {
	Evaluate(ctx context.Context, req *EvaluateRequest) (*ranking.Result, error)
}

type server struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Register installs the ranking service on srv. Calls must use the JSON codec.
func Register(srv *grpc.Server, logger *slog.Logger, m *metrics.Metrics) {
	srv.RegisterService(&serviceDesc, &server{logger: logger, metrics: m})
}

func (s *server) Evaluate(ctx context.Context, req *EvaluateRequest) (*ranking.Result, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "empty request")
	}
	typ := req.Definition.Type.String()
	_, span := otelx.StartSpan(ctx, "ranking.Evaluate",
		attribute.String("calendar.type", typ),
		attribute.Int("participants", len(req.Participants)),
	)
	start := time.Now()
	res, err := ranking.Evaluate(req.Definition, req.Participants, req.Request)
	s.metrics.ObserveEvaluation(typ, time.Since(start), len(res.Candidates), len(res.Stale), err)
	otelx.EndSpan(span, err)

	switch {
	case err == nil:
		return &res, nil
	case errors.Is(err, ranking.ErrInvalidDefinition):
		return nil, status.Error(codes.InvalidArgument, err.Error())
	default:
		s.logger.ErrorContext(ctx, "evaluate failed", "err", err)
		return nil, status.Error(codes.Internal, "evaluate failed")
	}
}

func evaluateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(EvaluateRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(RankingServer).Evaluate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: EvaluateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(RankingServer).Evaluate(ctx, req.(*EvaluateRequest))
	}
	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RankingServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Evaluate", Handler: evaluateHandler},
	},
	Metadata: "huddle/ranking/v1/ranking.json",
}
