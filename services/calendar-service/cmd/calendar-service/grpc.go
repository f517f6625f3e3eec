package main

import (
	"context"
	"log/slog"
	"net"

	"github.com/huddlecal/huddle/libs/config"
	"github.com/huddlecal/huddle/libs/grpcx"
	"github.com/huddlecal/huddle/libs/metrics"
	"github.com/huddlecal/huddle/services/calendar-service/internal/rpcserver"
)

func startGrpcServer(ctx context.Context, logger *slog.Logger, m *metrics.Metrics) error {
	port, err := config.Port("GRPC_PORT", "9090")
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}

	srv := grpcx.NewServer(logger)
	rpcserver.Register(srv, logger, m)

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()

	return nil
}
