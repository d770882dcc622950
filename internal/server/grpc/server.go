// Package grpc runs the gRPC listener. It serves the standard health service
// whose status follows the database.
package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/NovaByteCorp/deliverypro/internal/config"
	"github.com/NovaByteCorp/deliverypro/pkg/errorbank"
)

// ServiceName is the health service key reported for this API.
const ServiceName = "deliverypro.Orders"

// Module exposes the gRPC server and lifecycle hooks to Fx.
var Module = fx.Module("grpc_server",
	fx.Provide(NewServer, health.NewServer),
	fx.Invoke(Register, Run),
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// NewServer builds a gRPC server whose interceptors log every call and turn
// AppErrors into status errors.
func NewServer(logger *zap.Logger) *grpc.Server {
	unary := func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		err = toStatus(err)
		logCall(logger, info.FullMethod, time.Since(start), err)
		return resp, err
	}

	stream := func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		start := time.Now()
		err := toStatus(handler(srv, ss))
		logCall(logger, info.FullMethod, time.Since(start), err)
		return err
	}

	return grpc.NewServer(
		grpc.ChainUnaryInterceptor(unary),
		grpc.ChainStreamInterceptor(stream),
	)
}

func logCall(logger *zap.Logger, method string, elapsed time.Duration, err error) {
	if err != nil {
		logger.Warn("grpc call finished", zap.String("method", method), zap.Duration("duration", elapsed), zap.Error(err))
		return
	}
	logger.Debug("grpc call finished", zap.String("method", method), zap.Duration("duration", elapsed))
}

// toStatus leaves status errors alone and maps everything else through
// errorbank.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	appErr := errorbank.From(err)
	return status.Error(appErr.GRPCCode(), appErr.Message())
}

// HealthParams defines dependencies for Register.
type HealthParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Server    *grpc.Server
	Health    *health.Server
	Config    config.Config
	Logger    *zap.Logger
	Database  Pinger `optional:"true"`
}

// Register attaches the health service and keeps it in step with the
// database until shutdown.
func Register(p HealthParams) {
	healthpb.RegisterHealthServer(p.Server, p.Health)
	watcher := &healthWatcher{health: p.Health, db: p.Database, logger: p.Logger, interval: p.Config.GRPC.HealthInterval}

	var cancel context.CancelFunc
	done := make(chan struct{})
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var ctx context.Context
			ctx, cancel = context.WithCancel(context.Background())
			go func() {
				defer close(done)
				watcher.run(ctx)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			p.Health.Shutdown()
			if cancel != nil {
				cancel()
				select {
				case <-done:
				case <-ctx.Done():
				}
			}
			return nil
		},
	})
}

type healthWatcher struct {
	health   *health.Server
	db       Pinger
	logger   *zap.Logger
	interval time.Duration
}

func (w *healthWatcher) run(ctx context.Context) {
	interval := w.interval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.check(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.check(ctx)
		}
	}
}

func (w *healthWatcher) check(ctx context.Context) {
	state := healthpb.HealthCheckResponse_SERVING
	if w.db != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := w.db.Ping(pingCtx)
		cancel()
		if err != nil {
			state = healthpb.HealthCheckResponse_NOT_SERVING
			w.logger.Warn("database unreachable", zap.Error(err))
		}
	}
	w.health.SetServingStatus("", state)
	w.health.SetServingStatus(ServiceName, state)
}

// Run binds the gRPC server to the configured host/port and manages lifecycle.
func Run(lc fx.Lifecycle, cfg config.Config, server *grpc.Server, logger *zap.Logger) {
	if !cfg.GRPC.Enabled {
		logger.Info("gRPC server disabled")
		return
	}
	addr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen grpc: %w", err)
			}
			logger.Info("starting gRPC server", zap.String("addr", addr))
			go func() {
				if err := server.Serve(ln); err != nil {
					logger.Error("grpc server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping gRPC server")
			stopped := make(chan struct{})
			go func() {
				server.GracefulStop()
				close(stopped)
			}()

			select {
			case <-ctx.Done():
				server.Stop()
				return ctx.Err()
			case <-stopped:
				return nil
			}
		},
	})
}
