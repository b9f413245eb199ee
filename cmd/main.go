// Package main runs the option service: REST API, gRPC health, NATS events and probes.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "net/http/pprof"

	"github.com/abgdnv/gocommerce/option_service/internal/app"
	"github.com/abgdnv/gocommerce/option_service/internal/config"
	"github.com/abgdnv/gocommerce/option_service/internal/platform/bootstrap"
	pconfig "github.com/abgdnv/gocommerce/option_service/internal/platform/config"
	"github.com/abgdnv/gocommerce/option_service/internal/platform/config/configloader"
	"github.com/abgdnv/gocommerce/option_service/internal/platform/messaging"
	pnats "github.com/abgdnv/gocommerce/option_service/internal/platform/nats"
	"github.com/abgdnv/gocommerce/option_service/internal/platform/probes"
	"github.com/abgdnv/gocommerce/option_service/internal/platform/telemetry"
	"github.com/abgdnv/gocommerce/option_service/internal/store/migrations"
	"github.com/abgdnv/gocommerce/option_service/internal/subscriber"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go/jetstream"
	"golang.org/x/sync/errgroup"
)

const serviceName = "option"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("application run failed: %v", err)
		os.Exit(1)
	}
	log.Println("application stopped gracefully")
}

// run initializes the application and runs the HTTP, gRPC and pprof servers,
// the health reporter, the NATS subscriber and the liveness probe until ctx is done.
func run(ctx context.Context) error {
	cfg, cfgErr := configloader.Load[*config.Config](serviceName)
	if cfgErr != nil {
		return fmt.Errorf("failed to load configuration: %w", cfgErr)
	}
	log.Printf("Configuration loaded: %v", cfg)

	logger := bootstrap.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	if cfg.Telemetry.Enabled {
		tp, err := telemetry.NewTracerProvider(ctx, "option-service", cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}
		defer shutdownWithTimeout(tp.Shutdown, cfg.Shutdown, logger, "tracer provider")
	}
	metrics, err := telemetry.NewMetrics("option-service")
	if err != nil {
		return fmt.Errorf("failed to set up metrics: %w", err)
	}
	defer shutdownWithTimeout(metrics.Shutdown, cfg.Shutdown, logger, "meter provider")

	var dbPool *pgxpool.Pool
	if cfg.Database.Driver == pconfig.DriverPostgres {
		if cfg.Database.Migrate {
			if err := migrations.Up(cfg.Database.URL); err != nil {
				return err
			}
			logger.Info("Database migrations applied")
		}
		dbPool, err = bootstrap.NewDbPool(ctx, cfg.Database.URL, cfg.Database.Timeout)
		if err != nil {
			return fmt.Errorf("failed to create database connection pool: %w", err)
		}
		defer dbPool.Close()
		logger.Info("Successfully connected to the database!")
	}

	var (
		publisher messaging.Publisher = messaging.NopPublisher{}
		js        jetstream.JetStream
	)
	if cfg.Nats.Enabled {
		natsConn, err := pnats.NewClient(cfg.Nats.Url, cfg.Nats.Timeout)
		if err != nil {
			return fmt.Errorf("failed to create NATS connection: %w", err)
		}
		defer natsConn.Close()
		js, err = pnats.NewJetStreamContext(natsConn)
		if err != nil {
			return fmt.Errorf("failed to get JetStream context: %w", err)
		}
		if _, err := pnats.EnsureStream(ctx, js, cfg.Nats.Stream, messaging.OptionSubjects); err != nil {
			return err
		}
		publisher = pnats.NewNatsPublisher(js)
	} else {
		logger.Info("NATS is disabled, events are not published")
	}

	deps, err := app.SetupDependencies(dbPool, publisher, metrics, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to set up dependencies: %w", err)
	}
	httpServer := app.SetupHttpServer(deps, cfg)
	grpcServer := app.SetupGrpcServer(deps, cfg.GRPC.ReflectionEnabled)

	g, gCtx := errgroup.WithContext(ctx)

	// Start the HTTP server
	g.Go(func() error {
		logger.Info("HTTP server listening", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	// gracefully shutdown HTTP server on context cancellation
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := cfg.Shutdown.Context()
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	// Start the gRPC server
	g.Go(func() error {
		grpcAddr := ":" + cfg.GRPC.Port
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			return fmt.Errorf("failed to listen on gRPC port: %w", err)
		}
		logger.Info("gRPC server listening", slog.String("addr", grpcAddr))
		return grpcServer.Serve(lis)
	})
	// gracefully shutdown gRPC server on context cancellation
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down gRPC server...")
		stopped := make(chan struct{})
		go func() {
			grpcServer.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
			logger.Info("gRPC server stopped gracefully.")
			return nil
		case <-time.After(cfg.Shutdown.Timeout):
			logger.Warn("gRPC server graceful stop timed out. Forcing stop.")
			grpcServer.Stop()
			return fmt.Errorf("grpc server graceful stop timed out")
		}
	})

	// Report the database health over gRPC
	g.Go(func() error {
		return deps.Health.Run(gCtx)
	})

	// Consume item deletions
	if cfg.Nats.Enabled {
		g.Go(func() error {
			logger.Info("NATS subscriber started", "subject", cfg.Subscriber.Subject)
			err := subscriber.Start(gCtx, js, cfg.Subscriber, deps.OptionService, logger)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("subscriber failed", "error", err)
				return err
			}
			logger.Info("subscriber stopped gracefully.")
			return nil
		})
	}

	// Start the pprof server if enabled
	if cfg.PProf.Enabled {
		pprofServer := &http.Server{
			Addr: cfg.PProf.Addr,
		}
		g.Go(func() error {
			logger.Info("Pprof server listening", slog.String("addr", pprofServer.Addr))
			if err := pprofServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("pprof server failed: %w", err)
			}
			return nil
		})
		// gracefully shutdown pprof server on context cancellation
		g.Go(func() error {
			<-gCtx.Done()
			logger.Info("Shutting down pprof server...")
			shutdownCtx, cancel := cfg.Shutdown.Context()
			defer cancel()
			return pprofServer.Shutdown(shutdownCtx)
		})
	}

	// Probes
	removeReady, err := probes.MarkReady(cfg.Probes.ReadinessFileName)
	if err != nil {
		logger.Warn("readiness probe file is not available", "error", err)
	} else {
		defer removeReady()
	}
	g.Go(func() error {
		return probes.RunLiveness(gCtx, cfg.Probes.LivenessFileName, cfg.Probes.LivenessInterval, logger)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("errgroup encountered an error: %w", err)
	}
	return nil
}

// shutdownWithTimeout runs a telemetry shutdown bounded by the shutdown timeout and logs a failure.
func shutdownWithTimeout(shutdown func(context.Context) error, cfg pconfig.ShutdownConfig, logger *slog.Logger, name string) {
	ctx, cancel := cfg.Context()
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Error("Failed to shut down "+name, "error", err)
	}
}
