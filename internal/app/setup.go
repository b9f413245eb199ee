// Package app contains the application setup for the OptionService.
package app

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/gocommerce/option_service/internal/catalog"
	"github.com/abgdnv/gocommerce/option_service/internal/config"
	pconfig "github.com/abgdnv/gocommerce/option_service/internal/platform/config"
	"github.com/abgdnv/gocommerce/option_service/internal/platform/messaging"
	"github.com/abgdnv/gocommerce/option_service/internal/platform/server"
	"github.com/abgdnv/gocommerce/option_service/internal/platform/telemetry"
	"github.com/abgdnv/gocommerce/option_service/internal/service"
	"github.com/abgdnv/gocommerce/option_service/internal/store"
	grpcImpl "github.com/abgdnv/gocommerce/option_service/internal/transport/grpc"
	"github.com/abgdnv/gocommerce/option_service/internal/transport/rest"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"
)

const serviceName = "option-service"

type Dependencies struct {
	OptionService service.OptionService
	Health        *grpcImpl.HealthReporter
	Metrics       *telemetry.Metrics
	Logger        *slog.Logger
}

// SetupDependencies wires the option service on top of PostgreSQL, or on top of the in-memory
// store and catalog when dbPool is nil.
func SetupDependencies(dbPool *pgxpool.Pool, publisher messaging.Publisher, metrics *telemetry.Metrics, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	var (
		st     store.Store
		items  catalog.ItemFinder
		pinger grpcImpl.Pinger
	)
	if dbPool != nil {
		st = store.NewPgStore(dbPool)
		items = catalog.NewBreakerItemFinder(catalog.NewPgItemFinder(dbPool), cfg.Resilience.CircuitBreaker)
		pinger = dbPool
	} else {
		memItems, err := seedItems(cfg.Database)
		if err != nil {
			return nil, err
		}
		logger.Warn("Using the in-memory store, data is lost on restart", "seed_items", len(cfg.Database.SeedItems))
		st = store.NewInMemoryStore()
		items = memItems
	}
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}

	oService := service.NewService(st, items, publisher, cfg.Options, logger.With("component", "service"))

	return &Dependencies{
		OptionService: oService,
		Health:        grpcImpl.NewHealthReporter(pinger, cfg.GRPC.HealthInterval, logger),
		Metrics:       metrics,
		Logger:        logger,
	}, nil
}

func seedItems(cfg pconfig.DatabaseConfig) (*catalog.InMemoryItemFinder, error) {
	finder := catalog.NewInMemoryItemFinder()
	for _, raw := range cfg.SeedItems {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid seed item id %q: %w", raw, err)
		}
		finder.Put(catalog.Item{ID: id, State: catalog.StateEnable})
	}
	return finder, nil
}

// SetupHttpHandler initializes the HTTP routes for the OptionService application.
// Used by E2E tests to set up the HTTP server with the necessary routes and middleware.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	wireRoutes(mux, deps)
	return otelhttp.NewHandler(mux, serviceName)
}

// wireRoutes sets up the HTTP routes for the OptionService application.
func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	optionHandler := rest.NewHandler(deps.OptionService, deps.Logger)
	optionHandler.RegisterRoutes(mux)
	if deps.Metrics != nil {
		mux.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())
	}
}

// SetupHttpServer creates and configures an HTTP server for the OptionService application.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	return server.NewHTTPServer(cfg.HTTPServer, SetupHttpHandler(deps))
}

// SetupGrpcServer initializes the gRPC server with the health service.
func SetupGrpcServer(deps *Dependencies, reflectionEnabled bool) *grpc.Server {
	return server.NewGRPCServer(deps.Logger, reflectionEnabled, deps.Health.Register)
}
