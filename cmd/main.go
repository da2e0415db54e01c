package main

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/dig"

	"github.com/amaslov/tokengate/internal/config"
	"github.com/amaslov/tokengate/internal/domain"
	"github.com/amaslov/tokengate/internal/httpserver"
	"github.com/amaslov/tokengate/internal/httpserver/middleware"
	ledgermemory "github.com/amaslov/tokengate/internal/ledger/memory"
	ledgerpostgres "github.com/amaslov/tokengate/internal/ledger/postgres"
	ledgerredis "github.com/amaslov/tokengate/internal/ledger/redis"
	"github.com/amaslov/tokengate/internal/observability"
	"github.com/amaslov/tokengate/internal/provider/openai"
	"github.com/amaslov/tokengate/internal/provider/openrouter"
	"github.com/amaslov/tokengate/internal/provider/registry"
	recorderpostgres "github.com/amaslov/tokengate/internal/recorder/postgres"
	"github.com/amaslov/tokengate/internal/recorder/zaprec"
)

// ErrProviderNotConfigured indicates that a provider is not configured and should be skipped.
var ErrProviderNotConfigured = errors.New("provider not configured")

func main() {
	container := buildContainer()

	err := container.Invoke(func(server *httpserver.Server) {
		if err := server.Start(); err != nil {
			log.Fatalf("Server failed to start: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}
}

//nolint:funlen // Wiring is linear and clearer in one place
func buildContainer() *dig.Container {
	container := dig.New()

	// Configuration
	if err := container.Provide(config.Load); err != nil {
		log.Fatalf("Failed to provide config: %v", err)
	}
	if err := container.Provide(config.ParseDependenciesConfig); err != nil {
		log.Fatalf("Failed to provide config dependencies: %v", err)
	}

	// Observability
	if err := container.Provide(observability.InitLogger); err != nil {
		log.Fatalf("Failed to provide logger: %v", err)
	}

	// Provider Registry
	if err := container.Provide(func() domain.ProviderRegistry {
		return registry.NewRegistry()
	}); err != nil {
		log.Fatalf("Failed to provide registry: %v", err)
	}

	// OpenAI Provider
	if err := container.Provide(func(cfg *config.Config) (*openai.Provider, error) {
		if cfg.OpenAI.APIKey == "" {
			return nil, ErrProviderNotConfigured
		}
		return openai.NewProvider(cfg.OpenAI)
	}); err != nil {
		log.Fatalf("Failed to provide OpenAI provider: %v", err)
	}

	// OpenRouter Provider
	if err := container.Provide(func(cfg *config.Config) (*openrouter.Provider, error) {
		if cfg.OpenRouter.APIKey == "" {
			return nil, ErrProviderNotConfigured
		}
		return openrouter.NewProvider(cfg.OpenRouter)
	}); err != nil {
		log.Fatalf("Failed to provide OpenRouter provider: %v", err)
	}

	// Register providers with registry (invoked for side effects). Each
	// provider gets its own Invoke: a missing key fails only that
	// provider's constructor instead of the whole registration pass.
	if err := container.Invoke(func(reg domain.ProviderRegistry, provider *openai.Provider) error {
		if err := reg.Register(context.Background(), provider); err != nil {
			return fmt.Errorf("failed to register OpenAI provider: %w", err)
		}
		return nil
	}); err != nil {
		// Ignore ErrProviderNotConfigured as it's expected for optional providers
		if !errors.Is(err, ErrProviderNotConfigured) {
			log.Fatalf("Failed to register OpenAI provider: %v", err)
		}
	}

	if err := container.Invoke(func(reg domain.ProviderRegistry, provider *openrouter.Provider) error {
		if err := reg.Register(context.Background(), provider); err != nil {
			return fmt.Errorf("failed to register OpenRouter provider: %w", err)
		}
		return nil
	}); err != nil {
		if !errors.Is(err, ErrProviderNotConfigured) {
			log.Fatalf("Failed to register OpenRouter provider: %v", err)
		}
	}

	// Token ledger
	if err := container.Provide(provideLedger); err != nil {
		log.Fatalf("Failed to provide token ledger: %v", err)
	}

	// Usage recorder
	if err := container.Provide(provideRecorder); err != nil {
		log.Fatalf("Failed to provide usage recorder: %v", err)
	}

	// Metering pipeline
	if err := container.Provide(domain.DefaultPricingTable); err != nil {
		log.Fatalf("Failed to provide pricing table: %v", err)
	}
	if err := container.Provide(func(pricing *domain.PricingTable, cfg *config.MeteringConfig) *domain.CostEstimator {
		return domain.NewCostEstimator(pricing, cfg.ProfitMultiplier)
	}); err != nil {
		log.Fatalf("Failed to provide cost estimator: %v", err)
	}
	if err := container.Provide(func() domain.SoftFailureDetector {
		return domain.NewSubstringDetector()
	}); err != nil {
		log.Fatalf("Failed to provide soft failure detector: %v", err)
	}
	if err := container.Provide(domain.NewFallbackOrchestrator); err != nil {
		log.Fatalf("Failed to provide fallback orchestrator: %v", err)
	}
	if err := container.Provide(domain.NewDeductionSplitter); err != nil {
		log.Fatalf("Failed to provide deduction splitter: %v", err)
	}
	if err := container.Provide(domain.NewResponseReconciler); err != nil {
		log.Fatalf("Failed to provide response reconciler: %v", err)
	}
	if err := container.Provide(provideMeteringService); err != nil {
		log.Fatalf("Failed to provide metering service: %v", err)
	}

	// HTTP Layer
	if err := container.Provide(httpserver.NewHandler); err != nil {
		log.Fatalf("Failed to provide HTTP handler: %v", err)
	}
	if err := container.Provide(middleware.BuildMiddlewareChain); err != nil {
		log.Fatalf("Failed to provide middleware chain: %v", err)
	}
	if err := container.Provide(httpserver.NewServer); err != nil {
		log.Fatalf("Failed to provide HTTP server: %v", err)
	}

	return container
}

// provideLedger selects the TokenLedger backend from configuration.
func provideLedger(cfg *config.Config) (domain.TokenLedger, error) {
	ctx := context.Background()

	switch cfg.Ledger.Backend {
	case "redis":
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ledger unavailable: %w", err)
		}
		return ledgerredis.NewLedger(client, ledgerredis.WithKeyPrefix(cfg.Redis.KeyPrefix)), nil

	case "postgres":
		if cfg.Postgres.DSN == "" {
			return nil, errors.New("postgres ledger requires POSTGRES_DSN")
		}
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, fmt.Errorf("postgres ledger unavailable: %w", err)
		}
		ledger := ledgerpostgres.NewLedger(pool)
		if err := ledger.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return ledger, nil

	case "memory":
		return ledgermemory.NewLedger(), nil

	default:
		return nil, fmt.Errorf("unknown ledger backend: %q", cfg.Ledger.Backend)
	}
}

// provideRecorder uses the Postgres audit sink when a DSN is configured and
// falls back to structured-log records otherwise.
func provideRecorder(cfg *config.Config) (domain.UsageRecorder, error) {
	if cfg.Postgres.DSN == "" {
		return zaprec.NewRecorder(nil), nil
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres recorder unavailable: %w", err)
	}
	recorder := recorderpostgres.NewRecorder(pool)
	if err := recorder.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return recorder, nil
}

func provideMeteringService(
	estimator *domain.CostEstimator,
	ledger domain.TokenLedger,
	recorder domain.UsageRecorder,
	orchestrator *domain.FallbackOrchestrator,
	splitter *domain.DeductionSplitter,
	reconciler *domain.ResponseReconciler,
	cfg *config.MeteringConfig,
) (*domain.MeteringService, error) {
	return domain.NewMeteringService(
		estimator,
		ledger,
		recorder,
		orchestrator,
		splitter,
		reconciler,
		domain.WithChatFallbackPlan(domain.FallbackPlan(cfg.ChatFallbackModels)),
		domain.WithVisionFallbackPlan(domain.FallbackPlan(cfg.VisionFallbackModels)),
		domain.WithPromptCatalog(domain.NewPromptCatalog(cfg.ChatSystemPrompt, cfg.VisionSystemPrompt)),
	)
}
