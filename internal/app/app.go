// Package app wires configuration into the services shared by the server,
// the worker and the CLI.
package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/gorm"

	"github.com/TejasGoyal/test-tinyb-skillora/internal/ai"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/chat"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/config"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/db"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/dbquery"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/httpapi/handlers"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/identity"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/logger"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/observability"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/rag"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/school"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/store/rabbitmq"
	"github.com/TejasGoyal/test-tinyb-skillora/internal/store/redisstore"
)

type App struct {
	Cfg      config.Config
	Log      *logger.Logger
	DB       *gorm.DB
	Registry *prometheus.Registry
	Metrics  *observability.Metrics

	Providers *ai.Registry
	Pplx      *ai.PerplexityProvider
	Embedder  ai.Embedder

	School   *school.Repo
	RAG      *rag.Repo
	Ingester *rag.Ingester
	Answerer *rag.Answerer
	Jobs     *rag.JobService
	Gateway  *chat.Gateway
	Bridge   *dbquery.Bridge

	redis     *redisstore.Store
	publisher *rabbitmq.Publisher
}

// New opens the database, runs migrations and builds every service. The job
// publisher is attached separately by EnablePublisher.
func New(cfg config.Config, log *logger.Logger) (*App, error) {
	if log == nil {
		log = logger.Nop()
	}

	gdb, err := db.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("db connect (%s): %w", cfg.DBDriver, err)
	}
	models := append(school.Models(), rag.Models()...)
	if err := db.Migrate(gdb, models...); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.New(reg)

	a := &App{
		Cfg:      cfg,
		Log:      log,
		DB:       gdb,
		Registry: reg,
		Metrics:  metrics,
		School:   school.NewRepo(gdb),
		RAG:      rag.NewRepo(gdb),
	}

	a.Providers = newProviderRegistry(cfg)
	a.Providers.Wrap(metrics.ProviderWrapper())
	a.Pplx = ai.NewPerplexityProvider(cfg.PerplexityBaseURL, cfg.PerplexityAPIKey, cfg.PerplexityRAGModel)

	// a nil Embedder makes ingestion and answers report the missing key
	if cfg.OpenAIAPIKey != "" {
		a.Embedder = ai.NewOpenAIEmbedder(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIEmbedModel)
	}

	var source rag.ContentSource
	if cfg.IdentityURL != "" {
		source = rag.NewStorageFetcher(cfg.IdentityURL, cfg.IdentityServiceKey)
	}
	a.Ingester = rag.NewIngester(a.RAG, a.Embedder, source, metrics, log.With("component", "ingest"))
	a.Answerer = rag.NewAnswerer(a.RAG, a.Embedder, timedCompleter{inner: a.Pplx, m: metrics}, log.With("component", "answer"))
	a.Jobs = rag.NewJobService(a.RAG, a.Ingester, nil, metrics, log.With("component", "jobs"))
	a.Gateway = chat.NewGateway(school.NewResolver(a.School), a.Providers, log.With("component", "chat"))
	a.Bridge = dbquery.NewBridge(a.School)

	return a, nil
}

func newProviderRegistry(cfg config.Config) *ai.Registry {
	reg := ai.NewRegistry()
	reg.Register("openai", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.OpenAIModel
		}
		return ai.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, m), nil
	})
	reg.Register("huggingface", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.HuggingFaceModel
		}
		return ai.NewHuggingFaceProvider(cfg.HuggingFaceBaseURL, cfg.HuggingFaceAPIKey, m), nil
	})
	reg.Register("perplexity", func(ctx context.Context, model string) (ai.Provider, error) {
		_ = ctx
		m := strings.TrimSpace(model)
		if m == "" {
			m = cfg.PerplexityChatModel
		}
		return ai.NewPerplexityProvider(cfg.PerplexityBaseURL, cfg.PerplexityAPIKey, m), nil
	})
	return reg
}

// EnablePublisher connects to RabbitMQ so async ingestion can be accepted.
// It is a no-op without RABBIT_URL.
func (a *App) EnablePublisher() error {
	if a.Cfg.RabbitURL == "" {
		a.Log.Info("RABBIT_URL not set, async ingestion disabled")
		return nil
	}
	pub, err := rabbitmq.NewPublisher(a.Cfg.RabbitURL, a.Cfg.RabbitQueue)
	if err != nil {
		return fmt.Errorf("rabbit publisher: %w", err)
	}
	a.publisher = pub
	a.Jobs = rag.NewJobService(a.RAG, a.Ingester, pub, a.Metrics, a.Log.With("component", "jobs"))
	return nil
}

// Authenticator builds the token verifier. With REDIS_ADDR set, the key set
// is shared through Redis.
func (a *App) Authenticator(ctx context.Context) (identity.Authenticator, error) {
	opts := identity.Options{
		IdentityURL: a.Cfg.IdentityURL,
		ServiceKey:  a.Cfg.IdentityServiceKey,
		Log:         a.Log.With("component", "identity"),
	}
	if a.Cfg.RedisAddr != "" {
		rds := redisstore.New(a.Cfg.RedisAddr, a.Cfg.RedisPassword, a.Cfg.RedisDB)
		if err := rds.Ping(ctx); err != nil {
			_ = rds.Close()
			a.Log.Warn("redis unreachable, key set cache stays local", "addr", a.Cfg.RedisAddr, "error", err)
		} else {
			a.redis = rds
			opts.KeyCache = rds
		}
	}
	return identity.NewVerifier(opts)
}

func (a *App) Handler(auth identity.Authenticator) *handlers.Handler {
	return &handlers.Handler{
		Auth:     auth,
		ChatSvc:  a.Gateway,
		Ingester: a.Ingester,
		Jobs:     a.Jobs,
		Answerer: a.Answerer,
		Bridge:   a.Bridge,
		Profiles: a.School,
		Pplx:     a.Pplx,
		Metrics:  a.Metrics,
		Log:      a.Log,
	}
}

func (a *App) Close() {
	if a.publisher != nil {
		_ = a.publisher.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
}

// timedCompleter records grounded completions next to the chat providers.
type timedCompleter struct {
	inner *ai.PerplexityProvider
	m     *observability.Metrics
}

func (t timedCompleter) Complete(ctx context.Context, messages []ai.Message, temperature float64) (string, error) {
	start := time.Now()
	reply, err := t.inner.Complete(ctx, messages, temperature)
	t.m.ObserveProviderCall("perplexity_rag", time.Since(start), err)
	return reply, err
}
