package main

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	accountsstore "basecamp/internal/accounts/store"
	"basecamp/internal/accounts/provisioner"
	jwttoken "basecamp/internal/jwt_token"
	"basecamp/internal/platform/config"
	"basecamp/internal/platform/health"
	"basecamp/internal/platform/kafka/producer"
	"basecamp/internal/platform/tracer"
	"basecamp/internal/ratelimit"
	"basecamp/internal/screening/handler"
	"basecamp/internal/screening/lock"
	screeningmetrics "basecamp/internal/screening/metrics"
	"basecamp/internal/screening/notifier"
	"basecamp/internal/screening/orchestrator"
	"basecamp/internal/screening/providers"
	"basecamp/internal/screening/providers/adapters"
	"basecamp/internal/screening/providers/checkr"
	"basecamp/internal/screening/providers/fake"
	"basecamp/internal/screening/providers/sterling"
	"basecamp/internal/screening/service"
	screeningstore "basecamp/internal/screening/store"
	"basecamp/pkg/platform/audit"
	auditmetrics "basecamp/pkg/platform/audit/metrics"
	auditpublisher "basecamp/pkg/platform/audit/publisher"
	auditpg "basecamp/pkg/platform/audit/store/postgres"
	"basecamp/pkg/platform/middleware/metadata"
	"basecamp/pkg/platform/middleware/request"
	"basecamp/pkg/platform/outbox"
	outboxmetrics "basecamp/pkg/platform/outbox/metrics"
	outboxpg "basecamp/pkg/platform/outbox/postgres"
	"basecamp/pkg/platform/outbox/worker"
)

type app struct {
	orchestrator *orchestrator.Orchestrator
	outbox       *worker.Worker
	audit        *auditpublisher.Publisher
	// memLimits is set when rate limits are kept in process and need sweeping.
	memLimits *ratelimit.MemoryStore
	router    http.Handler
}

// workflowStore is what both the orchestrator and the service need.
type workflowStore interface {
	orchestrator.Store
	service.Store
}

func buildApp(cfg config.Server, in *infra, log *slog.Logger) (*app, error) {
	reg := prometheus.DefaultRegisterer

	var (
		outboxStore outbox.Store
		records     workflowStore
		accounts    provisioner.Store
		auditStore  audit.Store
	)
	if in.db != nil {
		outboxStore = outboxpg.New(in.db.DB())
		records = screeningstore.NewPostgresStore(in.db.DB())
		accounts = accountsstore.NewPostgresStore(in.db.Native())
		auditStore = auditpg.New(in.db.DB())
	} else {
		mem := outbox.NewMemoryStore()
		outboxStore = mem
		records = screeningstore.NewInMemoryStore(mem)
		accounts = accountsstore.NewInMemoryStore()
		auditStore = audit.NewMemoryStore()
	}
	auditPublisher := auditpublisher.New(auditStore,
		auditpublisher.WithAsyncBuffer(cfg.Screening.AuditBufferSize),
		auditpublisher.WithMetrics(auditmetrics.New(reg)),
		auditpublisher.WithLogger(log),
	)

	var publisher producer.Publisher = producer.NoopProducer{}
	var notices orchestrator.Notifier = notifier.NewLog(log)
	if in.producer != nil {
		publisher = in.producer
		notices = notifier.NewKafka(in.producer, notifier.WithTopic(cfg.Kafka.NoticeTopic))
	}

	var (
		locker lock.Locker = lock.NewSharded()
		leases lock.Leases = lock.NewMemoryLeases()
	)
	var (
		limits    ratelimit.Store
		memLimits *ratelimit.MemoryStore
	)
	if in.redis != nil {
		locker = lock.NewRedis(in.redis.Client, cfg.Redis.LockTTL, log)
		leases = lock.NewRedisLeases(in.redis.Client, cfg.Redis.LockTTL, log)
		limits = ratelimit.NewRedisStore(in.redis.Client)
	} else {
		memLimits = ratelimit.NewMemoryStore()
		limits = memLimits
	}

	registry, err := providers.NewRegistry(string(cfg.Environment), cfg.Screening.Provider, buildProviders(cfg.Environment, cfg.Screening, log)...)
	if err != nil {
		return nil, fmt.Errorf("build provider registry: %w", err)
	}

	m := screeningmetrics.New(reg)
	orch := orchestrator.New(registry, records, notices,
		provisioner.New(accounts, provisioner.WithLogger(log), provisioner.WithRegisterer(reg)),
		orchestrator.WithPollInterval(cfg.Screening.PollInterval),
		orchestrator.WithMaxAttempts(cfg.Screening.MaxAttempts),
		orchestrator.WithLocker(locker),
		orchestrator.WithLeases(leases),
		orchestrator.WithMetrics(m),
		orchestrator.WithTracer(tracer.NewOTel()),
		orchestrator.WithArtifactBaseURL(cfg.Screening.ArtifactBaseURL),
		orchestrator.WithLogger(log),
	)
	log.Info("screening workflow configured",
		"default_provider", orch.DefaultProvider(),
		"providers", registry.IDs(),
		"poll_interval", cfg.Screening.PollInterval.String(),
		"max_attempts", orch.MaxAttempts(),
	)

	svc := service.New(records, orch,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithAuditor(audit.NewLogger(log, auditPublisher)),
	)
	limiter := ratelimit.New(limits, cfg.Screening.SubmitRateLimit, cfg.Screening.SubmitRateWindow,
		ratelimit.WithLogger(log),
		ratelimit.WithMetrics(ratelimit.NewMetrics(reg)),
	)
	screenings := handler.New(svc, log,
		handler.WithIdempotency(handler.NewIdempotencyCache(cfg.Screening.IdempotencySize, cfg.Screening.IdempotencyTTL)),
		handler.WithSubmitMiddleware(limiter.PerIP("submit")),
	)

	probes := health.New(string(cfg.Environment))
	if in.db != nil {
		probes.RegisterCheck("postgres", in.db.Health)
	}
	if in.redis != nil {
		probes.RegisterCheck("redis", in.redis.Health)
	}
	if in.producer != nil {
		probes.RegisterCheck("kafka", in.producer.Health)
	}

	proxies, err := metadata.ParsePrefixes(cfg.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("TRUSTED_PROXIES: %w", err)
	}
	tokens := jwttoken.NewService(cfg.Admin.JWTSecret, cfg.Admin.Issuer, cfg.Admin.Audience, cfg.Admin.TokenTTL)

	router := newRouter(routerDeps{
		screenings:     screenings,
		health:         probes,
		admin:          tokens,
		trustedProxies: proxies,
		maxBodyBytes:   cfg.MaxBodyBytes,
		httpMetrics:    request.NewMetrics(),
		logger:         log,
	})

	outboxWorker := worker.New(outboxStore, publisher,
		worker.WithTopic(cfg.Kafka.EventsTopic),
		worker.WithBatchSize(cfg.Kafka.OutboxBatchSize),
		worker.WithPollInterval(cfg.Kafka.OutboxPollInterval),
		worker.WithMetrics(outboxmetrics.New(reg)),
		worker.WithLogger(log),
	)

	return &app{orchestrator: orch, outbox: outboxWorker, audit: auditPublisher, memLimits: memLimits, router: router}, nil
}

// buildProviders registers the fake outside production and each vendor
// whose API key is configured.
func buildProviders(env config.Environment, cfg config.ScreeningConfig, log *slog.Logger) []providers.Provider {
	var ps []providers.Provider
	if env != config.EnvProduction {
		ps = append(ps, fake.New())
	}
	if cfg.Checkr.APIKey != "" {
		ps = append(ps, checkr.New(adapters.NewHTTPClient(adapters.Config{
			ProviderID: providers.Checkr,
			BaseURL:    cfg.Checkr.BaseURL,
			APIKey:     cfg.Checkr.APIKey,
			Timeout:    cfg.Checkr.Timeout,
			Logger:     log,
		})))
	}
	if cfg.Sterling.APIKey != "" {
		ps = append(ps, sterling.New(adapters.NewHTTPClient(adapters.Config{
			ProviderID: providers.Sterling,
			BaseURL:    cfg.Sterling.BaseURL,
			APIKey:     cfg.Sterling.APIKey,
			Timeout:    cfg.Sterling.Timeout,
			Logger:     log,
		})))
	}
	return ps
}
