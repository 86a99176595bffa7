package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/intake-assistant/internal/config"
	"github.com/kirillkom/intake-assistant/internal/core/domain"
	"github.com/kirillkom/intake-assistant/internal/core/formstate"
	"github.com/kirillkom/intake-assistant/internal/core/intake"
	"github.com/kirillkom/intake-assistant/internal/core/ports"
	"github.com/kirillkom/intake-assistant/internal/core/usecase"
	"github.com/kirillkom/intake-assistant/internal/infrastructure/formdef"
	"github.com/kirillkom/intake-assistant/internal/infrastructure/loader"
	"github.com/kirillkom/intake-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/intake-assistant/internal/infrastructure/report/xlsx"
	"github.com/kirillkom/intake-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/intake-assistant/internal/infrastructure/repository/sqlite"
	"github.com/kirillkom/intake-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/intake-assistant/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/intake-assistant/internal/observability/metrics"
)

type Options struct {
	Service string
	Logger  *slog.Logger
	// Registerer receives pipeline metrics. Nil disables them.
	Registerer      prometheus.Registerer
	BreakerObserver resilience.StateObserver
}

// Engine is the storage-free part of the application: the loaded form and
// the synchronous processing use case.
type Engine struct {
	Definition formdef.Definition
	Pipeline   *intake.Pipeline
	ProcessUC  *usecase.ProcessTranscriptUseCase
	Exporter   *xlsx.Exporter
}

func NewEngine(cfg config.Config, opts Options) (*Engine, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	def, err := formdef.Load(cfg.FormDefinitionPath)
	if err != nil {
		return nil, fmt.Errorf("load form definition: %w", err)
	}
	def.Rules, err = ApplyRuleOverrides(def.Rules, cfg)
	if err != nil {
		return nil, err
	}

	pipeline, err := intake.NewPipeline(def.Form, def.Rules, intake.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}

	var pipelineMetrics ports.PipelineMetrics
	if opts.Registerer != nil {
		pipelineMetrics = metrics.NewPipelineMetrics(opts.Service, opts.Registerer)
	}

	integrator := formstate.NewIntegrator(pipeline.Rules(), cfg.SentinelValue)
	processUC := usecase.NewProcessTranscriptUseCase(pipeline, integrator, pipelineMetrics, logger)

	logger.Info("form_definition_loaded",
		"path", cfg.FormDefinitionPath,
		"fields", len(pipeline.Registry().Fields()),
		"cross_field_scope", string(pipeline.Rules().CrossFieldScope),
		"min_confidence_to_autofill", pipeline.Rules().MinConfidenceToAutofill,
	)

	return &Engine{
		Definition: def,
		Pipeline:   pipeline,
		ProcessUC:  processUC,
		Exporter:   xlsx.NewExporter(logger),
	}, nil
}

// ApplyRuleOverrides lets the environment tighten or relax the rules that
// ship with the form definition. Zero values keep the definition's setting.
func ApplyRuleOverrides(rules domain.BusinessRules, cfg config.Config) (domain.BusinessRules, error) {
	out := rules
	if cfg.MinConfidenceToAutofill > 0 {
		if cfg.MinConfidenceToAutofill > 1 {
			return out, domain.WrapError(domain.ErrInvalidSchema, "apply rule overrides",
				fmt.Errorf("MIN_CONFIDENCE_TO_AUTOFILL must be in (0, 1], got %v", cfg.MinConfidenceToAutofill))
		}
		out.MinConfidenceToAutofill = cfg.MinConfidenceToAutofill
	}
	if cfg.CrossFieldScope != "" {
		scope := domain.CrossFieldScope(cfg.CrossFieldScope)
		if scope != domain.CrossFieldScopeGlobal && scope != domain.CrossFieldScopeStage {
			return out, domain.WrapError(domain.ErrInvalidSchema, "apply rule overrides",
				fmt.Errorf("unknown CROSS_FIELD_SCOPE %q", cfg.CrossFieldScope))
		}
		out.CrossFieldScope = scope
	}
	if cfg.ConflictResolutionEnabled != nil {
		out.ResolveConflicts = *cfg.ConflictResolutionEnabled
	}
	return out, nil
}

func ResilienceConfig(cfg config.Config) resilience.Config {
	out := resilience.DefaultConfig()
	out.RetryMaxAttempts = cfg.ResilienceRetryMaxAttempts
	out.RetryInitialBackoff = time.Duration(cfg.ResilienceRetryInitialBackoffMS) * time.Millisecond
	out.RetryMaxBackoff = time.Duration(cfg.ResilienceRetryMaxBackoffMS) * time.Millisecond
	out.BreakerEnabled = cfg.ResilienceBreakerEnabled
	if cfg.ResilienceBreakerMinRequests > 0 {
		out.BreakerMinRequests = uint32(cfg.ResilienceBreakerMinRequests)
	}
	out.BreakerFailureRatio = cfg.ResilienceBreakerFailureRatio
	out.BreakerOpenTimeout = time.Duration(cfg.ResilienceBreakerOpenTimeoutMS) * time.Millisecond
	return out
}

type App struct {
	Config config.Config
	*Engine

	Queue    ports.MessageQueue
	Repo     ports.RunRepository
	Executor *resilience.Executor

	SubmitUC     ports.RunSubmitter
	RunProcessUC ports.RunProcessor
	RunQueryUC   *usecase.RunQueryUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	engine, err := NewEngine(cfg, opts)
	if err != nil {
		return nil, err
	}

	repo, closeRepo, err := openRepository(ctx, cfg)
	if err != nil {
		return nil, err
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		closeRepo()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executorOpts := []resilience.Option{resilience.WithLogger(logger)}
	if opts.BreakerObserver != nil {
		executorOpts = append(executorOpts, resilience.WithStateObserver(opts.BreakerObserver))
	}
	executor := resilience.NewExecutor(ResilienceConfig(cfg), executorOpts...)

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		closeRepo()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	submitUC := usecase.NewSubmitTranscriptUseCase(repo, storage, queue)
	runProcessUC := usecase.NewProcessRunUseCase(repo, loader.New(storage), engine.ProcessUC.WithSource("async"))
	runQueryUC := usecase.NewRunQueryUseCase(repo, engine.Exporter)

	logger.Info("app_initialized", "store_driver", cfg.StoreDriver, "nats_subject", cfg.NATSSubject)

	return &App{
		Config:   cfg,
		Engine:   engine,
		Queue:    queue,
		Repo:     repo,
		Executor: executor,

		SubmitUC:     submitUC,
		RunProcessUC: runProcessUC,
		RunQueryUC:   runQueryUC,

		closeFn: func() {
			queue.Close()
			closeRepo()
		},
	}, nil
}

func openRepository(ctx context.Context, cfg config.Config) (ports.RunRepository, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDriverSQLite:
		repo, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		return repo, func() { _ = repo.Close() }, nil
	case config.StoreDriverPostgres, "":
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		repo := postgres.NewRunRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return repo, func() { _ = db.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unsupported store driver %q", cfg.StoreDriver)
	}
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
