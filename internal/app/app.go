// Package app assembles the advisor's dependency graph from configuration.
// Both the HTTP server and the Lambda entry point build their router here.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"agroia/internal/advisor"
	"agroia/internal/api/handlers"
	"agroia/internal/climate"
	"agroia/internal/config"
	"agroia/internal/core"
	"agroia/internal/crops"
	"agroia/internal/db"
	"agroia/internal/engine"
	"agroia/internal/external"
	"agroia/internal/knowledge"
	"agroia/internal/narrative"
	"agroia/internal/predictor"
	"agroia/internal/queue"
	"agroia/internal/telemetry"
)

const (
	defaultParallelism = 4
	systemInstruction  = "Você é um engenheiro agrônomo brasileiro. Responda em português, de forma objetiva."
)

// Deps are the outside-world constructors Build uses. Zero fields fall back
// to the real implementations.
type Deps struct {
	LoadAWSConfig func(ctx context.Context, cfg config.AWSConfig) (aws.Config, error)
	NewPool       func(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error)
	HTTPClient    *http.Client
}

// Build loads the dataset, wires every collaborator and returns a server
// with routes mounted. The caller owns srv.Shutdown.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps Deps) (*core.Server, error) {
	if deps.LoadAWSConfig == nil {
		deps.LoadAWSConfig = LoadAWSConfig
	}
	if deps.NewPool == nil {
		deps.NewPool = db.NewPool
	}
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{}
	}

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}

	var pool *pgxpool.Pool
	if cfg.NeedsDatabase() {
		pool, err = deps.NewPool(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		srv.Closers = append(srv.Closers, pool.Close)
		srv.HealthProbes = append(srv.HealthProbes, core.ProbeFunc{ProbeName: "database", Fn: pool.Ping})
	}

	ds, err := loadDataset(ctx, cfg, pool, logger)
	if err != nil {
		return nil, err
	}
	srv.HealthProbes = append(srv.HealthProbes, core.ProbeFunc{
		ProbeName: "dataset",
		Fn: func(context.Context) error {
			if ds.Empty() {
				return fmt.Errorf("climate dataset is empty")
			}
			return nil
		},
	})

	retriever, err := newRetriever(cfg.Knowledge, pool, logger)
	if err != nil {
		return nil, err
	}

	gemini, err := external.NewGeminiClient(ctx, external.GeminiConfig{
		APIKey:            cfg.Narrative.GeminiAPIKey.Unmask(),
		Model:             cfg.Narrative.Model,
		Temperature:       cfg.Narrative.Temperature,
		MaxOutputTokens:   cfg.Narrative.MaxTokens,
		Timeout:           cfg.Narrative.Timeout,
		SystemInstruction: systemInstruction,
		Logger:            logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating narrative client: %w", err)
	}
	if !cfg.Narrative.GeminiAPIKey.IsSet() {
		logger.Warn("GEMINI_API_KEY not set; narratives will be unavailable")
	}

	publisher, metrics, err := newReporting(ctx, cfg, deps, logger)
	if err != nil {
		return nil, err
	}

	catalog := crops.Default()
	eng := engine.New(ds, catalog,
		engine.WithPredictor(newPredictor(cfg.Predictor, deps.HTTPClient, logger)),
		engine.WithParallelism(defaultParallelism),
		engine.WithLogger(logger),
	)
	adv := advisor.New(eng,
		advisor.WithRetriever(retriever),
		advisor.WithNarrator(narrative.New(gemini, logger)),
		advisor.WithPublisher(publisher),
		advisor.WithMetrics(metrics),
		advisor.WithLogger(logger),
	)

	recHandler := handlers.NewRecommendationHandler(adv, srv.Validator, nil, logger)
	muniHandler := handlers.NewMunicipalityHandler(ds, catalog, logger)
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars, func(r chi.Router) {
		recHandler.RegisterRoutes(r)
		muniHandler.RegisterRoutes(r)
	})
	srv.MountRoutes()

	logger.Info("advisor ready",
		"records", ds.Len(),
		"municipalities", len(ds.Municipalities()),
		"dataset_source", cfg.Dataset.Source,
		"predictor_mode", cfg.Predictor.Mode,
		"knowledge_source", cfg.Knowledge.Source,
	)
	return srv, nil
}

func loadDataset(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, logger *slog.Logger) (*climate.Dataset, error) {
	var src climate.Source
	switch cfg.Dataset.Source {
	case config.DatasetSourcePostgres:
		src = db.NewClimateRepository(pool)
	default:
		src = climate.NewFileSource(cfg.Dataset.Path, logger)
	}
	ds, err := climate.Load(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("loading climate dataset: %w", err)
	}
	if ds.Empty() {
		logger.Warn("climate dataset is empty; every municipality will be reported as unknown")
	}
	return ds, nil
}

func newPredictor(cfg config.PredictorConfig, httpClient *http.Client, logger *slog.Logger) predictor.YieldPredictor {
	switch cfg.Mode {
	case config.PredictorModeRemote:
		return external.NewPredictorClient(httpClient, external.PredictorClientConfig{
			BaseURL: cfg.URL,
			APIKey:  cfg.APIKey.Unmask(),
			Timeout: cfg.Timeout,
			Logger:  logger,
		})
	case config.PredictorModeFormula:
		return predictor.Formula{}
	default:
		return nil
	}
}

func newRetriever(cfg config.KnowledgeConfig, pool *pgxpool.Pool, logger *slog.Logger) (knowledge.Retriever, error) {
	switch cfg.Source {
	case config.KnowledgeSourcePostgres:
		return knowledge.WithTimeout(db.NewKnowledgeRepository(pool), cfg.Timeout), nil
	case config.KnowledgeSourceMemory:
		docs, err := knowledge.LoadDir(cfg.Dir)
		if err != nil {
			return nil, fmt.Errorf("loading knowledge base: %w", err)
		}
		store := knowledge.NewMemoryStore(docs)
		logger.Info("knowledge base loaded", "dir", cfg.Dir, "chunks", store.Len(), "topics", len(store.Topics()))
		return store, nil
	default:
		return knowledge.Nop{}, nil
	}
}

func newReporting(ctx context.Context, cfg *config.Config, deps Deps, logger *slog.Logger) (advisor.EventPublisher, telemetry.Recorder, error) {
	var (
		publisher advisor.EventPublisher = queue.Nop{}
		metrics   telemetry.Recorder     = telemetry.Nop{}
	)
	if cfg.AWS.RunEventsQueueURL == "" && !cfg.Observability.EnableMetrics {
		return publisher, metrics, nil
	}

	awsCfg, err := deps.LoadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		return nil, nil, fmt.Errorf("loading AWS config: %w", err)
	}
	endpoint := strings.TrimSpace(cfg.AWS.EndpointURL)

	if cfg.AWS.RunEventsQueueURL != "" {
		client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		})
		publisher = queue.NewRunEventPublisher(client, cfg.AWS.RunEventsQueueURL, logger)
	}
	if cfg.Observability.EnableMetrics {
		client := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		})
		metrics = telemetry.NewCloudWatchRecorder(client, cfg.Observability.MetricNamespace, cfg.Environment, logger)
	}
	return publisher, metrics, nil
}

// LoadAWSConfig resolves credentials from the default chain for the
// configured region.
func LoadAWSConfig(ctx context.Context, cfg config.AWSConfig) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}

// NewLogger returns a JSON slog logger on stdout at the given level.
func NewLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
