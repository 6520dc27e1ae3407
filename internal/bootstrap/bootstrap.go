package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/scimuse/scimuse/internal/config"
	"github.com/scimuse/scimuse/internal/core/agent"
	"github.com/scimuse/scimuse/internal/core/ports"
	"github.com/scimuse/scimuse/internal/core/usecase"
	"github.com/scimuse/scimuse/internal/infrastructure/chunking"
	"github.com/scimuse/scimuse/internal/infrastructure/contentstore"
	"github.com/scimuse/scimuse/internal/infrastructure/extractor/pdfext"
	"github.com/scimuse/scimuse/internal/infrastructure/gateway/openai"
	"github.com/scimuse/scimuse/internal/infrastructure/repository/postgres"
	"github.com/scimuse/scimuse/internal/infrastructure/resilience"
	"github.com/scimuse/scimuse/internal/infrastructure/vector/qdrant"
	"github.com/scimuse/scimuse/internal/observability/logging"
	"github.com/scimuse/scimuse/internal/observability/metrics"
)

// App holds the wired application graph.
type App struct {
	Config   config.Config
	Logger   *slog.Logger
	Metrics  *metrics.PipelineMetrics
	Ingestor ports.DocumentIngestor
	Asker    ports.QuestionService

	db *sql.DB
}

// New wires configuration, storage, the model gateway, the agents and the
// two use cases. The returned App owns the database handle; callers must
// Close it.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger := logging.NewJSONLogger("scimuse", cfg.LogLevel)
	slog.SetDefault(logger)
	pipelineMetrics := metrics.NewPipelineMetrics("scimuse")

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewContentRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	index := qdrant.New(cfg.QdrantURL, cfg.QdrantCollection)
	store := contentstore.New(repo, index, cfg.EmbedDim)

	gateway := openai.New(openai.Options{
		BaseURL:       cfg.APIBaseURL,
		APIKey:        cfg.APIKey,
		EmbedModel:    cfg.EmbedModel,
		VisionModel:   cfg.VisionModel,
		GenModel:      cfg.GenModel,
		RatePerSecond: cfg.BackendRateLimit,
		Resilience:    resilience.DefaultConfig(),
	})

	captioner := agent.NewCaptioner(gateway)

	ingestor := usecase.NewIngestor(
		pdfext.New(),
		chunking.NewSplitter(cfg.ChunkTargetTokens, cfg.ChunkMaxTokens),
		captioner,
		gateway,
		store,
		cfg.EmbedModel,
		pipelineMetrics,
		logger,
	)

	orchestrator := usecase.NewOrchestrator(
		agent.NewPlanner(gateway, cfg.MaxSubTasks),
		agent.NewRetriever(gateway, store, cfg.RetrievalTopK),
		captioner,
		agent.NewReasoner(gateway, agent.ReasonerConfig{
			CoveragePenalty:    cfg.CoveragePenalty,
			ComparativePenalty: cfg.ComparativePenalty,
		}),
		agent.NewReviewer(gateway),
		usecase.OrchestratorConfig{
			ReviewMaxRetry:  cfg.ReviewMaxRetry,
			SubTaskParallel: cfg.SubTaskParallel,
			RevisePenalty:   cfg.RevisePenalty,
		},
		pipelineMetrics,
		logger,
	)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Metrics:  pipelineMetrics,
		Ingestor: ingestor,
		Asker:    orchestrator,
		db:       db,
	}, nil
}

func (a *App) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}
