package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/0xcro3dile/oqgen/internal/adapters/audit"
	"github.com/0xcro3dile/oqgen/internal/adapters/embedding"
	"github.com/0xcro3dile/oqgen/internal/adapters/llm"
	"github.com/0xcro3dile/oqgen/internal/adapters/metrics"
	"github.com/0xcro3dile/oqgen/internal/adapters/output"
	"github.com/0xcro3dile/oqgen/internal/adapters/runstore"
	"github.com/0xcro3dile/oqgen/internal/adapters/vectordb"
	"github.com/0xcro3dile/oqgen/internal/config"
	"github.com/0xcro3dile/oqgen/internal/domain/ports"
	"github.com/0xcro3dile/oqgen/internal/domain/usecases"
	"github.com/0xcro3dile/oqgen/internal/domain/workflow"
)

// auditPath is where the hash-chained audit log lives for an output directory.
func auditPath(outputDir string) string {
	return filepath.Join(outputDir, "audit", "audit.jsonl")
}

func runsPath(dataDir string) string {
	return filepath.Join(dataDir, "runs.db")
}

// application holds every wired component for one CLI invocation.
type application struct {
	cfg     config.Config
	logger  *zap.Logger
	metrics *metrics.Prometheus

	llm      ports.LLMService
	embedder ports.EmbeddingService
	store    ports.VectorStore
	audit    *audit.JSONLLog
	runs     *runstore.GormStore

	ingest   *usecases.IngestUseCase
	pipeline *workflow.Workflow

	closers []func() error
}

// newApplication validates cfg and builds the full component graph.
// With ephemeral set the knowledge base and embedding cache live in memory.
func newApplication(ctx context.Context, cfg config.Config, logger *zap.Logger, ephemeral bool) (_ *application, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &application{cfg: cfg, logger: logger, metrics: metrics.New()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	base, err := newLLM(ctx, cfg.LLM)
	if err != nil {
		return nil, err
	}
	a.llm = llm.NewInstrumented(base, cfg.LLM.Timeout, a.metrics, logger)

	if a.embedder, err = a.newEmbedder(ctx, ephemeral); err != nil {
		return nil, err
	}

	if ephemeral {
		a.store = vectordb.NewInMemoryStore()
	} else {
		sqliteStore, err := vectordb.NewSQLiteStore(cfg.Paths.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening vector store: %w", err)
		}
		a.closers = append(a.closers, sqliteStore.Close)
		a.store = sqliteStore
	}

	if a.audit, err = audit.Open(auditPath(cfg.Paths.OutputDir), logger); err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.audit.Close)

	if a.runs, err = runstore.Open(runsPath(cfg.Paths.DataDir)); err != nil {
		return nil, fmt.Errorf("opening run history: %w", err)
	}
	a.closers = append(a.closers, a.runs.Close)

	a.ingest = usecases.NewIngestUseCase(a.embedder, a.store, cfg.Retrieval.ChunkSize, cfg.Retrieval.ChunkOverlap)

	maxChars := cfg.Categorization.MaxDocumentChars
	a.pipeline, err = workflow.New(
		workflow.Agents{
			Categorizer: usecases.NewCategorizeUseCase(a.llm, cfg.Categorization.ConfidenceThreshold, maxChars),
			Context:     usecases.NewContextUseCase(a.embedder, a.store, a.llm, cfg.Retrieval.TopK),
			Research:    usecases.NewResearchUseCase(a.llm, maxChars/4),
			SME:         usecases.NewSMEUseCase(a.llm, maxChars/2),
			Generator:   usecases.NewGenerateUseCase(a.llm, cfg.Generation.Ranges, cfg.Generation.BatchSize, maxChars),
		},
		workflow.Deps{
			Audit:   a.audit,
			Writer:  output.NewFileWriter(cfg.Paths.OutputDir, logger),
			Runs:    a.runs,
			Metrics: a.metrics,
			Logger:  logger,
			Timeout: cfg.Pipeline.Timeout,
		},
	)
	if err != nil {
		return nil, err
	}

	logger.Info("Application ready",
		zap.String("llm", a.llm.Name()),
		zap.String("embedding", cfg.Embedding.Provider),
		zap.Bool("ephemeral", ephemeral),
		zap.String("output_dir", cfg.Paths.OutputDir),
		zap.String("audit_log", a.audit.Path()))
	return a, nil
}

func newLLM(ctx context.Context, c config.LLMConfig) (ports.LLMService, error) {
	switch c.Provider {
	case config.ProviderOpenAI:
		return llm.NewOpenAIAdapter(c.APIKey, c.BaseURL, c.Model)
	case config.ProviderGemini:
		return llm.NewGeminiAdapter(ctx, c.APIKey, c.BaseURL, c.Model)
	case config.ProviderOllama:
		return llm.NewOllamaLLMAdapter(c.BaseURL, c.Model), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", c.Provider)
}

func (a *application) newEmbedder(ctx context.Context, ephemeral bool) (ports.EmbeddingService, error) {
	c := a.cfg.Embedding

	var base embedding.NamedEmbedder
	var err error
	switch c.Provider {
	case config.ProviderOpenAI:
		base, err = embedding.NewOpenAIAdapter(c.APIKey, c.BaseURL, c.Model)
	case config.ProviderGemini:
		base, err = embedding.NewGeminiAdapter(ctx, c.APIKey, c.BaseURL, c.Model)
	case config.ProviderOllama:
		base = embedding.NewOllamaAdapter(c.BaseURL, c.Model, a.logger)
	default:
		err = fmt.Errorf("unknown embedding provider %q", c.Provider)
	}
	if err != nil {
		return nil, err
	}
	if !c.Cache {
		return base, nil
	}

	cachePath := filepath.Join(a.cfg.Paths.DataDir, "embeddings")
	if ephemeral {
		cachePath = ""
	}
	db, err := embedding.OpenCache(cachePath, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, db.Close)
	return embedding.NewCached(base, db, a.metrics, a.logger), nil
}

// flushMetrics writes the textfile when one is configured.
func (a *application) flushMetrics() {
	if a.cfg.Metrics.Textfile == "" {
		return
	}
	if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		a.logger.Warn("Failed to write metrics textfile", zap.String("path", a.cfg.Metrics.Textfile), zap.Error(err))
	}
}

// Close releases resources in reverse order of acquisition.
func (a *application) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
