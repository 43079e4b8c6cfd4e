package grimoire

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/siherrmann/grimoire/core/orchestrator"
	"github.com/siherrmann/grimoire/core/pipeline"
	"github.com/siherrmann/grimoire/core/retrieval"
	"github.com/siherrmann/grimoire/core/scoring"
	"github.com/siherrmann/grimoire/database"
	"github.com/siherrmann/grimoire/helper"
	"github.com/siherrmann/grimoire/llm"
	"github.com/siherrmann/grimoire/model"
	loadSql "github.com/siherrmann/grimoire/sql"
	"github.com/siherrmann/grimoire/web"
)

// Generator is a language model backend that can be probed by the health check
type Generator interface {
	orchestrator.Generator
	Ping(ctx context.Context) error
}

// Components are the external collaborators of a Grimoire.
// New builds them from the configuration, tests can pass fakes to NewWithComponents.
type Components struct {
	Embedder  *pipeline.Embedder
	Primary   Generator // Optional when primary generation is disabled
	Secondary Generator
	Web       orchestrator.WebSource // Optional
}

// BuildReport summarizes a corpus rebuild
type BuildReport struct {
	Documents int           `json:"documents"`
	Chunks    int           `json:"chunks"`
	Duration  time.Duration `json:"duration"`
}

// Grimoire answers rulebook questions and owns every handler and model client
type Grimoire struct {
	DB        *helper.Database
	Documents *database.DocumentsDBHandler
	Chunks    *database.ChunksDBHandler
	Cache     *database.CacheDBHandler
	Histories *database.HistoryDBHandler
	Pipeline  *pipeline.Pipeline
	Engine    *retrieval.Engine
	// Answering
	orchestrator *orchestrator.Orchestrator
	cached       *orchestrator.Cached
	answerer     orchestrator.Answerer
	primary      Generator
	secondary    Generator
	// Config
	config *model.Config
	// Rebuilds are serialized
	rebuildMu sync.Mutex
	// Logging
	log *slog.Logger
}

// New creates a Grimoire connected to the database in dbConfig.
// The embedding model is downloaded on first use, missing credentials fail here.
func New(config *model.Config, dbConfig *helper.DatabaseConfiguration) (*Grimoire, error) {
	if config == nil {
		config = model.DefaultConfig()
	}
	if err := config.ValidateCredentials(); err != nil {
		return nil, err
	}

	logger := helper.NewLogger(os.Stdout, helper.ParseLevel(config.LogLevel))

	db, err := helper.ConnectDatabase("grimoire", dbConfig, logger)
	if err != nil {
		return nil, err
	}

	embedder, err := pipeline.DefaultEmbedder(helper.DefaultModelDir, config.RAG.EmbeddingModel, config.RAG.EmbeddingDimension, config.RAG.EmbedBatchSize)
	if err != nil {
		db.Close()
		return nil, helper.NewError("create default embedder", err)
	}

	components, err := newComponents(config, embedder, logger)
	if err != nil {
		embedder.Close()
		db.Close()
		return nil, err
	}

	g, err := NewWithComponents(config, db, components)
	if err != nil {
		embedder.Close()
		db.Close()
		return nil, err
	}

	return g, nil
}

func newComponents(config *model.Config, embedder *pipeline.Embedder, logger *slog.Logger) (Components, error) {
	components := Components{Embedder: embedder}

	if config.RAG.UsePrimary {
		primary, err := llm.NewOllamaClient(config.Ollama, logger)
		if err != nil {
			return components, helper.NewError("create ollama client", err)
		}
		components.Primary = primary
	}

	secondary, err := llm.NewClaudeClient(config.Claude, logger)
	if err != nil {
		return components, helper.NewError("create claude client", err)
	}
	components.Secondary = secondary

	scraper, err := web.NewScraper(config.Web, nil, logger)
	if err != nil {
		return components, helper.NewError("create web scraper", err)
	}
	components.Web = scraper

	return components, nil
}

// NewWithComponents creates a Grimoire on an open database with the given collaborators
func NewWithComponents(config *model.Config, db *helper.Database, components Components) (*Grimoire, error) {
	if config == nil {
		return nil, helper.NewError("grimoire validation", fmt.Errorf("config is nil"))
	}
	if db == nil {
		return nil, helper.NewError("grimoire validation", fmt.Errorf("database is nil"))
	}
	if components.Embedder == nil {
		return nil, helper.NewError("grimoire validation", fmt.Errorf("embedder is nil"))
	}
	if components.Embedder.Dimension() != config.RAG.EmbeddingDimension {
		return nil, helper.NewError("grimoire validation", fmt.Errorf("embedder dimension %d does not match configured dimension %d", components.Embedder.Dimension(), config.RAG.EmbeddingDimension))
	}
	logger := db.Logger

	err := loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Documents first, chunks reference them
	documents, err := database.NewDocumentsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create documents handler", err)
	}

	chunks, err := database.NewChunksDBHandler(db, config.RAG.EmbeddingDimension, false)
	if err != nil {
		return nil, helper.NewError("create chunks handler", err)
	}

	cache, err := database.NewCacheDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create cache handler", err)
	}

	history, err := database.NewHistoryDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create history handler", err)
	}

	engine := retrieval.NewEngine(components.Embedder, chunks)

	var primary orchestrator.Generator
	if components.Primary != nil {
		primary = components.Primary
	}
	var secondary orchestrator.Generator
	if components.Secondary != nil {
		secondary = components.Secondary
	}

	orch, err := orchestrator.NewOrchestrator(
		engine,
		primary,
		secondary,
		components.Web,
		scoring.NewScorer(scoring.DefaultConfig()),
		orchestrator.NewConfig(config),
		logger,
	)
	if err != nil {
		return nil, helper.NewError("create orchestrator", err)
	}

	cached := orchestrator.NewCached(orch, cache, logger)
	var answerer orchestrator.Answerer = orch
	if config.RAG.CacheEnabled {
		answerer = cached
	}

	return &Grimoire{
		DB:           db,
		Documents:    documents,
		Chunks:       chunks,
		Cache:        cache,
		Histories:    history,
		Pipeline:     pipeline.NewPipeline(pipeline.RecursiveChunker(config.RAG.ChunkSize, config.RAG.ChunkOverlap), components.Embedder),
		Engine:       engine,
		orchestrator: orch,
		cached:       cached,
		answerer:     answerer,
		primary:      components.Primary,
		secondary:    components.Secondary,
		config:       config,
		log:          logger,
	}, nil
}

// Close releases the embedding model and the database connection
func (g *Grimoire) Close() error {
	if g.Pipeline != nil && g.Pipeline.Embedder != nil {
		if err := g.Pipeline.Embedder.Close(); err != nil {
			g.log.Warn("Failed to close embedder", slog.Any("error", err))
		}
	}
	return g.DB.Close()
}

// Logger returns the logger shared by all components
func (g *Grimoire) Logger() *slog.Logger {
	return g.log
}

// Config returns the active configuration
func (g *Grimoire) Config() *model.Config {
	return g.config
}

// Answer answers question from the rulebooks, escalating low confidence answers.
// Every answer is appended to the chat history.
func (g *Grimoire) Answer(ctx context.Context, question string, topK int) (*model.QueryResult, error) {
	start := time.Now()

	result, err := g.answerer.Answer(ctx, question, model.ClampTopK(topK))
	if err != nil {
		return nil, err
	}
	result.ResponseTime = time.Since(start).Seconds()

	entry := &model.HistoryEntry{
		Question: question,
		Result:   *result,
	}
	if err := g.Histories.InsertHistoryEntry(ctx, entry); err != nil {
		g.log.Warn("Failed to save history entry", slog.Any("error", err))
	}

	g.log.Info("Answered question",
		slog.String("method", string(result.MethodUsed)),
		slog.Float64("confidence", result.Confidence),
		slog.Bool("cached", result.Cached),
		slog.Float64("response_time", result.ResponseTime),
	)

	return result, nil
}

// BuildIndex rebuilds the whole index from the PDFs in dir (the configured corpus directory if empty).
// Queries keep using the previous index until the new one is swapped in.
func (g *Grimoire) BuildIndex(ctx context.Context, dir string) (*BuildReport, error) {
	g.rebuildMu.Lock()
	defer g.rebuildMu.Unlock()

	if dir == "" {
		dir = g.config.Corpus.PDFDir
	}
	start := time.Now()

	files, err := pipeline.ListPDFs(dir)
	if err != nil {
		return nil, helper.NewError("list pdfs", err)
	}
	if len(files) == 0 {
		return nil, helper.NewError("build index", fmt.Errorf("no pdf files found in %s", dir))
	}

	err = g.Chunks.BeginRebuild(ctx)
	if err != nil {
		return nil, err
	}

	report, err := g.buildStaging(ctx, files)
	if err != nil {
		if abortErr := g.Chunks.AbortRebuild(context.WithoutCancel(ctx)); abortErr != nil {
			g.log.Error("Failed to abort rebuild", slog.Any("error", abortErr))
		}
		return nil, err
	}

	count, err := g.Chunks.SwapRebuild(ctx)
	if err != nil {
		return nil, err
	}
	report.Chunks = count
	report.Duration = time.Since(start)

	// Cached answers were computed from the previous corpus
	cleared, err := g.cached.ClearCache(ctx)
	if err != nil {
		g.log.Warn("Failed to clear cache after rebuild", slog.Any("error", err))
	}

	g.log.Info("Built index",
		slog.Int("documents", report.Documents),
		slog.Int("chunks", report.Chunks),
		slog.Int("cleared_cache_entries", cleared),
		slog.Duration("duration", report.Duration),
	)

	return report, nil
}

func (g *Grimoire) buildStaging(ctx context.Context, files []string) (*BuildReport, error) {
	report := &BuildReport{}

	for _, file := range files {
		doc, err := pipeline.ExtractPDF(file, g.log)
		if err != nil {
			return nil, helper.NewError(fmt.Sprintf("extract %s", filepath.Base(file)), err)
		}

		chunks, err := g.Pipeline.Process(ctx, doc.Content, doc.Source)
		if err != nil {
			return nil, helper.NewError(fmt.Sprintf("process %s", doc.Source), err)
		}
		doc.ChunkCount = len(chunks)

		err = g.Documents.InsertStagingDocument(ctx, doc)
		if err != nil {
			return nil, helper.NewError(fmt.Sprintf("insert document %s", doc.Source), err)
		}
		for _, chunk := range chunks {
			chunk.DocumentRID = doc.RID
		}

		err = g.Chunks.InsertStagingChunks(ctx, chunks)
		if err != nil {
			return nil, helper.NewError(fmt.Sprintf("insert chunks of %s", doc.Source), err)
		}

		report.Documents++
		report.Chunks += len(chunks)
		g.log.Info("Indexed document",
			slog.String("source", doc.Source),
			slog.Int("pages", doc.PageCount),
			slog.Int("chunks", len(chunks)),
		)
	}

	if report.Chunks == 0 {
		return nil, helper.NewError("build index", fmt.Errorf("no text extracted from %d pdf files", len(files)))
	}

	return report, nil
}

// Health probes the generators and the index.
// The report is healthy when the answering generator is reachable and the index is not empty.
func (g *Grimoire) Health(ctx context.Context) *model.HealthReport {
	report := &model.HealthReport{
		Version:    model.Version,
		UsePrimary: g.config.RAG.UsePrimary,
	}

	var answeringOK bool
	if g.primary != nil {
		check := model.NewComponentCheck("ollama", g.primary.Ping(ctx))
		report.Checks = append(report.Checks, check)
		answeringOK = check.OK
	}
	if g.secondary != nil {
		check := model.NewComponentCheck("claude", g.secondary.Ping(ctx))
		report.Checks = append(report.Checks, check)
		if !g.config.RAG.UsePrimary {
			answeringOK = check.OK
		}
	}

	count, err := g.Chunks.CountChunks(ctx)
	report.Checks = append(report.Checks, model.NewComponentCheck("vector_db", err))
	report.VectorCount = count

	files, err := pipeline.ListPDFs(g.config.Corpus.PDFDir)
	report.Checks = append(report.Checks, model.NewComponentCheck("pdf_dir", err))
	report.PDFCount = len(files)

	report.Status = model.HealthStatusDegraded
	if answeringOK && report.VectorCount > 0 {
		report.Status = model.HealthStatusHealthy
	}

	return report
}

// Stats returns the index statistics and the reported configuration
func (g *Grimoire) Stats(ctx context.Context) (*model.Stats, error) {
	chunks, err := g.Chunks.CountChunks(ctx)
	if err != nil {
		return nil, helper.NewError("count chunks", err)
	}
	documents, err := g.Documents.CountDocuments(ctx)
	if err != nil {
		return nil, helper.NewError("count documents", err)
	}
	cacheEntries, err := g.cached.CacheStats(ctx)
	if err != nil {
		return nil, err
	}

	return &model.Stats{
		Index: model.IndexStats{
			ChunkCount:     chunks,
			DocumentCount:  documents,
			CacheEntries:   cacheEntries,
			Dimension:      g.Chunks.Dimension(),
			EmbeddingModel: g.config.RAG.EmbeddingModel,
		},
		Config: model.NewStatsConfig(g.config),
	}, nil
}

// ListDocuments returns the indexed rulebooks ordered by source
func (g *Grimoire) ListDocuments(ctx context.Context) ([]*model.Document, error) {
	return g.Documents.SelectAllDocuments(ctx)
}

// History returns the latest limit answered questions oldest first, all of them if limit is zero or less
func (g *Grimoire) History(ctx context.Context, limit int) ([]*model.HistoryEntry, error) {
	return g.Histories.SelectAllHistoryEntries(ctx, limit)
}

// ClearHistory removes every history entry
func (g *Grimoire) ClearHistory(ctx context.Context) (int, error) {
	return g.Histories.DeleteAllHistoryEntries(ctx)
}

// ClearCache removes every cached answer
func (g *Grimoire) ClearCache(ctx context.Context) (int, error) {
	return g.cached.ClearCache(ctx)
}

// ChangeIndexType recreates the vector index as HNSW or IVFFlat.
// A later BuildIndex creates the default HNSW index again.
func (g *Grimoire) ChangeIndexType(ctx context.Context, indexType string, opts database.IndexOptions) error {
	return g.Chunks.ChangeIndexType(ctx, indexType, opts)
}
