package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/siherrmann/grimoire/core/prompt"
	"github.com/siherrmann/grimoire/core/scoring"
	"github.com/siherrmann/grimoire/helper"
	"github.com/siherrmann/grimoire/model"
)

// Retriever returns the records nearest to a question, closest first
type Retriever interface {
	Retrieve(ctx context.Context, question string, topK int) ([]model.RetrievedRecord, error)
}

// Generator produces an answer for a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// WebSource searches the web for snippets related to a query
type WebSource interface {
	Search(ctx context.Context, query string, maxResults int) ([]model.WebSnippet, error)
}

// Answerer answers a question using up to topK retrieved records
type Answerer interface {
	Answer(ctx context.Context, question string, topK int) (*model.QueryResult, error)
}

// Config controls when and how answers are escalated
type Config struct {
	ConfidenceThreshold float64
	EscalationBoost     float64
	MaxWebResults       int
	UsePrimary          bool
	// RescoreSecondary scores the secondary answer instead of boosting the primary confidence
	RescoreSecondary bool
}

// DefaultConfig returns the default escalation settings
func DefaultConfig() Config {
	return Config{
		ConfidenceThreshold: 0.8,
		EscalationBoost:     0.3,
		MaxWebResults:       3,
		UsePrimary:          true,
	}
}

// NewConfig creates the escalation settings from the application configuration
func NewConfig(config *model.Config) Config {
	return Config{
		ConfidenceThreshold: config.RAG.ConfidenceThreshold,
		EscalationBoost:     config.RAG.EscalationBoost,
		MaxWebResults:       config.Web.MaxResults,
		UsePrimary:          config.RAG.UsePrimary,
		RescoreSecondary:    config.RAG.RescoreSecondary,
	}
}

// Orchestrator runs the generate, score and escalate protocol.
// It holds no per-query state and is safe for concurrent use.
type Orchestrator struct {
	retriever Retriever
	primary   Generator
	secondary Generator
	web       WebSource
	scorer    *scoring.Scorer
	config    Config
	logger    *slog.Logger
}

// NewOrchestrator creates an orchestrator.
// The primary generator may be nil when UsePrimary is false, and web may be nil to escalate
// without web context.
func NewOrchestrator(retriever Retriever, primary Generator, secondary Generator, web WebSource, scorer *scoring.Scorer, config Config, logger *slog.Logger) (*Orchestrator, error) {
	if retriever == nil {
		return nil, helper.NewError("orchestrator validation", fmt.Errorf("retriever is nil"))
	}
	if secondary == nil {
		return nil, helper.NewError("orchestrator validation", fmt.Errorf("secondary generator is nil"))
	}
	if config.UsePrimary && primary == nil {
		return nil, helper.NewError("orchestrator validation", fmt.Errorf("primary generator is nil"))
	}
	if scorer == nil {
		scorer = scoring.NewScorer(scoring.DefaultConfig())
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		retriever: retriever,
		primary:   primary,
		secondary: secondary,
		web:       web,
		scorer:    scorer,
		config:    config,
		logger:    logger,
	}, nil
}

// Answer answers question from the rulebook index.
// The primary answer is returned when its confidence reaches the threshold, otherwise the
// question is escalated to the secondary generator with web context.
func (o *Orchestrator) Answer(ctx context.Context, question string, topK int) (*model.QueryResult, error) {
	records, err := o.retriever.Retrieve(ctx, question, topK)
	if err != nil {
		return nil, &RetrievalError{Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &RetrievalError{Err: err}
	}

	pdfContext := prompt.FormatContext(records)
	similarities := model.Similarities(records)

	if !o.config.UsePrimary {
		return o.escalate(ctx, question, pdfContext, records, nil)
	}

	answer, err := o.primary.Generate(ctx, prompt.Primary(question, pdfContext))
	if err != nil {
		return nil, &GenerationError{Stage: StagePrimary, Err: err}
	}

	confidence := o.scorer.Score(answer, similarities)
	o.logger.Debug("Scored primary answer", slog.Float64("confidence", confidence), slog.Int("sources", len(records)))

	if confidence >= o.config.ConfidenceThreshold {
		return &model.QueryResult{
			Question:    question,
			Answer:      answer,
			Confidence:  confidence,
			MethodUsed:  model.MethodPrimary,
			Sources:     model.NewSourcePreviews(records),
			WebEnhanced: false,
		}, nil
	}

	o.logger.Info("Escalating low confidence answer", slog.Float64("confidence", confidence), slog.Float64("threshold", o.config.ConfidenceThreshold))

	return o.escalate(ctx, question, pdfContext, records, &confidence)
}

// escalate answers with the secondary generator and web context.
// primaryConfidence is nil when the primary generator was skipped.
func (o *Orchestrator) escalate(ctx context.Context, question string, pdfContext string, records []model.RetrievedRecord, primaryConfidence *float64) (*model.QueryResult, error) {
	snippets := o.search(ctx, question)

	answer, err := o.secondary.Generate(ctx, prompt.Secondary(question, pdfContext, prompt.FormatWebContext(snippets)))
	if err != nil {
		return nil, &GenerationError{Stage: StageSecondary, Err: err}
	}

	var confidence float64
	switch {
	case o.config.RescoreSecondary:
		confidence = o.scorer.Score(answer, model.Similarities(records))
	case primaryConfidence != nil:
		confidence = scoring.Boost(*primaryConfidence, o.config.EscalationBoost)
	default:
		confidence = scoring.Boost(o.scorer.Score(answer, model.Similarities(records)), o.config.EscalationBoost)
	}

	return &model.QueryResult{
		Question:    question,
		Answer:      answer,
		Confidence:  confidence,
		MethodUsed:  model.MethodSecondaryWithWeb,
		Sources:     model.NewSourcePreviews(records),
		WebEnhanced: true,
		WebSources:  model.NewWebSourcePreviews(snippets),
	}, nil
}

// search returns at most MaxWebResults snippets. Failures only cost the web context.
func (o *Orchestrator) search(ctx context.Context, question string) []model.WebSnippet {
	if o.web == nil || o.config.MaxWebResults <= 0 {
		return nil
	}

	snippets, err := o.web.Search(ctx, question, o.config.MaxWebResults)
	if err != nil {
		o.logger.Warn("Web search failed, escalating without web context", slog.Any("error", err))
		return nil
	}
	if len(snippets) > o.config.MaxWebResults {
		snippets = snippets[:o.config.MaxWebResults]
	}

	return snippets
}
