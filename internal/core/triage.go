package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/incidenthq/triage/internal/core/model"
	"github.com/incidenthq/triage/internal/llm"
)

// IssueTracker is the slice of the tracker API the triage flow consumes:
// read a description, post the recommendation back verbatim.
type IssueTracker interface {
	Description(ctx context.Context, key string) (string, error)
	AddComment(ctx context.Context, key, body string) error
}

// Triage wires the full flow for one issue: fetch description, embed, rank
// neighbors, analyze, post the formatted recommendation.
type Triage struct {
	tracker   IssueTracker
	embedder  llm.EmbedderClient
	ranker    *Ranker
	analyzer  *Analyzer
	threshold float64
	limit     int
	logger    *zap.Logger
}

func NewTriage(tracker IssueTracker, embedder llm.EmbedderClient, ranker *Ranker, analyzer *Analyzer, threshold float64, limit int, logger *zap.Logger) *Triage {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Triage{
		tracker:   tracker,
		embedder:  embedder,
		ranker:    ranker,
		analyzer:  analyzer,
		threshold: threshold,
		limit:     limit,
		logger:    logger,
	}
}

// Result is the outcome of processing one issue.
type Result struct {
	IssueKey  string                  `json:"issue_key"`
	Commented bool                    `json:"commented"`
	Matches   []model.SimilarityMatch `json:"matches"`
	Outcome   AnalysisOutcome         `json:"-"`
}

// Threshold returns the configured default similarity threshold.
func (t *Triage) Threshold() float64 { return t.threshold }

// Limit returns the configured default result limit.
func (t *Triage) Limit() int { return t.limit }

// Search embeds free text and ranks it against the corpus. Parameters are
// validated by the ranker, never clamped.
func (t *Triage) Search(ctx context.Context, query string, threshold float64, limit int) ([]model.SimilarityMatch, error) {
	vec, err := t.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	return t.ranker.Query(ctx, vec, threshold, limit)
}

// ProcessIssue runs the full triage flow for one issue key. It returns a
// Result with Commented=false (and no error) when there is nothing to say:
// empty description or no similar incidents above the threshold.
func (t *Triage) ProcessIssue(ctx context.Context, issueKey string, threshold float64) (*Result, error) {
	res := &Result{IssueKey: issueKey}
	log := t.logger.With(zap.String("issue_key", issueKey))

	if t.tracker == nil {
		return res, fmt.Errorf("no issue tracker configured")
	}

	description, err := t.tracker.Description(ctx, issueKey)
	if err != nil {
		return res, fmt.Errorf("fetching description: %w", err)
	}
	if description == "" {
		log.Info("no description, skipping")
		return res, nil
	}

	matches, err := t.Search(ctx, description, threshold, t.limit)
	if err != nil {
		return res, err
	}
	res.Matches = matches
	if len(matches) == 0 {
		log.Info("no similar incidents above threshold")
		return res, nil
	}

	res.Outcome = t.analyzer.Analyze(ctx, description, matches)
	comment := FormatRecommendation(description, matches, res.Outcome)
	if err := t.tracker.AddComment(ctx, issueKey, comment); err != nil {
		return res, fmt.Errorf("posting comment: %w", err)
	}

	res.Commented = true
	log.Info("posted analysis comment",
		zap.Int("matches", len(matches)),
		zap.String("analysis_source", string(res.Outcome.Source)),
		zap.Float64("confidence", res.Outcome.Summary.ConfidenceScore))
	return res, nil
}

// ProcessBatch triages many issues, continuing past individual failures.
func (t *Triage) ProcessBatch(ctx context.Context, issueKeys []string) map[string]bool {
	results := make(map[string]bool, len(issueKeys))
	for _, key := range issueKeys {
		res, err := t.ProcessIssue(ctx, key, t.threshold)
		if err != nil {
			t.logger.Error("issue processing failed", zap.String("issue_key", key), zap.Error(err))
			results[key] = false
			continue
		}
		results[key] = res.Commented
	}
	return results
}
