package core

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/incidenthq/triage/internal/core/common"
	"github.com/incidenthq/triage/internal/core/model"
	"github.com/incidenthq/triage/internal/llm"
)

// AnalysisSource tags which path produced an analysis outcome, so callers
// and tests can assert whether enrichment actually ran.
type AnalysisSource string

const (
	SourceEnriched AnalysisSource = "enriched"
	SourceFallback AnalysisSource = "fallback"
)

// AnalysisOutcome is a pattern summary plus the provenance of its content.
// FallbackReason is set only when Source is SourceFallback and enrichment
// was attempted.
type AnalysisOutcome struct {
	Summary        model.PatternSummary
	Source         AnalysisSource
	FallbackReason string
}

// Analyzer combines the rule-based aggregation with an optional LLM
// enrichment pass. A nil LLM client disables enrichment entirely.
type Analyzer struct {
	llm                     llm.LLMClient
	minForConfidentAnalysis int
	logger                  *zap.Logger
}

func NewAnalyzer(llmClient llm.LLMClient, minForConfidentAnalysis int, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		llm:                     llmClient,
		minForConfidentAnalysis: minForConfidentAnalysis,
		logger:                  logger,
	}
}

// Analyze produces the recommendation for a set of retrieved neighbors.
// Enrichment failures of any kind (generation, parsing, validation) fall
// back to the local rule-based summary; they are logged, never surfaced to
// the caller as errors.
func (a *Analyzer) Analyze(ctx context.Context, description string, matches []model.SimilarityMatch) AnalysisOutcome {
	local := Analyze(matches, a.minForConfidentAnalysis)

	if a.llm == nil || len(matches) == 0 {
		return AnalysisOutcome{Summary: local, Source: SourceFallback}
	}

	enriched, err := a.enrich(ctx, description, matches)
	if err != nil {
		a.logger.Warn("enrichment failed, using rule-based analysis", zap.Error(err))
		return AnalysisOutcome{
			Summary:        local,
			Source:         SourceFallback,
			FallbackReason: err.Error(),
		}
	}

	summary := local
	summary.Patterns = enriched.Patterns
	summary.RootCauses = enriched.RootCauses
	summary.Recommendations = enriched.Recommendations
	summary.ConfidenceScore = enriched.ConfidenceScore
	summary.SuggestedAssignee = enriched.SuggestedAssignee
	summary.SuggestedGroup = enriched.SuggestedGroup
	return AnalysisOutcome{Summary: summary, Source: SourceEnriched}
}

func (a *Analyzer) enrich(ctx context.Context, description string, matches []model.SimilarityMatch) (*model.EnrichmentResult, error) {
	prompt := buildEnrichmentPrompt(description, matches)

	response, err := a.llm.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("generation: %w", err)
	}

	result, err := common.ParseJSON[model.EnrichmentResult](response)
	if err != nil {
		return nil, fmt.Errorf("malformed enrichment response: %w", err)
	}
	if err := result.Validate(); err != nil {
		return nil, fmt.Errorf("malformed enrichment response: %w", err)
	}
	return &result, nil
}

func buildEnrichmentPrompt(description string, matches []model.SimilarityMatch) string {
	var b strings.Builder
	for _, m := range matches {
		inc := m.Incident
		fmt.Fprintf(&b, "\nINC-%s: %s\n", inc.ID, inc.ShortDescription)
		fmt.Fprintf(&b, "- Assignee: %s, Group: %s\n", inc.Assignee, inc.Group)
		fmt.Fprintf(&b, "- Created by: %s, Updated by: %s\n", inc.CreatedBy, inc.UpdatedBy)
	}

	return fmt.Sprintf(`You are an expert incident analyst. Analyze the following incident description and historical similar incidents to provide insights and recommendations.

Current Incident Description:
%s

Historical Similar Incidents:
%s

Based on this information, provide:
1. Key patterns and similarities you observe
2. Most likely root causes based on historical data
3. Recommended actions and next steps
4. Confidence level (0-1) in your analysis
5. Suggested assignee or team based on who handled similar incidents

Format your response as JSON with the following structure:
{
    "patterns": ["pattern1", "pattern2"],
    "root_causes": ["cause1", "cause2"],
    "recommendations": ["action1", "action2"],
    "confidence_score": 0.8,
    "suggested_assignee": "team_name",
    "suggested_group": "group_name"
}`, description, b.String())
}
