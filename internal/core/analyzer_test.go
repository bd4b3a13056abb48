package core

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/incidenthq/triage/internal/core/model"
)

func match(id, assignee, group string, score float64) model.SimilarityMatch {
	return model.SimilarityMatch{
		Incident: &model.IncidentRecord{
			ID:               id,
			ShortDescription: "incident " + id,
			Assignee:         assignee,
			Group:            group,
			CreatedBy:        model.UnknownLabel,
			UpdatedBy:        model.UnknownLabel,
		},
		Score: score,
	}
}

func TestAnalyzeEmptyInput(t *testing.T) {
	summary := Analyze(nil, 3)

	assert.Equal(t, model.UnknownLabel, summary.SuggestedAssignee)
	assert.Equal(t, model.UnknownLabel, summary.SuggestedGroup)
	assert.Equal(t, 0.0, summary.ConfidenceScore)
	assert.Empty(t, summary.Patterns)
	assert.Empty(t, summary.Recommendations)
}

func TestAnalyzeMajorityVote(t *testing.T) {
	matches := []model.SimilarityMatch{
		match("1", "jack", "app-dev", 0.9),
		match("2", "xyz", "app-dev", 0.8),
		match("3", "jack", "platform", 0.7),
	}
	summary := Analyze(matches, 3)

	assert.Equal(t, "jack", summary.SuggestedAssignee)
	assert.Equal(t, "app-dev", summary.SuggestedGroup)
	assert.Contains(t, summary.Patterns, "Most incidents handled by: jack")
	assert.Contains(t, summary.Patterns, "Total similar incidents found: 3")
}

func TestAnalyzeTieBreakPrefersMoreSimilar(t *testing.T) {
	// Counts tie 1-1; the label on the more similar incident must win.
	matches := []model.SimilarityMatch{
		match("1", "ana", "platform", 0.95),
		match("2", "bob", "app-dev", 0.60),
	}
	summary := Analyze(matches, 3)

	assert.Equal(t, "ana", summary.SuggestedAssignee)
	assert.Equal(t, "platform", summary.SuggestedGroup)
}

func TestAnalyzeConfidence(t *testing.T) {
	// Below the minimum: fixed floor regardless of count.
	for n := 1; n < 3; n++ {
		var matches []model.SimilarityMatch
		for i := 0; i < n; i++ {
			matches = append(matches, match(fmt.Sprint(i), "jack", "app-dev", 0.9))
		}
		summary := Analyze(matches, 3)
		assert.Equal(t, 0.3, summary.ConfidenceScore, "n=%d", n)
		assert.Contains(t, summary.Recommendations, "Limited historical data available")
	}

	// At or above the minimum: 0.15 per match, capped at 0.8.
	cases := map[int]float64{3: 0.45, 4: 0.6, 5: 0.75, 6: 0.8, 10: 0.8}
	for n, want := range cases {
		var matches []model.SimilarityMatch
		for i := 0; i < n; i++ {
			matches = append(matches, match(fmt.Sprint(i), "jack", "app-dev", 0.9))
		}
		summary := Analyze(matches, 3)
		assert.InDelta(t, want, summary.ConfidenceScore, 1e-9, "n=%d", n)
	}
}

func TestAnalyzeRankedCounts(t *testing.T) {
	matches := []model.SimilarityMatch{
		match("1", "jack", "app-dev", 0.9),
		match("2", "jack", "app-dev", 0.8),
		match("3", "xyz", "platform", 0.7),
	}
	summary := Analyze(matches, 3)

	require.Len(t, summary.AssigneeCounts, 2)
	assert.Equal(t, model.LabelCount{Label: "jack", Count: 2}, summary.AssigneeCounts[0])
	assert.Equal(t, model.LabelCount{Label: "xyz", Count: 1}, summary.AssigneeCounts[1])
}

func enrichmentJSON() string {
	return `{
		"patterns": ["scraper UI failures cluster on deploy days"],
		"root_causes": ["stale frontend cache"],
		"recommendations": ["purge CDN cache", "assign to jack"],
		"confidence_score": 0.85,
		"suggested_assignee": "jack",
		"suggested_group": "app-dev"
	}`
}

func TestAnalyzerEnrichedPath(t *testing.T) {
	llm := &mockLLM{ResponseQueue: []string{enrichmentJSON()}}
	a := NewAnalyzer(llm, 3, nil)

	matches := []model.SimilarityMatch{
		match("1", "xyz", "platform", 0.9),
		match("2", "xyz", "platform", 0.8),
		match("3", "xyz", "platform", 0.7),
	}
	outcome := a.Analyze(context.Background(), "UI is not loading", matches)

	assert.Equal(t, SourceEnriched, outcome.Source)
	assert.Empty(t, outcome.FallbackReason)
	assert.Equal(t, "jack", outcome.Summary.SuggestedAssignee)
	assert.Equal(t, 0.85, outcome.Summary.ConfidenceScore)
	assert.Equal(t, []string{"stale frontend cache"}, outcome.Summary.RootCauses)
	// The local frequency tables are kept alongside the enriched text.
	assert.Equal(t, "xyz", outcome.Summary.AssigneeCounts[0].Label)
}

func TestAnalyzerFallbackOnGenerationError(t *testing.T) {
	llm := &mockLLM{Err: fmt.Errorf("model overloaded")}
	a := NewAnalyzer(llm, 3, nil)

	matches := []model.SimilarityMatch{match("1", "jack", "app-dev", 0.9)}
	outcome := a.Analyze(context.Background(), "desc", matches)

	assert.Equal(t, SourceFallback, outcome.Source)
	assert.Contains(t, outcome.FallbackReason, "model overloaded")
	assert.Equal(t, "jack", outcome.Summary.SuggestedAssignee)
}

func TestAnalyzerFallbackOnMalformedJSON(t *testing.T) {
	llm := &mockLLM{ResponseQueue: []string{"I cannot answer that in JSON, sorry."}}
	a := NewAnalyzer(llm, 3, nil)

	outcome := a.Analyze(context.Background(), "desc",
		[]model.SimilarityMatch{match("1", "jack", "app-dev", 0.9)})

	assert.Equal(t, SourceFallback, outcome.Source)
	assert.Contains(t, outcome.FallbackReason, "malformed enrichment response")
	assert.Equal(t, 0.3, outcome.Summary.ConfidenceScore)
}

func TestAnalyzerFallbackOnInvalidSchema(t *testing.T) {
	// Parses fine but fails validation: confidence out of range.
	llm := &mockLLM{ResponseQueue: []string{`{
		"patterns": [], "root_causes": [], "recommendations": ["x"],
		"confidence_score": 3.0, "suggested_assignee": "a", "suggested_group": "b"
	}`}}
	a := NewAnalyzer(llm, 3, nil)

	outcome := a.Analyze(context.Background(), "desc",
		[]model.SimilarityMatch{match("1", "jack", "app-dev", 0.9)})

	assert.Equal(t, SourceFallback, outcome.Source)
	assert.Contains(t, outcome.FallbackReason, "malformed enrichment response")
}

func TestAnalyzerNoLLMDisablesEnrichment(t *testing.T) {
	a := NewAnalyzer(nil, 3, nil)
	outcome := a.Analyze(context.Background(), "desc",
		[]model.SimilarityMatch{match("1", "jack", "app-dev", 0.9)})

	assert.Equal(t, SourceFallback, outcome.Source)
	assert.Empty(t, outcome.FallbackReason)
}
