package model

import "fmt"

// EnrichmentResult is the structured object an external text-generation
// collaborator returns for a triage analysis. The JSON field names match the
// contract the prompt asks the model for.
type EnrichmentResult struct {
	Patterns          []string `json:"patterns"`
	RootCauses        []string `json:"root_causes"`
	Recommendations   []string `json:"recommendations"`
	ConfidenceScore   float64  `json:"confidence_score"`
	SuggestedAssignee string   `json:"suggested_assignee"`
	SuggestedGroup    string   `json:"suggested_group"`
}

// Validate checks that an enrichment response is well-formed enough to be
// trusted over the local rule-based summary.
func (e *EnrichmentResult) Validate() error {
	if e.ConfidenceScore < 0 || e.ConfidenceScore > 1 {
		return fmt.Errorf("confidence_score %v outside [0,1]", e.ConfidenceScore)
	}
	if e.SuggestedAssignee == "" {
		return fmt.Errorf("missing suggested_assignee")
	}
	if e.SuggestedGroup == "" {
		return fmt.Errorf("missing suggested_group")
	}
	if len(e.Recommendations) == 0 {
		return fmt.Errorf("no recommendations")
	}
	return nil
}
