package model

// SimilarityMatch pairs a stored incident with its cosine similarity to a
// query vector. Produced fresh per query, never persisted.
type SimilarityMatch struct {
	Incident *IncidentRecord `json:"incident"`
	Score    float64         `json:"score"` // cosine similarity, [-1, 1]
}

// LabelCount is one row of a ranked frequency table.
type LabelCount struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// PatternSummary is the rule-based aggregation of a set of similarity
// matches. Derived state only; nothing here is persisted.
type PatternSummary struct {
	AssigneeCounts     []LabelCount `json:"assignee_counts"`
	GroupCounts        []LabelCount `json:"group_counts"`
	SuggestedAssignee  string       `json:"suggested_assignee"`
	SuggestedGroup     string       `json:"suggested_group"`
	ConfidenceScore    float64      `json:"confidence_score"` // [0, 1]
	Patterns           []string     `json:"patterns"`
	RootCauses         []string     `json:"root_causes"`
	Recommendations    []string     `json:"recommendations"`
}
