package core

import (
	"fmt"
	"sort"

	"github.com/incidenthq/triage/internal/core/model"
)

// Confidence constants from the rule-based analysis: each matched neighbor
// adds 0.15 up to a cap of 0.8; below the minimum match count the fixed
// floor signals "insufficient history" instead of omitting the field.
const (
	confidencePerMatch = 0.15
	confidenceCap      = 0.8
	confidenceFloor    = 0.3
)

// Analyze aggregates retrieved neighbors into a rule-based pattern summary.
// Aggregation is a majority vote by raw count, not weighted by similarity
// score; matches arrive similarity-descending, and that order breaks count
// ties in favor of the label on the more similar incident.
func Analyze(matches []model.SimilarityMatch, minForConfidentAnalysis int) model.PatternSummary {
	summary := model.PatternSummary{
		SuggestedAssignee: model.UnknownLabel,
		SuggestedGroup:    model.UnknownLabel,
		Patterns:          []string{},
		RootCauses:        []string{},
		Recommendations:   []string{},
	}
	if len(matches) == 0 {
		return summary
	}

	assignees := newFrequencyTable()
	groups := newFrequencyTable()
	for _, m := range matches {
		assignees.add(m.Incident.Assignee)
		groups.add(m.Incident.Group)
	}

	summary.AssigneeCounts = assignees.ranked()
	summary.GroupCounts = groups.ranked()
	summary.SuggestedAssignee = summary.AssigneeCounts[0].Label
	summary.SuggestedGroup = summary.GroupCounts[0].Label

	summary.Patterns = []string{
		fmt.Sprintf("Most incidents handled by: %s", summary.SuggestedAssignee),
		fmt.Sprintf("Most incidents in group: %s", summary.SuggestedGroup),
		fmt.Sprintf("Total similar incidents found: %d", len(matches)),
	}

	if len(matches) >= minForConfidentAnalysis {
		summary.Recommendations = []string{
			fmt.Sprintf("Assign to %s as they have handled similar incidents", summary.SuggestedAssignee),
			fmt.Sprintf("Consider involving %s team", summary.SuggestedGroup),
			"Review past solutions from similar incidents",
			"Check for common root causes in historical data",
		}
		summary.ConfidenceScore = float64(len(matches)) * confidencePerMatch
		if summary.ConfidenceScore > confidenceCap {
			summary.ConfidenceScore = confidenceCap
		}
	} else {
		summary.Recommendations = []string{
			"Limited historical data available",
			"Consider broader search criteria",
			"Manual review recommended",
		}
		summary.ConfidenceScore = confidenceFloor
	}

	return summary
}

// frequencyTable counts labels while remembering first-seen order, which is
// the tie-break for "most common".
type frequencyTable struct {
	counts map[string]int
	order  map[string]int
	next   int
}

func newFrequencyTable() *frequencyTable {
	return &frequencyTable{counts: map[string]int{}, order: map[string]int{}}
}

func (t *frequencyTable) add(label string) {
	if label == "" {
		label = model.UnknownLabel
	}
	if _, ok := t.counts[label]; !ok {
		t.order[label] = t.next
		t.next++
	}
	t.counts[label]++
}

func (t *frequencyTable) ranked() []model.LabelCount {
	out := make([]model.LabelCount, 0, len(t.counts))
	for label, count := range t.counts {
		out = append(out, model.LabelCount{Label: label, Count: count})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return t.order[out[i].Label] < t.order[out[j].Label]
	})
	return out
}
