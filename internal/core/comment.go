package core

import (
	"fmt"
	"strings"

	"github.com/incidenthq/triage/internal/core/model"
)

// FormatRecommendation renders the analysis as the markdown comment posted
// verbatim to the issue tracker. Pure formatting over already-computed data.
func FormatRecommendation(description string, matches []model.SimilarityMatch, outcome AnalysisOutcome) string {
	summary := outcome.Summary
	var b strings.Builder

	b.WriteString("**Automated Incident Analysis Report**\n\n")
	fmt.Fprintf(&b, "**Original Description:** %s\n\n", description)
	b.WriteString("**Similar Historical Incidents Found:**\n")

	for _, m := range matches {
		inc := m.Incident
		fmt.Fprintf(&b, "\n• **INC-%s**: %s\n", inc.ID, inc.ShortDescription)
		if inc.CreatedAt != nil {
			fmt.Fprintf(&b, "  - Created: %s\n", inc.CreatedAt.Format("2006-01-02"))
		}
		if inc.UpdatedAt != nil {
			fmt.Fprintf(&b, "  - Updated: %s\n", inc.UpdatedAt.Format("2006-01-02"))
		}
		fmt.Fprintf(&b, "  - Assignee: %s\n", inc.Assignee)
		fmt.Fprintf(&b, "  - Group: %s\n", inc.Group)
		fmt.Fprintf(&b, "  - Similarity: %.2f\n", m.Score)
	}

	b.WriteString("\n**Analysis Summary:**\n")
	for _, p := range summary.Patterns {
		fmt.Fprintf(&b, "• %s\n", p)
	}

	b.WriteString("\n**Root Causes (Identified):**\n")
	if len(summary.RootCauses) == 0 {
		b.WriteString("• No specific root causes identified from historical data\n")
	}
	for _, c := range summary.RootCauses {
		fmt.Fprintf(&b, "• %s\n", c)
	}

	b.WriteString("\n**Recommended Actions:**\n")
	for _, r := range summary.Recommendations {
		fmt.Fprintf(&b, "• %s\n", r)
	}

	b.WriteString("\n**Suggested Assignment:**\n")
	fmt.Fprintf(&b, "• Assignee: %s\n", summary.SuggestedAssignee)
	fmt.Fprintf(&b, "• Group: %s\n", summary.SuggestedGroup)

	fmt.Fprintf(&b, "\n**Analysis Confidence:** %.2f\n", summary.ConfidenceScore)

	b.WriteString("\n---\n")
	b.WriteString("*This analysis was generated automatically using historical incident data and AI-powered pattern recognition.*\n")
	return b.String()
}
