package llm

import (
	"context"
)

// LLMClient generates free text from a prompt. Used for the optional
// enrichment pass over a triage analysis.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// EmbedderClient maps text to a fixed-length vector. A failure is always an
// explicit error, never a silently wrong vector.
type EmbedderClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
