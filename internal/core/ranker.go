package core

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/incidenthq/triage/internal/core/model"
	"github.com/incidenthq/triage/internal/store"
)

// ErrInvalidQueryParameter is returned for out-of-range query parameters.
// Parameters are never silently clamped.
var ErrInvalidQueryParameter = errors.New("invalid query parameter")

// Ranker answers nearest-neighbor queries with an exact brute-force scan
// over the whole corpus: O(n·d) per query, no index, no caching between
// queries. That ceiling is deliberate; the corpus is expected to stay in the
// low tens of thousands of records, where a scan is cheaper to own than an
// approximate index.
type Ranker struct {
	store store.IncidentStore
}

func NewRanker(s store.IncidentStore) *Ranker {
	return &Ranker{store: s}
}

// Query returns up to limit stored incidents whose cosine similarity to
// vector is at least threshold, ordered by score descending with ties broken
// by id ascending so identical inputs always produce identical output.
func (r *Ranker) Query(ctx context.Context, vector []float32, threshold float64, limit int) ([]model.SimilarityMatch, error) {
	if threshold < -1 || threshold > 1 {
		return nil, fmt.Errorf("%w: threshold %v outside [-1,1]", ErrInvalidQueryParameter, threshold)
	}
	if limit < 1 {
		return nil, fmt.Errorf("%w: limit %d < 1", ErrInvalidQueryParameter, limit)
	}

	dim, err := r.store.Dimension(ctx)
	if err != nil {
		return nil, err
	}
	if dim > 0 && len(vector) != dim {
		return nil, fmt.Errorf("%w: query has %d dims, store has %d", store.ErrDimensionMismatch, len(vector), dim)
	}

	cur, err := r.store.ScanAll(ctx)
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	queryNorm := norm(vector)

	var matches []model.SimilarityMatch
	for cur.Next() {
		rec := cur.Record()
		score := cosine(vector, queryNorm, rec.Embedding)
		if score >= threshold {
			matches = append(matches, model.SimilarityMatch{Incident: rec, Score: score})
		}
	}
	if err := cur.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Incident.ID < matches[j].Incident.ID
	})

	// Truncate only after the full sort so a low-similarity record can never
	// displace a higher one just to fit the page.
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// cosine computes dot(q, v) / (||q|| * ||v||), treating any zero-magnitude
// vector as similarity 0 rather than dividing by zero.
func cosine(q []float32, qNorm float64, v []float32) float64 {
	if qNorm == 0 || len(q) != len(v) {
		return 0
	}
	var dot, vSq float64
	for i := range q {
		dot += float64(q[i]) * float64(v[i])
		vSq += float64(v[i]) * float64(v[i])
	}
	if vSq == 0 {
		return 0
	}
	return dot / (qNorm * math.Sqrt(vSq))
}

func norm(v []float32) float64 {
	var sq float64
	for _, x := range v {
		sq += float64(x) * float64(x)
	}
	return math.Sqrt(sq)
}
