package core

import (
	"context"
	"fmt"
	"sort"

	"github.com/incidenthq/triage/internal/core/model"
	"github.com/incidenthq/triage/internal/store"
)

// memStore is an in-memory IncidentStore for engine tests.
type memStore struct {
	records   map[string]*model.IncidentRecord
	dim       int
	failAll   bool // simulate an unreachable store
	insertLog []string
}

func newMemStore() *memStore {
	return &memStore{records: map[string]*model.IncidentRecord{}}
}

func (m *memStore) Exists(ctx context.Context, id string) (bool, error) {
	if m.failAll {
		return false, store.ErrUnavailable
	}
	_, ok := m.records[id]
	return ok, nil
}

func (m *memStore) Insert(ctx context.Context, rec *model.IncidentRecord) error {
	if m.failAll {
		return store.ErrUnavailable
	}
	if _, ok := m.records[rec.ID]; ok {
		return fmt.Errorf("%w: %s", store.ErrDuplicateKey, rec.ID)
	}
	if m.dim > 0 && len(rec.Embedding) > 0 && len(rec.Embedding) != m.dim {
		return fmt.Errorf("%w: record %s", store.ErrDimensionMismatch, rec.ID)
	}
	if m.dim == 0 && len(rec.Embedding) > 0 {
		m.dim = len(rec.Embedding)
	}
	m.records[rec.ID] = rec
	m.insertLog = append(m.insertLog, rec.ID)
	return nil
}

func (m *memStore) InsertBatch(ctx context.Context, recs []*model.IncidentRecord) (*store.BatchResult, error) {
	res := &store.BatchResult{Failed: map[string]error{}}
	for _, rec := range recs {
		err := m.Insert(ctx, rec)
		switch {
		case err == nil:
			res.Inserted = append(res.Inserted, rec.ID)
		case err == store.ErrUnavailable:
			return res, err
		default:
			res.Failed[rec.ID] = err
		}
	}
	return res, nil
}

func (m *memStore) ExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	if m.failAll {
		return nil, store.ErrUnavailable
	}
	ids := map[string]struct{}{}
	for id := range m.records {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (m *memStore) ScanAll(ctx context.Context) (store.Cursor, error) {
	if m.failAll {
		return nil, store.ErrUnavailable
	}
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	recs := make([]*model.IncidentRecord, 0, len(ids))
	for _, id := range ids {
		recs = append(recs, m.records[id])
	}
	return &memCursor{recs: recs, pos: -1}, nil
}

func (m *memStore) Dimension(ctx context.Context) (int, error) {
	if m.failAll {
		return 0, store.ErrUnavailable
	}
	return m.dim, nil
}

func (m *memStore) Close(ctx context.Context) error { return nil }

type memCursor struct {
	recs []*model.IncidentRecord
	pos  int
}

func (c *memCursor) Next() bool {
	c.pos++
	return c.pos < len(c.recs)
}
func (c *memCursor) Record() *model.IncidentRecord { return c.recs[c.pos] }
func (c *memCursor) Err() error                    { return nil }
func (c *memCursor) Close() error                  { return nil }

// mockEmbedder returns a fixed vector per input text, or an error for texts
// listed in FailFor.
type mockEmbedder struct {
	Vectors  map[string][]float32
	Default  []float32
	FailFor  map[string]bool
	Requests []string
}

func (e *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.Requests = append(e.Requests, text)
	if e.FailFor[text] {
		return nil, fmt.Errorf("embedding provider unavailable")
	}
	if v, ok := e.Vectors[text]; ok {
		return v, nil
	}
	return e.Default, nil
}

// mockLLM replays queued responses, then its Response, then an error.
type mockLLM struct {
	ResponseQueue []string
	Response      string
	Err           error
	Prompts       []string
}

func (m *mockLLM) Generate(ctx context.Context, prompt string) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.ResponseQueue) > 0 {
		resp := m.ResponseQueue[0]
		m.ResponseQueue = m.ResponseQueue[1:]
		return resp, nil
	}
	if m.Response != "" {
		return m.Response, nil
	}
	return "", fmt.Errorf("no queued response")
}

// mockTracker is an in-memory issue tracker.
type mockTracker struct {
	Descriptions map[string]string
	Comments     map[string][]string
	FailComment  bool
}

func newMockTracker() *mockTracker {
	return &mockTracker{Descriptions: map[string]string{}, Comments: map[string][]string{}}
}

func (t *mockTracker) Description(ctx context.Context, key string) (string, error) {
	desc, ok := t.Descriptions[key]
	if !ok {
		return "", fmt.Errorf("issue %s not found", key)
	}
	return desc, nil
}

func (t *mockTracker) AddComment(ctx context.Context, key, body string) error {
	if t.FailComment {
		return fmt.Errorf("comment rejected")
	}
	t.Comments[key] = append(t.Comments[key], body)
	return nil
}
