// Package memgraph implements the incident store on Memgraph (or Neo4j) via
// the Bolt protocol, for deployments that already run a graph database.
// Incidents are plain (:Incident) nodes; the pinned embedding dimension
// lives on a singleton (:TriageMeta) node.
package memgraph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/incidenthq/triage/internal/core/model"
	"github.com/incidenthq/triage/internal/store"
)

const (
	insertQuery = `
		CREATE (i:Incident {
			id: $id,
			short_description: $short_description,
			created_at: $created_at,
			updated_at: $updated_at,
			assignee: $assignee,
			grp: $grp,
			created_by: $created_by,
			updated_by: $updated_by,
			embedding: $embedding,
			source_ref: $source_ref
		})
		RETURN i.id AS id`

	scanQuery = `
		MATCH (i:Incident)
		RETURN i.id AS id, i.short_description AS short_description,
		       i.created_at AS created_at, i.updated_at AS updated_at,
		       i.assignee AS assignee, i.grp AS grp,
		       i.created_by AS created_by, i.updated_by AS updated_by,
		       i.embedding AS embedding, i.source_ref AS source_ref
		ORDER BY i.id`

	dimensionQuery = `
		OPTIONAL MATCH (m:TriageMeta {id: "singleton"})
		RETURN coalesce(m.embedding_dim, 0) AS dim`

	pinDimensionQuery = `
		MERGE (m:TriageMeta {id: "singleton"})
		ON CREATE SET m.embedding_dim = $dim
		RETURN m.embedding_dim AS dim`
)

type Store struct {
	driver neo4j.DriverWithContext
}

func Open(ctx context.Context, uri, username, password string) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}

	s := &Store{driver: driver}
	// Uniqueness on id backstops the pre-insert existence check when two
	// writers race. Memgraph accepts the Neo4j constraint syntax.
	_, err = s.run(ctx, `CREATE CONSTRAINT ON (i:Incident) ASSERT i.id IS UNIQUE`, nil)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		// Index creation is best effort: the constraint may already exist
		// with different casing of the error message across versions.
		_, _ = s.run(ctx, `CREATE INDEX ON :Incident(id)`, nil)
	}
	return s, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Store) run(ctx context.Context, query string, params map[string]any) (*neo4j.EagerResult, error) {
	result, err := neo4j.ExecuteQuery(ctx, s.driver, query, params, neo4j.EagerResultTransformer)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	res, err := s.run(ctx, `MATCH (i:Incident {id: $id}) RETURN i.id LIMIT 1`,
		map[string]any{"id": id})
	if err != nil {
		return false, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return len(res.Records) > 0, nil
}

func (s *Store) Dimension(ctx context.Context) (int, error) {
	res, err := s.run(ctx, dimensionQuery, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	if len(res.Records) == 0 {
		return 0, nil
	}
	dim, _ := res.Records[0].Get("dim")
	n, ok := dim.(int64)
	if !ok {
		return 0, nil
	}
	return int(n), nil
}

func (s *Store) Insert(ctx context.Context, rec *model.IncidentRecord) error {
	exists, err := s.Exists(ctx, rec.ID)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s", store.ErrDuplicateKey, rec.ID)
	}

	dim, err := s.Dimension(ctx)
	if err != nil {
		return err
	}
	if dim > 0 && len(rec.Embedding) > 0 && len(rec.Embedding) != dim {
		return fmt.Errorf("%w: record %s has %d dims, store has %d",
			store.ErrDimensionMismatch, rec.ID, len(rec.Embedding), dim)
	}

	_, err = s.run(ctx, insertQuery, map[string]any{
		"id":                rec.ID,
		"short_description": rec.ShortDescription,
		"created_at":        timeParam(rec.CreatedAt),
		"updated_at":        timeParam(rec.UpdatedAt),
		"assignee":          rec.Assignee,
		"grp":               rec.Group,
		"created_by":        rec.CreatedBy,
		"updated_by":        rec.UpdatedBy,
		"embedding":         toFloat64s(rec.Embedding),
		"source_ref":        rec.SourceRef,
	})
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") ||
			strings.Contains(strings.ToLower(err.Error()), "constraint") {
			return fmt.Errorf("%w: %s", store.ErrDuplicateKey, rec.ID)
		}
		return fmt.Errorf("%w: inserting %s: %v", store.ErrUnavailable, rec.ID, err)
	}

	if dim == 0 && len(rec.Embedding) > 0 {
		if _, err := s.run(ctx, pinDimensionQuery, map[string]any{"dim": len(rec.Embedding)}); err != nil {
			return fmt.Errorf("%w: pinning dimension: %v", store.ErrUnavailable, err)
		}
	}
	return nil
}

func (s *Store) InsertBatch(ctx context.Context, recs []*model.IncidentRecord) (*store.BatchResult, error) {
	res := &store.BatchResult{Failed: map[string]error{}}
	for _, rec := range recs {
		err := s.Insert(ctx, rec)
		switch {
		case err == nil:
			res.Inserted = append(res.Inserted, rec.ID)
		case errorsIsUnavailable(err):
			return res, err
		default:
			res.Failed[rec.ID] = err
		}
	}
	return res, nil
}

func (s *Store) ExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	res, err := s.run(ctx, `MATCH (i:Incident) RETURN i.id AS id`, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	ids := map[string]struct{}{}
	for _, rec := range res.Records {
		if id, ok := recordString(rec, "id"); ok {
			ids[id] = struct{}{}
		}
	}
	return ids, nil
}

func (s *Store) ScanAll(ctx context.Context) (store.Cursor, error) {
	res, err := s.run(ctx, scanQuery, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return &cursor{records: res.Records, pos: -1}, nil
}

// cursor walks the eagerly fetched result set; the Bolt driver materializes
// the whole query result, which is the snapshot semantics the contract asks
// for anyway.
type cursor struct {
	records []*neo4j.Record
	pos     int
	rec     *model.IncidentRecord
}

func (c *cursor) Next() bool {
	c.pos++
	if c.pos >= len(c.records) {
		return false
	}
	c.rec = decodeRecord(c.records[c.pos])
	return true
}

func (c *cursor) Record() *model.IncidentRecord { return c.rec }
func (c *cursor) Err() error                    { return nil }
func (c *cursor) Close() error                  { return nil }

func decodeRecord(rec *neo4j.Record) *model.IncidentRecord {
	out := &model.IncidentRecord{}
	out.ID, _ = recordString(rec, "id")
	out.ShortDescription, _ = recordString(rec, "short_description")
	out.Assignee, _ = recordString(rec, "assignee")
	out.Group, _ = recordString(rec, "grp")
	out.CreatedBy, _ = recordString(rec, "created_by")
	out.UpdatedBy, _ = recordString(rec, "updated_by")
	out.SourceRef, _ = recordString(rec, "source_ref")
	out.CreatedAt = recordTime(rec, "created_at")
	out.UpdatedAt = recordTime(rec, "updated_at")

	if v, ok := rec.Get("embedding"); ok {
		if list, ok := v.([]any); ok {
			emb := make([]float32, 0, len(list))
			for _, item := range list {
				if f, ok := item.(float64); ok {
					emb = append(emb, float32(f))
				}
			}
			out.Embedding = emb
		}
	}
	return out
}

func recordString(rec *neo4j.Record, key string) (string, bool) {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func recordTime(rec *neo4j.Record, key string) *time.Time {
	s, ok := recordString(rec, key)
	if !ok || s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}

func timeParam(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func toFloat64s(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func errorsIsUnavailable(err error) bool {
	return errors.Is(err, store.ErrUnavailable)
}
