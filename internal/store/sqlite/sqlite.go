// Package sqlite implements the incident store on a single SQLite file.
// The embedding is persisted as a JSON float array column; the pinned
// embedding dimension lives in a store_meta row so the uniformity invariant
// survives process restarts.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/incidenthq/triage/internal/core/model"
	"github.com/incidenthq/triage/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS incidents (
	id TEXT PRIMARY KEY,
	short_description TEXT NOT NULL,
	created_at TEXT,
	updated_at TEXT,
	assignee TEXT NOT NULL,
	"group" TEXT NOT NULL,
	created_by TEXT NOT NULL,
	updated_by TEXT NOT NULL,
	embedding TEXT NOT NULL,
	source_ref TEXT
);
CREATE TABLE IF NOT EXISTS store_meta (
	k TEXT PRIMARY KEY,
	v TEXT NOT NULL
);
`

const dimensionKey = "embedding_dim"

type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the incident database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// churn under concurrent ingest and query traffic.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: creating schema: %v", store.ErrUnavailable, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.db.Close()
}

func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM incidents WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return true, nil
}

func (s *Store) Dimension(ctx context.Context) (int, error) {
	return s.dimension(ctx, s.db)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) dimension(ctx context.Context, q querier) (int, error) {
	var v string
	err := q.QueryRowContext(ctx, `SELECT v FROM store_meta WHERE k = ?`, dimensionKey).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	dim, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("corrupt %s meta value %q: %w", dimensionKey, v, err)
	}
	return dim, nil
}

func (s *Store) Insert(ctx context.Context, rec *model.IncidentRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	defer tx.Rollback()

	if err := s.insertTx(ctx, tx, rec); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return nil
}

// insertTx performs the dimension check and insert inside one transaction so
// exists-then-insert is atomic per key.
func (s *Store) insertTx(ctx context.Context, tx *sql.Tx, rec *model.IncidentRecord) error {
	dim, err := s.dimension(ctx, tx)
	if err != nil {
		return err
	}
	// A zero-length embedding is the documented sentinel for records the
	// provider could not vectorize; everything else must match the pinned
	// dimension.
	if dim > 0 && len(rec.Embedding) > 0 && len(rec.Embedding) != dim {
		return fmt.Errorf("%w: record %s has %d dims, store has %d",
			store.ErrDimensionMismatch, rec.ID, len(rec.Embedding), dim)
	}

	emb, err := json.Marshal(rec.Embedding)
	if err != nil {
		return fmt.Errorf("encoding embedding for %s: %w", rec.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO incidents
			(id, short_description, created_at, updated_at, assignee, "group", created_by, updated_by, embedding, source_ref)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID,
		rec.ShortDescription,
		nullTime(rec.CreatedAt),
		nullTime(rec.UpdatedAt),
		rec.Assignee,
		rec.Group,
		rec.CreatedBy,
		rec.UpdatedBy,
		string(emb),
		rec.SourceRef,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("%w: %s", store.ErrDuplicateKey, rec.ID)
		}
		return fmt.Errorf("%w: inserting %s: %v", store.ErrUnavailable, rec.ID, err)
	}

	if dim == 0 && len(rec.Embedding) > 0 {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO store_meta (k, v) VALUES (?, ?)
			 ON CONFLICT(k) DO UPDATE SET v = excluded.v`,
			dimensionKey, strconv.Itoa(len(rec.Embedding)))
		if err != nil {
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
		case isFatal(err):
			return res, err
		default:
			res.Failed[rec.ID] = err
		}
	}
	return res, nil
}

// isFatal distinguishes store-unavailability (abort the batch) from
// per-record rejections (record and continue).
func isFatal(err error) bool {
	return errors.Is(err, store.ErrUnavailable)
}

func (s *Store) ExistingIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM incidents`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	defer rows.Close()

	ids := map[string]struct{}{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return ids, nil
}

func (s *Store) ScanAll(ctx context.Context) (store.Cursor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, short_description, created_at, updated_at, assignee, "group", created_by, updated_by, embedding, source_ref
		FROM incidents ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnavailable, err)
	}
	return &cursor{rows: rows}, nil
}

type cursor struct {
	rows *sql.Rows
	rec  *model.IncidentRecord
	err  error
}

func (c *cursor) Next() bool {
	if c.err != nil || !c.rows.Next() {
		return false
	}
	var (
		rec                  model.IncidentRecord
		createdAt, updatedAt sql.NullString
		sourceRef            sql.NullString
		emb                  string
	)
	c.err = c.rows.Scan(
		&rec.ID, &rec.ShortDescription, &createdAt, &updatedAt,
		&rec.Assignee, &rec.Group, &rec.CreatedBy, &rec.UpdatedBy,
		&emb, &sourceRef,
	)
	if c.err != nil {
		return false
	}
	if c.err = json.Unmarshal([]byte(emb), &rec.Embedding); c.err != nil {
		c.err = fmt.Errorf("decoding embedding for %s: %w", rec.ID, c.err)
		return false
	}
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	rec.SourceRef = sourceRef.String
	c.rec = &rec
	return true
}

func (c *cursor) Record() *model.IncidentRecord { return c.rec }

func (c *cursor) Err() error {
	if c.err != nil {
		return c.err
	}
	return c.rows.Err()
}

func (c *cursor) Close() error { return c.rows.Close() }

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}
