package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/incidenthq/triage/internal/core/model"
	"github.com/incidenthq/triage/internal/llm"
	"github.com/incidenthq/triage/internal/store"
)

// DefaultChunkSize bounds how many records go into one InsertBatch call so
// partial progress is observable per chunk.
const DefaultChunkSize = 100

// AuditWriter persists the raw form of an ingested record and returns an
// opaque reference stored alongside it. Optional.
type AuditWriter interface {
	WriteAudit(raw model.RawIncident) (string, error)
}

// Pipeline ingests batches of raw incidents: dedup against the store and
// within the batch, embed new descriptions, write in chunks.
type Pipeline struct {
	store     store.IncidentStore
	embedder  llm.EmbedderClient
	audit     AuditWriter
	chunkSize int
	logger    *zap.Logger
}

func NewPipeline(s store.IncidentStore, embedder llm.EmbedderClient, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		store:     s,
		embedder:  embedder,
		chunkSize: DefaultChunkSize,
		logger:    logger,
	}
}

// WithChunkSize returns a pipeline with the insert chunk size overridden.
// n < 1 keeps the default. The receiver is not modified, so a shared
// pipeline can be specialized per request.
func (p *Pipeline) WithChunkSize(n int) *Pipeline {
	out := *p
	if n >= 1 {
		out.chunkSize = n
	}
	return &out
}

// WithAuditWriter returns a pipeline that writes an audit artifact per
// accepted record and sets its SourceRef to the returned path.
func (p *Pipeline) WithAuditWriter(w AuditWriter) *Pipeline {
	out := *p
	out.audit = w
	return &out
}

// Ingest runs one batch. Individual bad records are reported in the returned
// IngestReport, never escalated; only an unreachable store or embedding
// provider fails the run, and then the report still covers the chunks that
// committed before the failure. Cancellation is honored between chunks;
// chunks already written stay written.
func (p *Pipeline) Ingest(ctx context.Context, candidates []model.RawIncident) (*model.IngestReport, error) {
	report := &model.IngestReport{
		RunID:           uuid.New().String(),
		TotalCandidates: len(candidates),
		Failed:          map[string]string{},
	}
	log := p.logger.With(zap.String("run_id", report.RunID))

	// One key snapshot per batch; per-record Exists calls would multiply
	// store round-trips by the batch size.
	existing, err := p.store.ExistingIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("snapshotting existing keys: %w", err)
	}

	// Partition, dropping repeats of the same new key within this batch
	// (first occurrence wins) since the snapshot cannot see them.
	seen := map[string]struct{}{}
	var accepted []*model.IncidentRecord
	for _, raw := range candidates {
		if raw.ID == "" {
			report.Failed[""] = "missing id"
			continue
		}
		if _, ok := existing[raw.ID]; ok {
			report.SkippedExisting++
			continue
		}
		if _, ok := seen[raw.ID]; ok {
			report.SkippedDuplicateInBatch++
			continue
		}
		seen[raw.ID] = struct{}{}

		rec := raw.Record()
		if p.audit != nil {
			ref, err := p.audit.WriteAudit(raw)
			if err != nil {
				// Audit artifacts are best effort; the record still goes in.
				log.Warn("audit write failed", zap.String("id", raw.ID), zap.Error(err))
			} else {
				rec.SourceRef = ref
			}
		}

		// An empty description is still embedded; the provider decides what
		// the sentinel vector looks like.
		vec, err := p.embedder.Embed(ctx, raw.ShortDescription)
		if err != nil {
			if ctx.Err() != nil {
				return report, ctx.Err()
			}
			report.Failed[raw.ID] = fmt.Sprintf("embedding: %v", err)
			continue
		}
		rec.Embedding = vec
		accepted = append(accepted, rec)
	}

	for start := 0; start < len(accepted); start += p.chunkSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		end := start + p.chunkSize
		if end > len(accepted) {
			end = len(accepted)
		}
		chunk := accepted[start:end]

		res, err := p.store.InsertBatch(ctx, chunk)
		if res != nil {
			report.Inserted += len(res.Inserted)
			for id, cause := range res.Failed {
				if errors.Is(cause, store.ErrDuplicateKey) {
					// A writer won the race between our snapshot and this
					// chunk; for the report that is an existing record.
					report.SkippedExisting++
					continue
				}
				report.Failed[id] = cause.Error()
			}
		}
		if err != nil {
			log.Error("batch aborted", zap.Int("chunk_start", start), zap.Error(err))
			return report, fmt.Errorf("inserting chunk at %d: %w", start, err)
		}
		log.Info("chunk committed",
			zap.Int("chunk_start", start),
			zap.Int("chunk_size", len(chunk)))
	}

	log.Info("ingest finished",
		zap.Int("total", report.TotalCandidates),
		zap.Int("inserted", report.Inserted),
		zap.Int("skipped_existing", report.SkippedExisting),
		zap.Int("skipped_duplicate_in_batch", report.SkippedDuplicateInBatch),
		zap.Int("failed", len(report.Failed)))
	return report, nil
}
