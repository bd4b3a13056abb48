package model

// IngestReport summarizes one ingestion run. Per-record failures are
// recorded here instead of aborting the batch.
type IngestReport struct {
	RunID                  string            `json:"run_id"`
	TotalCandidates        int               `json:"total_candidates"`
	SkippedExisting        int               `json:"skipped_existing"`
	SkippedDuplicateInBatch int              `json:"skipped_duplicate_in_batch"`
	Inserted               int               `json:"inserted"`
	Failed                 map[string]string `json:"failed,omitempty"` // id -> reason
}
