// Package source reads raw incident batches for ingestion and writes the
// per-record audit artifacts referenced by SourceRef. The engine itself
// never parses spreadsheets; batches arrive as JSON exports.
package source

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/incidenthq/triage/internal/core/model"
)

// ReadBatch reads a JSON file containing an array of raw incidents.
func ReadBatch(path string) ([]model.RawIncident, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading batch file: %w", err)
	}
	var batch []model.RawIncident
	if err := json.Unmarshal(data, &batch); err != nil {
		return nil, fmt.Errorf("parsing batch file %s: %w", path, err)
	}
	return batch, nil
}

// AuditDir writes one JSON file per ingested record into a directory and
// hands the file path back as the record's audit reference.
type AuditDir struct {
	dir string
}

func NewAuditDir(dir string) (*AuditDir, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating audit dir: %w", err)
	}
	return &AuditDir{dir: dir}, nil
}

func (a *AuditDir) WriteAudit(raw model.RawIncident) (string, error) {
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(a.dir, raw.ID+".json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
