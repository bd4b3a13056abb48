package source

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/incidenthq/triage/internal/core/model"
)

func TestReadBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id": "INC-1", "short_description": "db timeout", "assignee": "alice", "group": "platform"},
		{"id": "INC-2", "short_description": "login loop", "created_at": "2024-05-01T10:30:00Z"}
	]`), 0o644))

	batch, err := ReadBatch(path)
	require.NoError(t, err)
	require.Len(t, batch, 2)

	assert.Equal(t, "INC-1", batch[0].ID)
	assert.Equal(t, "db timeout", batch[0].ShortDescription)
	assert.Equal(t, "alice", batch[0].Assignee)
	assert.Empty(t, batch[0].CreatedBy)

	require.NotNil(t, batch[1].CreatedAt)
	assert.Equal(t, 2024, batch[1].CreatedAt.Year())
}

func TestReadBatchMissingFile(t *testing.T) {
	_, err := ReadBatch(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestReadBatchMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not": "an array"}`), 0o644))
	_, err := ReadBatch(path)
	assert.Error(t, err)
}

func TestWriteAudit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "audit")
	a, err := NewAuditDir(dir)
	require.NoError(t, err)

	raw := model.RawIncident{ID: "INC-9", ShortDescription: "cert expired", Assignee: "bob"}
	path, err := a.WriteAudit(raw)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "INC-9.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got model.RawIncident
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, raw, got)
}
