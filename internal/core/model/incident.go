package model

import "time"

// UnknownLabel is substituted for missing assignee/group/creator fields so
// aggregation never has to deal with empty labels.
const UnknownLabel = "Unknown"

// IncidentRecord is one historical ticket as persisted in the store.
// Records are append-only: created once during ingestion, never updated.
type IncidentRecord struct {
	ID               string     `json:"id"`
	ShortDescription string     `json:"short_description"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
	Assignee         string     `json:"assignee"`
	Group            string     `json:"group"`
	CreatedBy        string     `json:"created_by"`
	UpdatedBy        string     `json:"updated_by"`
	Embedding        []float32  `json:"embedding,omitempty"`
	// SourceRef points at the raw record this row was built from (an audit
	// artifact path). Never used in computation.
	SourceRef string `json:"source_ref,omitempty"`
}

// RawIncident is an incident as delivered by the ingestion source, before
// an embedding has been generated for it.
type RawIncident struct {
	ID               string     `json:"id"`
	ShortDescription string     `json:"short_description"`
	CreatedAt        *time.Time `json:"created_at,omitempty"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
	Assignee         string     `json:"assignee"`
	Group            string     `json:"group"`
	CreatedBy        string     `json:"created_by"`
	UpdatedBy        string     `json:"updated_by"`
}

// Record converts a raw incident into a store record, substituting the
// Unknown sentinel for absent labels.
func (r RawIncident) Record() *IncidentRecord {
	return &IncidentRecord{
		ID:               r.ID,
		ShortDescription: r.ShortDescription,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
		Assignee:         orUnknown(r.Assignee),
		Group:            orUnknown(r.Group),
		CreatedBy:        orUnknown(r.CreatedBy),
		UpdatedBy:        orUnknown(r.UpdatedBy),
	}
}

func orUnknown(s string) string {
	if s == "" {
		return UnknownLabel
	}
	return s
}
