package sqlite

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/zimmed/zimmed-core/internal/datamodel"
)

// ModelRow is a row of the models table. Rules and values are JSON text.
type ModelRow struct {
	Kind      string
	ID        string
	Rules     string
	Values    string
	CreatedAt int64 // Unix timestamp
	UpdatedAt int64 // Unix timestamp
}

// toModelRow encodes doc for storage, stamping both timestamps with now.
// The upsert keeps the original created_at.
func toModelRow(doc *datamodel.Document, now time.Time) (*ModelRow, error) {
	rules, err := json.Marshal(doc.Rules)
	if err != nil {
		return nil, fmt.Errorf("failed to encode rules: %w", err)
	}
	values, err := json.Marshal(doc.Values)
	if err != nil {
		return nil, fmt.Errorf("failed to encode values: %w", err)
	}
	return &ModelRow{
		Kind:      doc.Kind,
		ID:        doc.ID,
		Rules:     string(rules),
		Values:    string(values),
		CreatedAt: now.Unix(),
		UpdatedAt: now.Unix(),
	}, nil
}

// toDocument decodes the row. Numbers stay json.Number until the document
// is turned into a model.
func (r *ModelRow) toDocument() (*datamodel.Document, error) {
	var rules map[string]datamodel.RuleSpec
	if err := json.Unmarshal([]byte(r.Rules), &rules); err != nil {
		return nil, fmt.Errorf("failed to decode rules of %s/%s: %w", r.Kind, r.ID, err)
	}
	values, err := datamodel.DecodeValues([]byte(r.Values))
	if err != nil {
		return nil, fmt.Errorf("failed to decode values of %s/%s: %w", r.Kind, r.ID, err)
	}
	return &datamodel.Document{
		Kind:   r.Kind,
		ID:     r.ID,
		Rules:  rules,
		Values: values,
	}, nil
}
