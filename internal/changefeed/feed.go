// Package changefeed publishes controller field changes to a broker and
// persists them in the background.
package changefeed

import (
	"github.com/zimmed/zimmed-core/internal/datamodel"
	"github.com/zimmed/zimmed-core/internal/log"
	"github.com/zimmed/zimmed-core/internal/pubsub"
)

// Change describes one field dispatch of a controller.
type Change struct {
	Kind        string
	ID          string
	Field       string
	Instruction *datamodel.Instruction
	// Document is a snapshot of the model taken on the controller's
	// goroutine. It is nil when the model cannot be encoded, e.g. because a
	// rule uses an inline transform.
	Document *datamodel.Document
}

// Values returns the snapshot values, or nil without a snapshot.
func (c Change) Values() map[string]any {
	if c.Document == nil {
		return nil
	}
	return c.Document.Values
}

// Attach registers a wildcard listener on ctrl that publishes every field
// dispatch as an UpdatedEvent. Fields added to the controller's type later
// are not covered.
func Attach(ctrl datamodel.Controller, pub pubsub.Publisher[Change]) error {
	kind := ctrl.Kind()
	return datamodel.BaseOf(ctrl).OnChange(datamodel.Wildcard, func(m *datamodel.Model, field string, instr *datamodel.Instruction, _ ...any) {
		doc, err := datamodel.NewDocument(kind, m)
		if err != nil {
			log.Debug(log.CatFeed, "change without snapshot", "kind", kind, "field", field, "error", err.Error())
			doc = nil
		}
		pub.Publish(pubsub.UpdatedEvent, Change{
			Kind:        kind,
			ID:          datamodel.ModelID(m),
			Field:       field,
			Instruction: instr,
			Document:    doc,
		})
	})
}
