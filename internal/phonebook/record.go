// Package phonebook is a small directory built from bound controllers: a
// PhoneBook keeps a list of PhoneRecords and its model mirrors their ids.
package phonebook

import (
	"context"
	"strings"

	"github.com/zimmed/zimmed-core/internal/datamodel"
)

// Transforms used by the phonebook rules. Register them with a catalog
// before decoding persisted phonebook models.
var (
	FirstName = datamodel.Transform{Name: "first_name", Fn: func(v any) any {
		s, _ := v.(string)
		first, _, _ := strings.Cut(strings.TrimSpace(s), " ")
		return first
	}}
	LastName = datamodel.Transform{Name: "last_name", Fn: func(v any) any {
		s, _ := v.(string)
		_, rest, _ := strings.Cut(strings.TrimSpace(s), " ")
		return strings.TrimSpace(rest)
	}}
)

// PhoneRecord is one entry. Its name attribute feeds two fields.
type PhoneRecord struct {
	*datamodel.Base
}

var RecordType = datamodel.MustType("phone_record",
	datamodel.RuleSet{
		"firstname": datamodel.NewRule(datamodel.Attr("name"), datamodel.String, FirstName),
		"lastname":  datamodel.NewRule(datamodel.Attr("name"), datamodel.String, LastName),
		"number":    datamodel.NewRule(datamodel.Attr("number"), datamodel.String, datamodel.Identity),
		"seq":       datamodel.NewRule(datamodel.Attr("seq"), datamodel.Int, datamodel.Identity),
	},
	func(b *datamodel.Base) datamodel.Controller { return &PhoneRecord{b} },
	datamodel.WithDefaults(map[string]any{"name": "", "number": "", "seq": 0}),
	datamodel.WithHydrator(hydrateRecord),
)

// NewRecord creates a record. store may be nil for a detached record.
func NewRecord(ctx context.Context, store datamodel.Store, name, number string, seq int) (*PhoneRecord, error) {
	c, err := RecordType.New(ctx, store, map[string]any{"name": name, "number": number, "seq": seq})
	if err != nil {
		return nil, err
	}
	return c.(*PhoneRecord), nil
}

func (r *PhoneRecord) Name() string   { return attrString(r.Base, "name") }
func (r *PhoneRecord) Number() string { return attrString(r.Base, "number") }

func (r *PhoneRecord) Seq() int {
	v, _ := r.Attr("seq")
	n, _ := v.(int)
	return n
}

func (r *PhoneRecord) SetName(name string) error     { return r.Set("name", name) }
func (r *PhoneRecord) SetNumber(number string) error { return r.Set("number", number) }

// hydrateRecord rebuilds the name from its two derived halves.
func hydrateRecord(_ context.Context, _ datamodel.Store, m *datamodel.Model) (map[string]any, error) {
	first, _ := m.Get("firstname")
	last, _ := m.Get("lastname")
	number, _ := m.Get("number")
	seq, _ := m.Get("seq")
	f, _ := first.(string)
	l, _ := last.(string)
	name := strings.TrimSpace(f + " " + l)
	return map[string]any{"name": name, "number": number, "seq": seq}, nil
}

func attrString(b *datamodel.Base, attr string) string {
	v, _ := b.Attr(attr)
	s, _ := v.(string)
	return s
}
