package phonebook

import (
	"context"
	"fmt"
	"reflect"
	"slices"

	"github.com/zimmed/zimmed-core/internal/datamodel"
)

var (
	// RecordID stores a record by its uid.
	RecordID = datamodel.Transform{Name: "record_id", Fn: func(v any) any {
		c, ok := v.(datamodel.Controller)
		if !ok || c == nil {
			return ""
		}
		return c.ID()
	}}
	// Count is the length of a slice, zero for anything else.
	Count = datamodel.Transform{Name: "count", Fn: func(v any) any {
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return 0
		}
		return rv.Len()
	}}
)

// PhoneBook owns an ordered list of records. The "records" field holds
// their ids and is updated incrementally on add and remove.
type PhoneBook struct {
	*datamodel.Base
}

var BookType = datamodel.MustType("phone_book",
	datamodel.RuleSet{
		"records": datamodel.NewRule(datamodel.Attr("records"), datamodel.List(datamodel.String), RecordID),
		"size":    datamodel.NewRule(datamodel.Attr("records"), datamodel.Int, Count),
		"last_id": datamodel.NewRule(datamodel.Attr("last_id"), datamodel.Int, datamodel.Identity),
	},
	func(b *datamodel.Base) datamodel.Controller { return &PhoneBook{b} },
	datamodel.WithDefaults(map[string]any{"records": []*PhoneRecord{}, "last_id": 0}),
	datamodel.WithHydrator(hydrateBook),
)

// Catalog returns a catalog that can decode phonebook models.
func Catalog() *datamodel.Catalog {
	c := datamodel.NewCatalog()
	if err := Register(c); err != nil {
		panic(err)
	}
	return c
}

// Register adds the phonebook transforms to c.
func Register(c *datamodel.Catalog) error {
	return c.Add(FirstName, LastName, RecordID, Count)
}

// NewBook creates an empty book. store may be nil.
func NewBook(ctx context.Context, store datamodel.Store) (*PhoneBook, error) {
	c, err := BookType.New(ctx, store, nil)
	if err != nil {
		return nil, err
	}
	return c.(*PhoneBook), nil
}

// LoadBook returns the book with id from store.
func LoadBook(ctx context.Context, store datamodel.Store, id string) (*PhoneBook, error) {
	c, err := BookType.Load(ctx, store, id)
	if err != nil {
		return nil, err
	}
	book, ok := c.(*PhoneBook)
	if !ok {
		return nil, fmt.Errorf("controller %s is a %T, not a phone book", id, c)
	}
	return book, nil
}

// Records returns the records in order.
func (b *PhoneBook) Records() []*PhoneRecord {
	v, _ := b.Attr("records")
	records, _ := v.([]*PhoneRecord)
	return slices.Clone(records)
}

func (b *PhoneBook) LastID() int {
	v, _ := b.Attr("last_id")
	n, _ := v.(int)
	return n
}

// AddRecord creates a record in the book's store and appends it.
func (b *PhoneBook) AddRecord(ctx context.Context, name, number string) (*PhoneRecord, error) {
	seq := b.LastID() + 1
	record, err := NewRecord(ctx, b.Store(), name, number, seq)
	if err != nil {
		return nil, err
	}
	if err := b.Set("last_id", seq); err != nil {
		return nil, err
	}
	records := append(b.Records(), record)
	if err := b.Mutate("records", records, datamodel.Append(record)); err != nil {
		return nil, err
	}
	return record, nil
}

// RemoveRecord drops the record at index from the book. The record itself
// stays in the store.
func (b *PhoneBook) RemoveRecord(index int) (*PhoneRecord, error) {
	records := b.Records()
	if index < 0 || index >= len(records) {
		return nil, &datamodel.InvalidInstructionError{
			Field:  "records",
			Action: datamodel.ActionRemove,
			Reason: fmt.Sprintf("index %d out of range", index),
		}
	}
	removed := records[index]
	if err := b.Mutate("records", slices.Delete(records, index, index+1), datamodel.RemoveAt(index)); err != nil {
		return nil, err
	}
	return removed, nil
}

// ByNumber returns the first record with number.
func (b *PhoneBook) ByNumber(number string) (*PhoneRecord, bool) {
	for _, r := range b.Records() {
		if r.Number() == number {
			return r, true
		}
	}
	return nil, false
}

// SaveAll persists every record, then the book.
func (b *PhoneBook) SaveAll(ctx context.Context) error {
	for _, r := range b.Records() {
		if err := r.Save(ctx); err != nil {
			return fmt.Errorf("saving record %s: %w", r.ID(), err)
		}
	}
	return b.Save(ctx)
}

// hydrateBook loads the records named by the stored ids.
func hydrateBook(ctx context.Context, store datamodel.Store, m *datamodel.Model) (map[string]any, error) {
	v, _ := m.Get("records")
	ids, _ := v.([]any)
	records := make([]*PhoneRecord, 0, len(ids))
	for _, raw := range ids {
		id, _ := raw.(string)
		c, err := RecordType.Load(ctx, store, id)
		if err != nil {
			return nil, fmt.Errorf("loading record %q: %w", id, err)
		}
		records = append(records, c.(*PhoneRecord))
	}
	lastID, _ := m.Get("last_id")
	return map[string]any{"records": records, "last_id": lastID}, nil
}
