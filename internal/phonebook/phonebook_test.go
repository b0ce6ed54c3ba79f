package phonebook_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zimmed/zimmed-core/internal/cachemanager"
	"github.com/zimmed/zimmed-core/internal/datamodel"
	"github.com/zimmed/zimmed-core/internal/phonebook"
	"github.com/zimmed/zimmed-core/internal/store"
)

func newStore() *store.Store {
	return store.New(store.NewMemoryRepository(), store.Options{Catalog: phonebook.Catalog()})
}

func field(t *testing.T, c datamodel.Controller, name string) any {
	t.Helper()
	v, ok := c.Model().Get(name)
	require.True(t, ok, "field %s", name)
	return v
}

func TestRecord_SplitsName(t *testing.T) {
	r, err := phonebook.NewRecord(context.Background(), nil, "Gene Belcher", "555-1234", 1)
	require.NoError(t, err)

	require.Equal(t, "Gene", field(t, r, "firstname"))
	require.Equal(t, "Belcher", field(t, r, "lastname"))
	require.Equal(t, "555-1234", field(t, r, "number"))
	require.Equal(t, 1, field(t, r, "seq"))

	require.NoError(t, r.SetName("Gene The Magic Man Belcher"))
	require.Equal(t, "Gene", field(t, r, "firstname"))
	require.Equal(t, "The Magic Man Belcher", field(t, r, "lastname"))

	require.NoError(t, r.SetName("Cher"))
	require.Equal(t, "Cher", field(t, r, "firstname"))
	require.Equal(t, "", field(t, r, "lastname"))
}

func TestBook_AddRecords(t *testing.T) {
	ctx := context.Background()
	book, err := phonebook.NewBook(ctx, newStore())
	require.NoError(t, err)
	require.Equal(t, []any{}, field(t, book, "records"))
	require.Equal(t, 0, field(t, book, "last_id"))

	gene, err := book.AddRecord(ctx, "Gene Belcher", "555-1234")
	require.NoError(t, err)
	louise, err := book.AddRecord(ctx, "Louise Belcher", "555-2345")
	require.NoError(t, err)

	require.Equal(t, []any{gene.ID(), louise.ID()}, field(t, book, "records"))
	require.Equal(t, 2, field(t, book, "size"))
	require.Equal(t, 2, field(t, book, "last_id"))
	require.Equal(t, 1, gene.Seq())
	require.Equal(t, 2, louise.Seq())

	found, ok := book.ByNumber("555-2345")
	require.True(t, ok)
	require.Same(t, louise, found)
	_, ok = book.ByNumber("555-0000")
	require.False(t, ok)
}

func TestBook_ListensThroughRecords(t *testing.T) {
	ctx := context.Background()
	book, err := phonebook.NewBook(ctx, newStore())
	require.NoError(t, err)
	gene, err := book.AddRecord(ctx, "Gene Belcher", "555-1234")
	require.NoError(t, err)
	_, err = book.AddRecord(ctx, "Louise Belcher", "555-2345")
	require.NoError(t, err)

	var messages []string
	require.NoError(t, book.OnChange("records.firstname", func(m *datamodel.Model, _ string, _ *datamodel.Instruction, args ...any) {
		first, _ := m.Get("firstname")
		messages = append(messages, first.(string)+args[0].(string))
	}, " has been updated!"))

	require.NoError(t, gene.SetName("Gene The Magic Man Belcher"))
	require.Equal(t, []string{"Gene has been updated!"}, messages)
	require.Equal(t, 1, book.Records()[1].ListenerCount("firstname"))
}

func TestBook_RecordsListenerSeesInstructions(t *testing.T) {
	ctx := context.Background()
	book, err := phonebook.NewBook(ctx, nil)
	require.NoError(t, err)

	var actions []datamodel.Action
	var sizes []any
	require.NoError(t, book.OnChange("records", func(_ *datamodel.Model, _ string, instr *datamodel.Instruction, _ ...any) {
		actions = append(actions, instr.Action)
	}))
	require.NoError(t, book.OnChange("size", func(m *datamodel.Model, _ string, instr *datamodel.Instruction, _ ...any) {
		require.Nil(t, instr)
		v, _ := m.Get("size")
		sizes = append(sizes, v)
	}))

	_, err = book.AddRecord(ctx, "Bob Belcher", "555-0001")
	require.NoError(t, err)
	_, err = book.AddRecord(ctx, "Linda Belcher", "555-0002")
	require.NoError(t, err)
	removed, err := book.RemoveRecord(0)
	require.NoError(t, err)
	require.Equal(t, "Bob Belcher", removed.Name())

	require.Equal(t, []datamodel.Action{datamodel.ActionAppend, datamodel.ActionAppend, datamodel.ActionRemove}, actions)
	require.Equal(t, []any{1, 2, 1}, sizes)
	require.Len(t, book.Records(), 1)

	_, err = book.RemoveRecord(5)
	require.ErrorIs(t, err, datamodel.ErrInvalidInstruction)
}

func TestBook_SaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	book, err := phonebook.NewBook(ctx, s)
	require.NoError(t, err)
	_, err = book.AddRecord(ctx, "Gene Belcher", "555-1234")
	require.NoError(t, err)
	_, err = book.AddRecord(ctx, "Tina Belcher", "555-3456")
	require.NoError(t, err)
	require.NoError(t, book.SaveAll(ctx))

	for _, key := range s.CachedKeys(ctx) {
		kind, id, _ := cachemanager.SplitKey(key)
		typ, ok := s.Type(kind)
		require.True(t, ok)
		require.NoError(t, typ.DeleteCacheByID(ctx, s, id))
	}
	require.Empty(t, s.CachedKeys(ctx))

	loaded, err := phonebook.LoadBook(ctx, s, book.ID())
	require.NoError(t, err)
	require.NotSame(t, book, loaded)
	require.Equal(t, book.Model().Values(), loaded.Model().Values())

	records := loaded.Records()
	require.Len(t, records, 2)
	require.Equal(t, "Tina Belcher", records[1].Name())
	require.Equal(t, 2, loaded.LastID())

	// The restored book keeps working incrementally.
	_, err = loaded.AddRecord(ctx, "Louise Belcher", "555-2345")
	require.NoError(t, err)
	require.Equal(t, 3, field(t, loaded, "size"))
	require.Equal(t, 3, loaded.LastID())
}

func TestBook_LoadMissingRecord(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	book, err := phonebook.NewBook(ctx, s)
	require.NoError(t, err)
	_, err = book.AddRecord(ctx, "Gene Belcher", "555-1234")
	require.NoError(t, err)
	require.NoError(t, book.Save(ctx), "the record itself is never saved")

	require.NoError(t, phonebook.RecordType.DeleteCacheByID(ctx, s, book.Records()[0].ID()))
	require.NoError(t, phonebook.BookType.DeleteCacheByID(ctx, s, book.ID()))

	_, err = phonebook.LoadBook(ctx, s, book.ID())
	require.ErrorIs(t, err, store.ErrModelNotFound)
}

func TestRegister_Duplicate(t *testing.T) {
	c := phonebook.Catalog()
	require.Error(t, phonebook.Register(c))
	for _, name := range []string{"first_name", "last_name", "record_id", "count"} {
		_, ok := c.Transform(name)
		require.True(t, ok, name)
	}
}
