package datamodel

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestModel_DerivesAllFieldsOnConstruction(t *testing.T) {
	p := newPerson("Ada Lovelace")

	m := p.Model()
	require.Equal(t, []string{"_collection", "name", "uid"}, m.Fields())
	name, ok := m.Get("name")
	require.True(t, ok)
	require.Equal(t, "Ada Lovelace", name)
	kind, _ := m.Get(FieldCollection)
	require.Equal(t, "person", kind)
	uid, _ := m.Get(FieldUID)
	require.Equal(t, "", uid)
}

func TestModel_MultiBindingReceivesOrderedValues(t *testing.T) {
	tm := newTeam()
	require.NoError(t, tm.SetMany(map[string]any{"city": "Boston", "mascot": "Owls"}))

	label, _ := tm.Model().Get("label")
	require.Equal(t, "Boston Owls", label)
}

func TestModel_ScalarConstraintChecksTransformedValue(t *testing.T) {
	inv := newInventory(nil, nil)

	err := inv.Set("owner", 42)
	require.Error(t, err)
	var mismatch *TypeMismatchError
	require.True(t, errors.As(err, &mismatch))
	require.Equal(t, "owner", mismatch.Field)
	require.Equal(t, "string", mismatch.Expected)
	require.False(t, mismatch.Element)

	require.NoError(t, inv.Set("owner", "grace"))
	owner, _ := inv.Model().Get("owner")
	require.Equal(t, "GRACE", owner)
}

func TestModel_ListFullDerivation(t *testing.T) {
	inv := newInventory([]string{"apple", "pear"}, nil)

	items, _ := inv.Model().Get("items")
	require.Equal(t, []any{"APPLE", "PEAR"}, items)
}

func TestModel_ListElementMismatchKeepsPreviousValue(t *testing.T) {
	inv := newInventory([]string{"apple"}, nil)

	err := inv.Set("items", []any{"kiwi", 7})
	require.ErrorIs(t, err, ErrTypeMismatch)
	var mismatch *TypeMismatchError
	require.True(t, errors.As(err, &mismatch))
	require.True(t, mismatch.Element)

	items, _ := inv.Model().Get("items")
	require.Equal(t, []any{"APPLE"}, items)
}

func TestModel_ListRequiresSequenceSource(t *testing.T) {
	inv := newInventory(nil, nil)
	require.ErrorIs(t, inv.Set("items", "not-a-list"), ErrTypeMismatch)
}

func TestModel_ListInstructions(t *testing.T) {
	inv := newInventory([]string{"a", "c"}, nil)

	require.NoError(t, inv.Mutate("items", []string{"a", "c", "d"}, Append("d")))
	items, _ := inv.Model().Get("items")
	require.Equal(t, []any{"A", "C", "D"}, items)

	require.NoError(t, inv.Mutate("items", []string{"a", "b", "c", "d"}, Insert(1)))
	items, _ = inv.Model().Get("items")
	require.Equal(t, []any{"A", "B", "C", "D"}, items)

	require.NoError(t, inv.Mutate("items", []string{"b", "c", "d"}, RemoveAt(0)))
	items, _ = inv.Model().Get("items")
	require.Equal(t, []any{"B", "C", "D"}, items)
}

func TestModel_ListInstructionErrors(t *testing.T) {
	inv := newInventory([]string{"a"}, nil)

	tests := []struct {
		name  string
		instr *Instruction
	}{
		{name: "remove out of range", instr: RemoveAt(3)},
		{name: "negative index", instr: RemoveAt(-1)},
		{name: "insert beyond source", instr: Insert(5)},
		{name: "dict action on list", instr: Add("k")},
		{name: "append without element", instr: &Instruction{Action: ActionAppend}},
		{name: "unknown action", instr: &Instruction{Action: "shuffle"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := inv.Apply("items", tt.instr)
			require.ErrorIs(t, err, ErrInvalidInstruction)
			items, _ := inv.Model().Get("items")
			require.Equal(t, []any{"A"}, items)
		})
	}
}

func TestModel_AppendValidatesElement(t *testing.T) {
	inv := newInventory([]string{"a"}, nil)

	err := inv.Apply("items", Append(3))
	require.ErrorIs(t, err, ErrTypeMismatch)
	items, _ := inv.Model().Get("items")
	require.Equal(t, []any{"A"}, items)
}

func TestModel_DictInstructions(t *testing.T) {
	inv := newInventory(nil, map[string]int{"bolts": 4})

	require.NoError(t, inv.Mutate("stock", map[string]int{"bolts": 4, "nuts": 9}, Add("nuts")))
	stock, _ := inv.Model().Get("stock")
	require.Equal(t, map[string]any{"bolts": 4, "nuts": 9}, stock)

	require.NoError(t, inv.Apply("stock", RemoveKey("bolts")))
	stock, _ = inv.Model().Get("stock")
	require.Equal(t, map[string]any{"nuts": 9}, stock)

	require.ErrorIs(t, inv.Apply("stock", RemoveKey("bolts")), ErrInvalidInstruction)
	require.ErrorIs(t, inv.Apply("stock", Add("washers")), ErrInvalidInstruction)
	require.ErrorIs(t, inv.Apply("stock", Append(1)), ErrInvalidInstruction)
}

func TestModel_InstructionOnScalarField(t *testing.T) {
	inv := newInventory(nil, nil)
	require.ErrorIs(t, inv.Apply("owner", Append("x")), ErrInvalidInstruction)
}

func TestModel_UnknownField(t *testing.T) {
	inv := newInventory(nil, nil)

	err := inv.Apply("nope", RemoveAt(0))
	require.ErrorIs(t, err, ErrUnknownField)

	_, err = inv.Model().Bindings("nope")
	require.ErrorIs(t, err, ErrUnknownField)
}

func TestModel_RejectsExternalWrites(t *testing.T) {
	m := newPerson("Ada").Model()

	for _, field := range []string{"name", "uid", "missing", ""} {
		require.ErrorIs(t, m.Set(field, "x"), ErrImmutableWrite)
		require.ErrorIs(t, m.SetElement(field, 0, "x"), ErrImmutableWrite)
	}
	name, _ := m.Get("name")
	require.Equal(t, "Ada", name)
}

func TestModel_AccessorsReturnCopies(t *testing.T) {
	inv := newInventory([]string{"a"}, map[string]int{"k": 1})

	items, _ := inv.Model().Get("items")
	items.([]any)[0] = "mutated"
	values := inv.Model().Values()
	values["stock"].(map[string]any)["k"] = 99

	items, _ = inv.Model().Get("items")
	require.Equal(t, []any{"A"}, items)
	stock, _ := inv.Model().Get("stock")
	require.Equal(t, map[string]any{"k": 1}, stock)
}

func TestModel_ReservedFieldNames(t *testing.T) {
	for _, field := range []string{"values", "Get", "FIELDS", "marshalJSON"} {
		_, err := NewType("bad", RuleSet{field: NewRule(Attr("x"), nil, Identity)}, func(b *Base) Controller { return &person{b} })
		require.ErrorIs(t, err, ErrReservedField, field)
	}
}

func TestModel_FieldsBoundTo(t *testing.T) {
	m := newTeam().Model()

	require.Equal(t, []string{"_collection", "label"}, m.FieldsBoundTo("mascot"))
	require.Equal(t, []string{"_collection", "label", "members"}, m.FieldsBoundTo("members", "city"))
	require.Equal(t, []string{"_collection"}, m.FieldsBoundTo("unbound"))
}

func TestModel_Null(t *testing.T) {
	require.Same(t, Null(), Null())
	require.Equal(t, 0, Null().Len())
	require.Empty(t, Null().Values())
}

// ===========================================================================
// Properties
// ===========================================================================

func TestModel_UnconstrainedDerivationStoresTransformResult(t *testing.T) {
	rapid.Check(t, func(r *rapid.T) {
		offset := rapid.IntRange(-100, 100).Draw(r, "offset")
		typ := MustType("calc",
			RuleSet{"out": NewRule(Attr("in"), nil, Inline(func(v any) any {
				n, _ := v.(int)
				return fmt.Sprintf("%d", n+offset)
			}))},
			func(b *Base) Controller { return &person{b} },
		)

		in := rapid.Int().Draw(r, "in")
		c, err := typ.New(context.Background(), nil, map[string]any{"in": in})
		require.NoError(r, err)

		next := rapid.Int().Draw(r, "next")
		require.NoError(r, BaseOf(c).Set("in", next))
		out, _ := c.Model().Get("out")
		require.Equal(r, fmt.Sprintf("%d", next+offset), out)
	})
}

func TestModel_RefreshIsIdempotent(t *testing.T) {
	rapid.Check(t, func(r *rapid.T) {
		items := rapid.SliceOf(rapid.StringMatching(`[a-z]{0,6}`)).Draw(r, "items")
		stock := rapid.MapOf(rapid.StringMatching(`[a-z]{1,4}`), rapid.IntRange(0, 50)).Draw(r, "stock")
		inv := newInventory(items, stock)

		require.NoError(r, inv.Refresh())
		first := inv.Model().Values()
		require.NoError(r, inv.Refresh())
		require.Equal(r, first, inv.Model().Values())
	})
}

func TestModel_AppendThenRemoveRestoresList(t *testing.T) {
	rapid.Check(t, func(r *rapid.T) {
		items := rapid.SliceOf(rapid.StringMatching(`[a-z]{1,6}`)).Draw(r, "items")
		extra := rapid.StringMatching(`[a-z]{1,6}`).Draw(r, "extra")
		inv := newInventory(items, nil)
		before, _ := inv.Model().Get("items")

		grown := append(append([]string(nil), items...), extra)
		require.NoError(r, inv.Mutate("items", grown, Append(extra)))
		require.NoError(r, inv.Mutate("items", items, RemoveAt(len(items))))

		after, _ := inv.Model().Get("items")
		require.Equal(r, before, after)
	})
}

func TestModel_DictAddThenRemoveKeepsKeySet(t *testing.T) {
	rapid.Check(t, func(r *rapid.T) {
		stock := rapid.MapOf(rapid.StringMatching(`[a-z]{1,4}`), rapid.IntRange(0, 50)).Draw(r, "stock")
		key := rapid.StringMatching(`[A-Z]{1,4}`).Draw(r, "key")
		inv := newInventory(nil, stock)
		before, _ := inv.Model().Get("stock")

		grown := map[string]int{key: 7}
		for k, v := range stock {
			grown[k] = v
		}
		require.NoError(r, inv.Mutate("stock", grown, Add(key)))
		require.NoError(r, inv.Mutate("stock", stock, RemoveKey(key)))

		after, _ := inv.Model().Get("stock")
		require.Equal(r, before, after)
		_, stillThere := after.(map[string]any)[key]
		require.False(r, stillThere)
	})
}
