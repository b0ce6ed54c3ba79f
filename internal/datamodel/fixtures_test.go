package datamodel

import (
	"context"
	"strings"

	"github.com/stretchr/testify/mock"
)

// person: one field bound to one attribute.
type person struct{ *Base }

func (p *person) SetFullName(name string) error { return p.Set("fullName", name) }

var personType = MustType("person",
	RuleSet{"name": NewRule(Attr("fullName"), String, Identity)},
	func(b *Base) Controller { return &person{b} },
	WithDefaults(map[string]any{"fullName": ""}),
)

// team: a list of people plus a multi-bound field.
type team struct{ *Base }

var teamType = MustType("team",
	RuleSet{
		"members": NewRule(Attr("members"), List(nil), Identity),
		"label":   NewRule(Attrs("city", "mascot"), nil, Inline(joinWords)),
	},
	func(b *Base) Controller { return &team{b} },
	WithDefaults(map[string]any{"members": []*person{}, "city": "", "mascot": ""}),
)

// league: a list of teams, for two-level paths.
type league struct{ *Base }

var leagueType = MustType("league",
	RuleSet{"teams": NewRule(Attr("teams"), List(nil), Identity)},
	func(b *Base) Controller { return &league{b} },
	WithDefaults(map[string]any{"teams": []*team{}}),
)

var upper = Transform{Name: "upper", Fn: func(v any) any {
	s, ok := v.(string)
	if !ok {
		return v
	}
	return strings.ToUpper(s)
}}

// inventory: list and dict collections with element constraints.
type inventory struct{ *Base }

var inventoryType = MustType("inventory",
	RuleSet{
		"items": NewRule(Attr("items"), List(String), upper),
		"stock": NewRule(Attr("stock"), Dict(Int), Identity),
		"owner": NewRule(Attr("owner"), String, upper),
	},
	func(b *Base) Controller { return &inventory{b} },
	WithDefaults(map[string]any{"items": []string{}, "stock": map[string]int{}, "owner": ""}),
)

func joinWords(v any) any {
	parts, _ := v.([]any)
	words := make([]string, 0, len(parts))
	for _, p := range parts {
		if s, ok := p.(string); ok && s != "" {
			words = append(words, s)
		}
	}
	return strings.Join(words, " ")
}

func testCatalog() *Catalog {
	c := NewCatalog()
	c.MustTransform(upper.Name, upper.Fn)
	return c
}

func newPerson(name string) *person {
	c, err := personType.New(context.Background(), nil, map[string]any{"fullName": name})
	if err != nil {
		panic(err)
	}
	return c.(*person)
}

func newTeam(members ...*person) *team {
	c, err := teamType.New(context.Background(), nil, map[string]any{"members": members})
	if err != nil {
		panic(err)
	}
	return c.(*team)
}

func newInventory(items []string, stock map[string]int) *inventory {
	c, err := inventoryType.New(context.Background(), nil, map[string]any{"items": items, "stock": stock})
	if err != nil {
		panic(err)
	}
	return c.(*inventory)
}

type call struct {
	field string
	instr *Instruction
	args  []any
}

type recorder struct {
	calls []call
}

func (r *recorder) listen(_ *Model, field string, instr *Instruction, args ...any) {
	r.calls = append(r.calls, call{field: field, instr: instr, args: args})
}

func (r *recorder) fields() []string {
	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, c.field)
	}
	return out
}

type mockStore struct {
	mock.Mock
}

var _ Store = (*mockStore)(nil)

func (m *mockStore) AllocateID(ctx context.Context, t *Type) (string, error) {
	args := m.Called(ctx, t)
	return args.String(0), args.Error(1)
}

func (m *mockStore) GetOrCreateController(ctx context.Context, t *Type, id string) (Controller, error) {
	args := m.Called(ctx, t, id)
	c, _ := args.Get(0).(Controller)
	return c, args.Error(1)
}

func (m *mockStore) RegisterController(ctx context.Context, t *Type, c Controller) error {
	return m.Called(ctx, t, c).Error(0)
}

func (m *mockStore) PersistModel(ctx context.Context, t *Type, model *Model) error {
	return m.Called(ctx, t, model).Error(0)
}

func (m *mockStore) DeleteCachedController(ctx context.Context, t *Type, id string) error {
	return m.Called(ctx, t, id).Error(0)
}

func (m *mockStore) DeletePersistedModel(ctx context.Context, t *Type, id string) error {
	return m.Called(ctx, t, id).Error(0)
}
