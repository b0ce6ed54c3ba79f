package datamodel

import (
	"context"
	"maps"
	"slices"
)

// Implicit fields every controller type carries.
const (
	FieldUID        = "uid"
	FieldCollection = "_collection"

	// KindTransformName is the persisted name of the transform that maps a
	// controller to its kind.
	KindTransformName = "kind"
)

// DefaultMaxDispatchDepth bounds listener re-entry when no option is given.
const DefaultMaxDispatchDepth = 16

// KindTransform maps a root-bound controller to its kind.
var KindTransform = Transform{Name: KindTransformName, Fn: func(v any) any {
	c, ok := v.(Controller)
	if !ok {
		return nil
	}
	return c.Kind()
}}

// Store is the storage collaborator controllers delegate persistence to.
// Implementations may block; the engine only calls them from New, Restore,
// Load and the Save/Delete hooks.
type Store interface {
	AllocateID(ctx context.Context, t *Type) (string, error)
	GetOrCreateController(ctx context.Context, t *Type, id string) (Controller, error)
	RegisterController(ctx context.Context, t *Type, c Controller) error
	PersistModel(ctx context.Context, t *Type, m *Model) error
	DeleteCachedController(ctx context.Context, t *Type, id string) error
	DeletePersistedModel(ctx context.Context, t *Type, id string) error
}

// Hydrator maps a stored model back to controller attributes. store is the
// collaborator passed to Restore (possibly nil); hydrators use it to load
// controllers referenced by id.
type Hydrator func(ctx context.Context, store Store, m *Model) (map[string]any, error)

// Type describes one kind of controller: its rules, attribute defaults and
// how to wrap a Base into the concrete controller. Base values can only be
// built through a Type.
type Type struct {
	kind     string
	rules    RuleSet
	bindings map[string]struct{}
	defaults map[string]any
	wrap     func(*Base) Controller
	maxDepth int
	hydrate  Hydrator
}

// TypeOption configures a Type.
type TypeOption func(*Type)

// WithDefaults sets attribute values assigned before the supplied ones.
func WithDefaults(defaults map[string]any) TypeOption {
	return func(t *Type) {
		maps.Copy(t.defaults, defaults)
	}
}

// WithMaxDispatchDepth bounds how deep listener writes may re-enter a controller.
func WithMaxDispatchDepth(n int) TypeOption {
	return func(t *Type) {
		if n > 0 {
			t.maxDepth = n
		}
	}
}

// WithHydrator replaces the default model-to-attribute mapping used by Restore.
func WithHydrator(h Hydrator) TypeOption {
	return func(t *Type) {
		t.hydrate = h
	}
}

// NewType validates rules and returns a controller type. The implicit
// fields uid and _collection are added to rules.
func NewType(kind string, rules RuleSet, wrap func(*Base) Controller, opts ...TypeOption) (*Type, error) {
	if kind == "" {
		return nil, &InvalidOperationError{Op: "new type", Reason: "kind is required; the base controller cannot be instantiated"}
	}
	if wrap == nil {
		return nil, &InvalidOperationError{Op: "new type " + kind, Reason: "wrap function is required"}
	}
	all := make(RuleSet, len(rules)+2)
	for field, rule := range rules {
		if field == FieldUID || field == FieldCollection {
			return nil, &InvalidOperationError{Op: "new type " + kind, Reason: "field " + field + " is implicit"}
		}
		all[field] = rule
	}
	all[FieldUID] = NewRule(Attr(FieldUID), String, Identity)
	all[FieldCollection] = NewRule(Root(), String, KindTransform)

	// Fail on reserved or malformed names now rather than on first New.
	if _, err := newModel(all); err != nil {
		return nil, err
	}

	t := &Type{
		kind:     kind,
		rules:    all,
		bindings: make(map[string]struct{}),
		defaults: map[string]any{FieldUID: ""},
		wrap:     wrap,
	}
	for _, rule := range all {
		for _, attr := range rule.binding.attrs {
			t.bindings[attr] = struct{}{}
		}
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.hydrate == nil {
		t.hydrate = t.identityHydrate
	}
	return t, nil
}

// MustType is NewType for package-level declarations.
func MustType(kind string, rules RuleSet, wrap func(*Base) Controller, opts ...TypeOption) *Type {
	t, err := NewType(kind, rules, wrap, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

// Kind returns the controller kind, also stored as the _collection field.
func (t *Type) Kind() string { return t.kind }

// Rules returns a copy of the full rule set, implicit fields included.
func (t *Type) Rules() RuleSet { return maps.Clone(t.rules) }

// Bindings returns the attribute names referenced by at least one rule, sorted.
func (t *Type) Bindings() []string {
	return slices.Sorted(maps.Keys(t.bindings))
}

// IsBound reports whether writes to attr trigger derivation.
func (t *Type) IsBound(attr string) bool {
	_, ok := t.bindings[attr]
	return ok
}

// MaxDispatchDepth returns the listener re-entry bound set by
// WithMaxDispatchDepth, or DefaultMaxDispatchDepth.
func (t *Type) MaxDispatchDepth() int {
	if t.maxDepth > 0 {
		return t.maxDepth
	}
	return DefaultMaxDispatchDepth
}

// DispatchLimiter is implemented by stores that bound listener re-entry for
// every type without its own WithMaxDispatchDepth.
type DispatchLimiter interface {
	MaxDispatchDepth() int
}

func (t *Type) newBase(store Store) *Base {
	return &Base{
		typ:   t,
		store: store,
		attrs: make(map[string]any, len(t.defaults)),
	}
}

// New constructs a live controller. Defaults are assigned first, then attrs.
// With a store and no "uid" attribute, an id is allocated and the controller
// is registered with the store's cache. store may be nil.
func (t *Type) New(ctx context.Context, store Store, attrs map[string]any) (Controller, error) {
	b := t.newBase(store)
	if err := b.SetMany(cloneAttrs(t.defaults)); err != nil {
		return nil, err
	}
	if err := b.SetMany(attrs); err != nil {
		return nil, err
	}
	if store != nil && b.ID() == "" {
		id, err := store.AllocateID(ctx, t)
		if err != nil {
			return nil, err
		}
		b.attrs[FieldUID] = id
	}

	model, err := newModel(t.rules)
	if err != nil {
		return nil, err
	}
	ctrl, err := t.bind(b, model)
	if err != nil {
		return nil, err
	}
	if err := model.deriveAll(ctrl); err != nil {
		return nil, err
	}
	b.state = stateLive

	if store != nil {
		if err := store.RegisterController(ctx, t, ctrl); err != nil {
			return nil, err
		}
	}
	return ctrl, nil
}

// Restore rebuilds a live controller around the values of an existing model
// without deriving. Attributes come from the type's hydrator, overridden by
// attrs. store may be nil.
func (t *Type) Restore(ctx context.Context, store Store, m *Model, attrs map[string]any) (Controller, error) {
	if m == nil {
		return nil, &InvalidOperationError{Op: "restore " + t.kind, Reason: "model is required"}
	}
	hydrated, err := t.hydrate(ctx, store, m)
	if err != nil {
		return nil, err
	}
	// The id always follows the model, whatever the hydrator returns.
	if id := ModelID(m); id != "" {
		if hydrated == nil {
			hydrated = make(map[string]any, 1)
		}
		hydrated[FieldUID] = id
	}

	b := t.newBase(store)
	if err := b.SetMany(cloneAttrs(t.defaults)); err != nil {
		return nil, err
	}
	if err := b.SetMany(hydrated); err != nil {
		return nil, err
	}
	if err := b.SetMany(attrs); err != nil {
		return nil, err
	}

	model, err := LoadModel(t.rules, m.Values())
	if err != nil {
		return nil, err
	}
	ctrl, err := t.bind(b, model)
	if err != nil {
		return nil, err
	}
	b.state = stateLive

	if store != nil {
		if err := store.RegisterController(ctx, t, ctrl); err != nil {
			return nil, err
		}
	}
	return ctrl, nil
}

func (t *Type) bind(b *Base, model *Model) (Controller, error) {
	b.model = model
	ctrl := t.wrap(b)
	if ctrl == nil || ctrl.base() != b {
		return nil, &InvalidOperationError{Op: "new " + t.kind, Reason: "wrap must return a controller embedding the given base"}
	}
	b.self = ctrl
	return ctrl, nil
}

// Load returns the controller with id from the store, restoring it if the
// store has no cached instance.
func (t *Type) Load(ctx context.Context, store Store, id string) (Controller, error) {
	if err := t.requireID("load", store, id); err != nil {
		return nil, err
	}
	return store.GetOrCreateController(ctx, t, id)
}

// Get is an alias for Load.
func (t *Type) Get(ctx context.Context, store Store, id string) (Controller, error) {
	return t.Load(ctx, store, id)
}

// SaveByID loads the controller with id and persists its model.
func (t *Type) SaveByID(ctx context.Context, store Store, id string) error {
	ctrl, err := t.Load(ctx, store, id)
	if err != nil {
		return err
	}
	return ctrl.base().Save(ctx)
}

// DeleteCacheByID drops the cached controller with id.
func (t *Type) DeleteCacheByID(ctx context.Context, store Store, id string) error {
	if err := t.requireID("delete cache", store, id); err != nil {
		return err
	}
	return store.DeleteCachedController(ctx, t, id)
}

// DeleteByID drops the cached controller with id, then its persisted model.
func (t *Type) DeleteByID(ctx context.Context, store Store, id string) error {
	if err := t.requireID("delete", store, id); err != nil {
		return err
	}
	if err := store.DeleteCachedController(ctx, t, id); err != nil {
		return err
	}
	return store.DeletePersistedModel(ctx, t, id)
}

func (t *Type) requireID(op string, store Store, id string) error {
	if id == "" {
		return &InvalidOperationError{Op: op + " " + t.kind, Reason: "id is required"}
	}
	if store == nil {
		return &InvalidOperationError{Op: op + " " + t.kind, Reason: "no store attached"}
	}
	return nil
}

// identityHydrate copies fields with a single binding and the identity
// transform back to their attribute.
func (t *Type) identityHydrate(_ context.Context, _ Store, m *Model) (map[string]any, error) {
	attrs := make(map[string]any)
	for field, rule := range t.rules {
		attr, ok := rule.binding.Single()
		if !ok || rule.transform.Name != IdentityName {
			continue
		}
		if v, ok := m.Get(field); ok {
			attrs[attr] = v
		}
	}
	return attrs, nil
}

func cloneAttrs(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = cloneValue(v)
	}
	return out
}
