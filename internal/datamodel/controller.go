package datamodel

import (
	"context"
	"errors"
	"maps"
	"slices"

	"github.com/zimmed/zimmed-core/internal/log"
)

// Controller is a live object coupled to a Model. Concrete controllers embed
// *Base and are created through a Type; the unexported method keeps other
// implementations out.
type Controller interface {
	Kind() string
	ID() string
	Attr(name string) (any, bool)
	Model() *Model
	base() *Base
}

type state int

const (
	stateConstructing state = iota
	stateLive
	stateDestroyed
)

func (s state) String() string {
	switch s {
	case stateConstructing:
		return "constructing"
	case stateLive:
		return "live"
	case stateDestroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// Base holds a controller's attributes, owned Model and listeners, and
// implements the write path. It is not safe for concurrent use.
type Base struct {
	typ       *Type
	store     Store
	self      Controller
	attrs     map[string]any
	model     *Model
	listeners listenerRegistry
	state     state
	depth     int
}

func (b *Base) base() *Base { return b }

// Kind returns the controller type's kind.
func (b *Base) Kind() string { return b.typ.kind }

// Type returns the controller type.
func (b *Base) Type() *Type { return b.typ }

// Store returns the storage collaborator, or nil.
func (b *Base) Store() Store { return b.store }

// ID returns the "uid" attribute.
func (b *Base) ID() string {
	id, _ := b.attrs[FieldUID].(string)
	return id
}

// Attr returns the current value of an attribute.
func (b *Base) Attr(name string) (any, bool) {
	v, ok := b.attrs[name]
	return v, ok
}

// Attrs returns a shallow copy of every attribute.
func (b *Base) Attrs() map[string]any { return maps.Clone(b.attrs) }

// Model returns the owned model.
func (b *Base) Model() *Model { return b.model }

// Destroyed reports whether Delete has been called.
func (b *Base) Destroyed() bool { return b.state == stateDestroyed }

// HasField reports whether field is declared in the rule set.
func (b *Base) HasField(field string) bool {
	_, ok := b.typ.rules[field]
	return ok
}

// Set assigns an attribute. If attr is bound, every field bound to it is
// re-derived and its listeners are dispatched.
func (b *Base) Set(attr string, value any) error {
	return b.SetMany(map[string]any{attr: value})
}

// SetMany assigns several attributes, then derives and dispatches once for
// the union of affected fields. A field that fails to derive keeps its
// previous value and is not dispatched; the others still are, and the
// failures are returned joined.
func (b *Base) SetMany(values map[string]any) error {
	if len(values) == 0 {
		return nil
	}
	if err := b.writable("set"); err != nil {
		return err
	}
	if b.state == stateConstructing {
		maps.Copy(b.attrs, values)
		return nil
	}

	names := slices.Sorted(maps.Keys(values))
	var bound []string
	for _, name := range names {
		if b.typ.IsBound(name) {
			bound = append(bound, name)
		}
	}
	if len(bound) == 0 {
		maps.Copy(b.attrs, values)
		return nil
	}
	if err := b.enter(bound[0]); err != nil {
		return err
	}
	maps.Copy(b.attrs, values)

	changed, err := b.derive(b.model.FieldsBoundTo(bound...), nil)
	b.dispatch(changed, nil)
	return err
}

// Apply runs a collection instruction against field and dispatches its
// listeners with the instruction attached.
func (b *Base) Apply(field string, instr *Instruction) error {
	if err := b.writable("apply"); err != nil {
		return err
	}
	if instr == nil {
		return &InvalidOperationError{Op: "apply", Reason: "instruction is required"}
	}
	if !b.HasField(field) {
		return &UnknownFieldError{Field: field}
	}
	if err := b.enter(field); err != nil {
		return err
	}
	if err := b.model.deriveField(b.self, field, instr); err != nil {
		return err
	}
	b.dispatch([]string{field}, instr)
	return nil
}

// Mutate stores value under attr and updates the collection fields bound to
// attr alone with instr instead of re-deriving them. Other fields bound to
// attr, root-bound ones included, are derived in full.
func (b *Base) Mutate(attr string, value any, instr *Instruction) error {
	if err := b.writable("mutate"); err != nil {
		return err
	}
	if instr == nil {
		return b.Set(attr, value)
	}
	if !b.typ.IsBound(attr) {
		return &InvalidOperationError{Op: "mutate", Reason: "attribute " + attr + " is not bound"}
	}
	if err := b.enter(attr); err != nil {
		return err
	}
	b.attrs[attr] = value

	var incremental, full []string
	for _, field := range b.model.FieldsBoundTo(attr) {
		rule := b.typ.rules[field]
		if _, ok := rule.Collection(); ok && !rule.binding.IsRoot() && !rule.binding.IsMulti() {
			incremental = append(incremental, field)
		} else {
			full = append(full, field)
		}
	}
	incremental, incErr := b.derive(incremental, instr)
	full, fullErr := b.derive(full, nil)
	b.dispatch(incremental, instr)
	b.dispatch(full, nil)
	return errors.Join(incErr, fullErr)
}

// Refresh re-derives every field and dispatches the ones that derived.
func (b *Base) Refresh() error {
	if err := b.writable("refresh"); err != nil {
		return err
	}
	if err := b.enter(Wildcard); err != nil {
		return err
	}
	changed, err := b.derive(b.model.fields, nil)
	b.dispatch(changed, nil)
	return err
}

// derive re-derives fields in order, carrying on past failures. It returns
// the fields whose new value was stored.
func (b *Base) derive(fields []string, instr *Instruction) ([]string, error) {
	changed := make([]string, 0, len(fields))
	var errs []error
	for _, field := range fields {
		if err := b.model.deriveField(b.self, field, instr); err != nil {
			errs = append(errs, err)
			continue
		}
		changed = append(changed, field)
	}
	return changed, errors.Join(errs...)
}

// PropForKey returns the live value behind a field: the controller itself
// for root-bound fields, the attribute value for single bindings and the
// ordered attribute values for multi bindings.
func (b *Base) PropForKey(field string) (any, error) {
	rule, ok := b.typ.rules[field]
	if !ok {
		return nil, &UnknownFieldError{Field: field}
	}
	if rule.binding.IsRoot() {
		return b.self, nil
	}
	if attr, ok := rule.binding.Single(); ok {
		return b.attrs[attr], nil
	}
	values := make([]any, 0, len(rule.binding.attrs))
	for _, attr := range rule.binding.attrs {
		values = append(values, b.attrs[attr])
	}
	return values, nil
}

// OnChange registers fn for a field name, the wildcard, or a dot path
// through nested controllers. Nothing is registered unless every target
// resolves.
func (b *Base) OnChange(selector string, fn Listener, args ...any) error {
	if fn == nil {
		return &InvalidOperationError{Op: "on change", Reason: "listener is required"}
	}
	targets, err := b.resolve(selector)
	if err != nil {
		return err
	}
	for _, t := range targets {
		t.base.listeners.add(t.field, fn, args)
	}
	log.Debug(log.CatListener, "registered", "kind", b.Kind(), "selector", selector, "targets", len(targets))
	return nil
}

// OnChangeFields registers fn for each of fields.
func (b *Base) OnChangeFields(fields []string, fn Listener, args ...any) error {
	if fn == nil {
		return &InvalidOperationError{Op: "on change", Reason: "listener is required"}
	}
	var targets []target
	for _, field := range fields {
		resolved, err := b.resolve(field)
		if err != nil {
			return err
		}
		targets = append(targets, resolved...)
	}
	for _, t := range targets {
		t.base.listeners.add(t.field, fn, args)
	}
	return nil
}

// OffChange removes registrations. The wildcard clears every field of this
// controller; otherwise each target must have at least one registration.
func (b *Base) OffChange(selector string) error {
	if selector == Wildcard {
		b.listeners.clear()
		return nil
	}
	return b.OffChangeFields([]string{selector})
}

// OffChangeFields removes all registrations for each of fields.
func (b *Base) OffChangeFields(fields []string) error {
	var targets []target
	for _, field := range fields {
		resolved, err := b.resolve(field)
		if err != nil {
			return err
		}
		for _, t := range resolved {
			if !t.base.listeners.has(t.field) {
				return &UnknownFieldError{Field: t.field}
			}
		}
		targets = append(targets, resolved...)
	}
	for _, t := range targets {
		t.base.listeners.remove(t.field)
	}
	return nil
}

// ListenerCount returns the number of registrations for field.
func (b *Base) ListenerCount(field string) int {
	return b.listeners.count(field)
}

// Save persists the model through the store.
func (b *Base) Save(ctx context.Context) error {
	if err := b.persistable("save"); err != nil {
		return err
	}
	return b.store.PersistModel(ctx, b.typ, b.model)
}

// DeleteCache drops this controller from the store's cache.
func (b *Base) DeleteCache(ctx context.Context) error {
	if err := b.persistable("delete cache"); err != nil {
		return err
	}
	return b.store.DeleteCachedController(ctx, b.typ, b.ID())
}

// Delete drops the cached controller and the persisted model. The
// controller rejects writes afterwards.
func (b *Base) Delete(ctx context.Context) error {
	if err := b.DeleteCache(ctx); err != nil {
		return err
	}
	if err := b.store.DeletePersistedModel(ctx, b.typ, b.ID()); err != nil {
		return err
	}
	b.state = stateDestroyed
	b.listeners.clear()
	return nil
}

func (b *Base) writable(op string) error {
	if b.state == stateDestroyed {
		return &InvalidOperationError{Op: op, Reason: b.Kind() + " " + b.ID() + " was deleted"}
	}
	return nil
}

func (b *Base) persistable(op string) error {
	if err := b.writable(op); err != nil {
		return err
	}
	if b.store == nil {
		return &InvalidOperationError{Op: op, Reason: "no store attached"}
	}
	if b.ID() == "" {
		return &InvalidOperationError{Op: op, Reason: "controller has no id"}
	}
	return nil
}

// enter rejects a write made from a listener chain that is already too deep.
func (b *Base) enter(attr string) error {
	limit := b.maxDepth()
	if b.depth >= limit {
		err := &RecursionLimitError{Kind: b.Kind(), Attr: attr, Depth: limit}
		log.Warn(log.CatListener, "recursion limit", "kind", b.Kind(), "id", b.ID(), "attr", attr)
		return err
	}
	return nil
}

func (b *Base) maxDepth() int {
	if b.typ.maxDepth > 0 {
		return b.typ.maxDepth
	}
	if l, ok := b.store.(DispatchLimiter); ok && l.MaxDispatchDepth() > 0 {
		return l.MaxDispatchDepth()
	}
	return DefaultMaxDispatchDepth
}

func (b *Base) dispatch(fields []string, instr *Instruction) {
	if len(fields) == 0 {
		return
	}
	b.depth++
	defer func() { b.depth-- }()
	b.listeners.dispatch(b.model, fields, instr)
}

// BaseOf returns the Base embedded in c.
func BaseOf(c Controller) *Base { return c.base() }
