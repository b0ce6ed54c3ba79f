package datamodel

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"

	"github.com/zimmed/zimmed-core/internal/log"
)

// reservedNames holds the lowercased exported members of *Model. A field
// with one of these names would shadow part of the model's surface.
var reservedNames = func() map[string]struct{} {
	names := make(map[string]struct{})
	t := reflect.TypeFor[*Model]()
	for i := range t.NumMethod() {
		names[strings.ToLower(t.Method(i).Name)] = struct{}{}
	}
	return names
}()

// Model is the read-only, storage-ready snapshot derived from a controller.
// Values are written only by the derivation engine; every external write
// fails with ImmutableWriteError.
type Model struct {
	rules  RuleSet
	fields []string
	values map[string]any
}

var nullModel = &Model{rules: RuleSet{}, values: map[string]any{}}

// Null returns the shared empty model.
func Null() *Model { return nullModel }

func newModel(rules RuleSet) (*Model, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	for field := range rules {
		if _, reserved := reservedNames[strings.ToLower(field)]; reserved {
			return nil, &ReservedFieldError{Field: field}
		}
	}
	owned := maps.Clone(rules)
	return &Model{
		rules:  owned,
		fields: owned.Fields(),
		values: make(map[string]any, len(owned)),
	}, nil
}

// LoadModel rebuilds a model from trusted rules and values without deriving.
// Values for undeclared fields are dropped.
func LoadModel(rules RuleSet, values map[string]any) (*Model, error) {
	m, err := newModel(rules)
	if err != nil {
		return nil, err
	}
	for field, v := range values {
		if _, ok := m.rules[field]; ok {
			m.values[field] = v
		}
	}
	return m, nil
}

// Get returns the stored value for field. Collection values are copies.
func (m *Model) Get(field string) (any, bool) {
	v, ok := m.values[field]
	if !ok {
		return nil, false
	}
	return cloneValue(v), true
}

// Values returns a copy of every stored value.
func (m *Model) Values() map[string]any {
	out := make(map[string]any, len(m.values))
	for k, v := range m.values {
		out[k] = cloneValue(v)
	}
	return out
}

// Fields returns the declared field names in sorted order.
func (m *Model) Fields() []string { return slices.Clone(m.fields) }

// HasField reports whether field is declared.
func (m *Model) HasField(field string) bool {
	_, ok := m.rules[field]
	return ok
}

// Rule returns the rule declared for field.
func (m *Model) Rule(field string) (*Rule, bool) {
	r, ok := m.rules[field]
	return r, ok
}

// Rules returns a copy of the rule set.
func (m *Model) Rules() RuleSet { return maps.Clone(m.rules) }

// Bindings returns the binding declared for field.
func (m *Model) Bindings(field string) (Binding, error) {
	r, ok := m.rules[field]
	if !ok {
		return Binding{}, &UnknownFieldError{Field: field}
	}
	return r.binding, nil
}

// Len returns the number of declared fields.
func (m *Model) Len() int { return len(m.rules) }

// Set always fails: models are read-only.
func (m *Model) Set(field string, _ any) error {
	return &ImmutableWriteError{Field: field}
}

// SetElement always fails: models are read-only, including their collections.
func (m *Model) SetElement(field string, _ any, _ any) error {
	return &ImmutableWriteError{Field: field}
}

// FieldsBoundTo returns the fields whose binding includes any of attrs,
// plus every root-bound field.
func (m *Model) FieldsBoundTo(attrs ...string) []string {
	var fields []string
	for _, field := range m.fields {
		if m.rules[field].binding.Matches(attrs...) {
			fields = append(fields, field)
		}
	}
	return fields
}

func (m *Model) String() string {
	parts := make([]string, 0, len(m.fields))
	for _, field := range m.fields {
		if v, ok := m.values[field]; ok {
			parts = append(parts, fmt.Sprintf("%s: %v", field, v))
		}
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// MarshalJSON encodes the stored values.
func (m *Model) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.values)
}

// MarshalYAML encodes the stored values.
func (m *Model) MarshalYAML() (any, error) {
	return m.values, nil
}

// ModelID returns the model's "uid" value, or "" when unset.
func ModelID(m *Model) string {
	if m == nil {
		return ""
	}
	id, _ := m.values[FieldUID].(string)
	return id
}

// ===========================================================================
// Derivation
// ===========================================================================

func (m *Model) deriveAll(ref Controller) error {
	for _, field := range m.fields {
		if err := m.deriveField(ref, field, nil); err != nil {
			return err
		}
	}
	return nil
}

func (m *Model) deriveField(ref Controller, field string, instr *Instruction) error {
	rule, ok := m.rules[field]
	if !ok {
		return &UnknownFieldError{Field: field}
	}
	src := m.source(ref, rule)

	coll, isCollection := rule.Collection()
	if instr != nil && !isCollection {
		return &InvalidInstructionError{Field: field, Action: instr.Action, Reason: "field is not a collection"}
	}

	var err error
	switch {
	case isCollection && coll.kind == KindList:
		err = m.deriveList(field, rule, coll, src, instr)
	case isCollection && coll.kind == KindDict:
		err = m.deriveDict(field, rule, coll, src, instr)
	default:
		v := rule.transform.Fn(src)
		if rule.constraint != nil && !rule.constraint.Check(v) {
			err = &TypeMismatchError{Field: field, Expected: rule.constraint.Name(), Got: v}
			break
		}
		m.values[field] = v
	}
	if err != nil {
		log.ErrorErr(log.CatModel, "derivation failed", err, "field", field, "instruction", instr.String())
		return err
	}
	log.Debug(log.CatModel, "derived field", "field", field, "instruction", instr.String())
	return nil
}

// source resolves the value a rule's transform receives.
func (m *Model) source(ref Controller, rule *Rule) any {
	if rule.binding.IsRoot() {
		return ref
	}
	if name, ok := rule.binding.Single(); ok {
		v, _ := ref.Attr(name)
		return v
	}
	values := make([]any, 0, len(rule.binding.attrs))
	for _, name := range rule.binding.attrs {
		v, _ := ref.Attr(name)
		values = append(values, v)
	}
	return values
}

func (m *Model) deriveList(field string, rule *Rule, coll *Collection, src any, instr *Instruction) error {
	convert := func(v any) (any, error) {
		out := rule.transform.Fn(v)
		if !coll.CheckElem(out) {
			return nil, &TypeMismatchError{Field: field, Expected: coll.elem.Name(), Got: out, Element: true}
		}
		return out, nil
	}
	stored, _ := m.values[field].([]any)

	if instr == nil {
		items, ok := sequence(src)
		if !ok {
			return &TypeMismatchError{Field: field, Expected: "list", Got: src}
		}
		derived := make([]any, 0, len(items))
		for _, item := range items {
			out, err := convert(item)
			if err != nil {
				return err
			}
			derived = append(derived, out)
		}
		m.values[field] = derived
		return nil
	}

	switch instr.Action {
	case ActionAppend:
		if !instr.hasValue {
			return &InvalidInstructionError{Field: field, Action: instr.Action, Reason: "append requires the new element"}
		}
		out, err := convert(instr.Value)
		if err != nil {
			return err
		}
		m.values[field] = append(slices.Clone(stored), out)
	case ActionInsert:
		items, ok := sequence(src)
		if !ok {
			return &TypeMismatchError{Field: field, Expected: "list", Got: src}
		}
		if instr.Index < 0 || instr.Index >= len(items) || instr.Index > len(stored) {
			return &InvalidInstructionError{Field: field, Action: instr.Action, Reason: fmt.Sprintf("index %d out of range", instr.Index)}
		}
		out, err := convert(items[instr.Index])
		if err != nil {
			return err
		}
		m.values[field] = slices.Insert(slices.Clone(stored), instr.Index, out)
	case ActionRemove:
		if instr.Index < 0 || instr.Index >= len(stored) {
			return &InvalidInstructionError{Field: field, Action: instr.Action, Reason: fmt.Sprintf("index %d out of range", instr.Index)}
		}
		m.values[field] = slices.Delete(slices.Clone(stored), instr.Index, instr.Index+1)
	default:
		return &InvalidInstructionError{Field: field, Action: instr.Action, Reason: "list collections accept append, insert and remove"}
	}
	return nil
}

func (m *Model) deriveDict(field string, rule *Rule, coll *Collection, src any, instr *Instruction) error {
	convert := func(v any) (any, error) {
		out := rule.transform.Fn(v)
		if !coll.CheckElem(out) {
			return nil, &TypeMismatchError{Field: field, Expected: coll.elem.Name(), Got: out, Element: true}
		}
		return out, nil
	}
	stored, _ := m.values[field].(map[string]any)

	if instr == nil {
		items, ok := mapping(src)
		if !ok {
			return &TypeMismatchError{Field: field, Expected: "dict", Got: src}
		}
		derived := make(map[string]any, len(items))
		for k, item := range items {
			out, err := convert(item)
			if err != nil {
				return err
			}
			derived[k] = out
		}
		m.values[field] = derived
		return nil
	}

	switch instr.Action {
	case ActionAdd:
		items, ok := mapping(src)
		if !ok {
			return &TypeMismatchError{Field: field, Expected: "dict", Got: src}
		}
		item, ok := items[instr.Key]
		if !ok {
			return &InvalidInstructionError{Field: field, Action: instr.Action, Reason: fmt.Sprintf("source has no key %q", instr.Key)}
		}
		out, err := convert(item)
		if err != nil {
			return err
		}
		next := maps.Clone(stored)
		if next == nil {
			next = make(map[string]any, 1)
		}
		next[instr.Key] = out
		m.values[field] = next
	case ActionRemove:
		if _, ok := stored[instr.Key]; !ok {
			return &InvalidInstructionError{Field: field, Action: instr.Action, Reason: fmt.Sprintf("no stored key %q", instr.Key)}
		}
		next := maps.Clone(stored)
		delete(next, instr.Key)
		m.values[field] = next
	default:
		return &InvalidInstructionError{Field: field, Action: instr.Action, Reason: "dict collections accept add and remove"}
	}
	return nil
}

// sequence reads any slice or array as []any.
func sequence(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}

// mapping reads any map with string-kinded keys as map[string]any.
func mapping(v any) (map[string]any, bool) {
	if items, ok := v.(map[string]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	items := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		items[iter.Key().String()] = iter.Value().Interface()
	}
	return items, true
}

// cloneValue copies stored collections so callers cannot reach engine state.
func cloneValue(v any) any {
	switch val := v.(type) {
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
