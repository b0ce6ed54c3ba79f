package datamodel

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Binding names the controller attribute(s) a Rule reads from.
// The zero Binding is a root binding: the transform receives the controller.
type Binding struct {
	attrs []string
}

// Root binds a rule to the controller instance itself.
func Root() Binding { return Binding{} }

// Attr binds a rule to a single attribute.
func Attr(name string) Binding { return Binding{attrs: []string{name}} }

// Attrs binds a rule to several attributes. The transform receives a []any
// holding their values in the given order.
func Attrs(names ...string) Binding { return Binding{attrs: slices.Clone(names)} }

// IsRoot reports whether the binding is the controller itself.
func (b Binding) IsRoot() bool { return len(b.attrs) == 0 }

// IsMulti reports whether the binding names more than one attribute.
func (b Binding) IsMulti() bool { return len(b.attrs) > 1 }

// Names returns the bound attribute names.
func (b Binding) Names() []string { return slices.Clone(b.attrs) }

// Single returns the attribute name of a single binding.
func (b Binding) Single() (string, bool) {
	if len(b.attrs) != 1 {
		return "", false
	}
	return b.attrs[0], true
}

// Matches reports whether any of attrs is bound. Root bindings always match
// since they depend on the whole controller.
func (b Binding) Matches(attrs ...string) bool {
	if b.IsRoot() {
		return true
	}
	for _, attr := range attrs {
		if slices.Contains(b.attrs, attr) {
			return true
		}
	}
	return false
}

func (b Binding) String() string {
	if b.IsRoot() {
		return "<root>"
	}
	return strings.Join(b.attrs, ",")
}

// Rule describes one Model field. Rules are immutable once constructed.
type Rule struct {
	binding    Binding
	constraint Constraint
	transform  Transform
}

// NewRule creates a Rule. A zero transform defaults to Identity, a nil
// constraint imposes no type check.
func NewRule(binding Binding, constraint Constraint, transform Transform) *Rule {
	if transform.Fn == nil {
		transform = Identity
	}
	return &Rule{
		binding:    Binding{attrs: slices.Clone(binding.attrs)},
		constraint: constraint,
		transform:  transform,
	}
}

// Inline wraps an unnamed transform. Rules using it cannot be persisted.
func Inline(fn TransformFunc) Transform {
	return Transform{Fn: fn}
}

// Binding returns the rule's binding.
func (r *Rule) Binding() Binding { return r.binding }

// Constraint returns the rule's constraint, or nil.
func (r *Rule) Constraint() Constraint { return r.constraint }

// Transform returns the rule's transform.
func (r *Rule) Transform() Transform { return r.transform }

// Collection returns the collection tag when the constraint is one.
func (r *Rule) Collection() (*Collection, bool) {
	c, ok := r.constraint.(*Collection)
	return c, ok
}

func (r *Rule) validate(field string) error {
	for _, attr := range r.binding.attrs {
		if strings.TrimSpace(attr) == "" {
			return fmt.Errorf("field %q: binding contains an empty attribute name", field)
		}
		if strings.Contains(attr, ".") {
			return fmt.Errorf("field %q: attribute %q cannot contain '.'", field, attr)
		}
	}
	if strings.TrimSpace(field) == "" {
		return fmt.Errorf("field name cannot be empty")
	}
	if strings.ContainsAny(field, ".*") {
		return fmt.Errorf("field %q: names cannot contain '.' or '*'", field)
	}
	return nil
}

// RuleSet maps field names to rules.
type RuleSet map[string]*Rule

// Fields returns the field names in sorted order.
func (rs RuleSet) Fields() []string {
	return slices.Sorted(maps.Keys(rs))
}

// Validate checks every rule for structural problems.
func (rs RuleSet) Validate() error {
	for _, field := range rs.Fields() {
		rule := rs[field]
		if rule == nil {
			return fmt.Errorf("field %q: rule cannot be nil", field)
		}
		if err := rule.validate(field); err != nil {
			return err
		}
	}
	return nil
}

// Action identifies a collection instruction.
type Action string

const (
	ActionAppend Action = "append"
	ActionInsert Action = "insert"
	ActionRemove Action = "remove"
	ActionAdd    Action = "add"
)

// Instruction describes an incremental collection change. Lists use Index
// (insert, remove) or Value (append); dicts use Key (add, remove).
type Instruction struct {
	Action Action `json:"action"`
	Index  int    `json:"index,omitempty"`
	Key    string `json:"key,omitempty"`
	Value  any    `json:"-"`

	hasValue bool
}

// Append carries the new source element explicitly; it is transformed,
// validated and appended to the stored list.
func Append(elem any) *Instruction {
	return &Instruction{Action: ActionAppend, Value: elem, hasValue: true}
}

// Insert transforms the source element at index and inserts it at index.
func Insert(index int) *Instruction {
	return &Instruction{Action: ActionInsert, Index: index}
}

// RemoveAt removes the stored list element at index.
func RemoveAt(index int) *Instruction {
	return &Instruction{Action: ActionRemove, Index: index}
}

// Add transforms the source value at key and stores it under key.
func Add(key string) *Instruction {
	return &Instruction{Action: ActionAdd, Key: key}
}

// RemoveKey deletes key from the stored dict.
func RemoveKey(key string) *Instruction {
	return &Instruction{Action: ActionRemove, Key: key}
}

func (i *Instruction) String() string {
	switch {
	case i == nil:
		return "<none>"
	case i.Key != "":
		return fmt.Sprintf("%s[%q]", i.Action, i.Key)
	case i.Action == ActionAppend:
		return string(i.Action)
	default:
		return fmt.Sprintf("%s[%d]", i.Action, i.Index)
	}
}
