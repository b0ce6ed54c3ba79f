package datamodel

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// TransformFunc maps a bound source value to the value stored in the Model.
// It must be pure: one input, one output, no side effects.
type TransformFunc func(v any) any

// Transform is a named TransformFunc. The name is what gets persisted.
type Transform struct {
	Name string
	Fn   TransformFunc
}

// IdentityName is the name of the default transform.
const IdentityName = "identity"

// Identity returns its input unchanged.
var Identity = Transform{Name: IdentityName, Fn: func(v any) any { return v }}

// Catalog resolves the transform and constraint names used by serialized
// rules. A Catalog starts with the identity and kind transforms and the built-in
// scalar constraints.
type Catalog struct {
	mu          sync.RWMutex
	transforms  map[string]Transform
	constraints map[string]Constraint
}

// NewCatalog creates a catalog preloaded with built-ins.
func NewCatalog() *Catalog {
	c := &Catalog{
		transforms:  make(map[string]Transform),
		constraints: make(map[string]Constraint),
	}
	c.transforms[IdentityName] = Identity
	c.transforms[KindTransformName] = KindTransform
	for _, builtin := range []Constraint{String, Int, Int64, Float, Bool, ModelRef, Any} {
		c.constraints[builtin.Name()] = builtin
	}
	return c
}

// RegisterTransform adds a named transform. Registering a name twice fails.
func (c *Catalog) RegisterTransform(name string, fn TransformFunc) (Transform, error) {
	if name == "" {
		return Transform{}, fmt.Errorf("transform name cannot be empty")
	}
	if fn == nil {
		return Transform{}, fmt.Errorf("transform %q: function cannot be nil", name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.transforms[name]; exists {
		return Transform{}, fmt.Errorf("transform %q already registered", name)
	}
	t := Transform{Name: name, Fn: fn}
	c.transforms[name] = t
	return t, nil
}

// Add registers transforms declared elsewhere, typically at package level
// next to the rules that use them.
func (c *Catalog) Add(transforms ...Transform) error {
	for _, t := range transforms {
		if _, err := c.RegisterTransform(t.Name, t.Fn); err != nil {
			return err
		}
	}
	return nil
}

// MustTransform is RegisterTransform for package-level declarations.
func (c *Catalog) MustTransform(name string, fn TransformFunc) Transform {
	t, err := c.RegisterTransform(name, fn)
	if err != nil {
		panic(err)
	}
	return t
}

// RegisterConstraint makes a scalar constraint resolvable by its name.
func (c *Catalog) RegisterConstraint(constraint Constraint) error {
	if constraint == nil || constraint.Name() == "" {
		return fmt.Errorf("constraint must have a name")
	}
	if _, isCollection := constraint.(*Collection); isCollection {
		return fmt.Errorf("constraint %q: collections are resolved from their descriptor", constraint.Name())
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.constraints[constraint.Name()]; exists {
		return fmt.Errorf("constraint %q already registered", constraint.Name())
	}
	c.constraints[constraint.Name()] = constraint
	return nil
}

// Transform looks up a transform by name.
func (c *Catalog) Transform(name string) (Transform, bool) {
	if name == "" {
		return Identity, true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.transforms[name]
	return t, ok
}

// Constraint resolves a constraint descriptor such as "string" or "list<model>".
// An empty descriptor resolves to nil (no constraint).
func (c *Catalog) Constraint(desc string) (Constraint, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return parseConstraint(desc, c.constraints)
}

// TransformNames returns the registered transform names, sorted.
func (c *Catalog) TransformNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.transforms))
}
