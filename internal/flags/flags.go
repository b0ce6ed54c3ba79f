// Package flags exposes the boolean feature flags from configuration.
// A Registry is read-only once built and unknown flags read as disabled.
package flags

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/zimmed/zimmed-core/internal/log"
)

const (
	// FlagAutosave persists controllers through the change feed in zcore demo.
	FlagAutosave = "autosave"

	// FlagChangeLog prints every change feed event in zcore demo.
	FlagChangeLog = "change-log"
)

var known = map[string]string{
	FlagAutosave:  "persist demo models through the change feed",
	FlagChangeLog: "print every change feed event in the demo",
}

// Known returns the flag names zcore reads, sorted.
func Known() []string { return slices.Sorted(maps.Keys(known)) }

// Describe returns the help text of a known flag.
func Describe(name string) (string, bool) {
	text, ok := known[name]
	return text, ok
}

// Help renders one "name  description" line per known flag.
func Help() string {
	var b strings.Builder
	for _, name := range Known() {
		fmt.Fprintf(&b, "  %-12s %s\n", name, known[name])
	}
	return b.String()
}

// CheckName rejects names zcore never reads, so typos in `zcore config flag`
// fail loudly instead of being saved.
func CheckName(name string) error {
	if _, ok := known[name]; ok {
		return nil
	}
	return fmt.Errorf("unknown flag %q (known: %s)", name, strings.Join(Known(), ", "))
}

// Registry holds flag values.
type Registry struct {
	flags map[string]bool
}

// New copies flags into a Registry. A nil map disables everything. Unknown
// names are kept so older binaries do not drop newer flags on save.
func New(flags map[string]bool) *Registry {
	r := &Registry{flags: maps.Clone(flags)}
	if r.flags == nil {
		r.flags = make(map[string]bool)
	}
	for name := range r.flags {
		if _, ok := known[name]; !ok {
			log.Warn(log.CatConfig, "unknown feature flag in config", "flag", name)
		}
	}
	log.Debug(log.CatConfig, "feature flags loaded", "flags", r.flags)
	return r
}

// Enabled reports the named flag. Nil registries and unset names are false.
func (r *Registry) Enabled(name string) bool {
	if r == nil {
		return false
	}
	return r.flags[name]
}

// With returns a copy of r with name set to value.
func (r *Registry) With(name string, value bool) *Registry {
	next := r.All()
	next[name] = value
	return &Registry{flags: next}
}

// Names returns the configured flag names, sorted.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	return slices.Sorted(maps.Keys(r.flags))
}

// All returns a copy of every flag.
func (r *Registry) All() map[string]bool {
	if r == nil {
		return map[string]bool{}
	}
	return maps.Clone(r.flags)
}
