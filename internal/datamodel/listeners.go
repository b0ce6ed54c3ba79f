package datamodel

import (
	"github.com/zimmed/zimmed-core/internal/log"
)

// Wildcard selects every field declared at registration time.
const Wildcard = "*"

// Listener is called after a field has been re-derived. instr is nil for
// full derivations. args are the extra values bound at registration.
type Listener func(m *Model, field string, instr *Instruction, args ...any)

type registration struct {
	fn   Listener
	args []any
}

// listenerRegistry keeps per-field callbacks in registration order.
// It is not safe for concurrent use; controllers are single-threaded.
type listenerRegistry struct {
	byField map[string][]registration
}

func (r *listenerRegistry) add(field string, fn Listener, args []any) {
	if r.byField == nil {
		r.byField = make(map[string][]registration)
	}
	r.byField[field] = append(r.byField[field], registration{fn: fn, args: args})
}

func (r *listenerRegistry) has(field string) bool {
	return len(r.byField[field]) > 0
}

func (r *listenerRegistry) count(field string) int {
	return len(r.byField[field])
}

func (r *listenerRegistry) remove(field string) {
	delete(r.byField, field)
}

func (r *listenerRegistry) clear() {
	r.byField = nil
}

func (r *listenerRegistry) dispatch(m *Model, fields []string, instr *Instruction) {
	for _, field := range fields {
		regs := r.byField[field]
		if len(regs) == 0 {
			continue
		}
		// Listeners may register or unregister while we iterate.
		regs = append([]registration(nil), regs...)
		log.Debug(log.CatListener, "dispatch", "field", field, "listeners", len(regs), "instruction", instr.String())
		for _, reg := range regs {
			reg.fn(m, field, instr, reg.args...)
		}
	}
}
