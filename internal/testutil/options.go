package testutil

import (
	"fmt"
	"sync/atomic"
)

// Sequence allocates predictable ids: prefix-1, prefix-2 and so on.
type Sequence struct {
	prefix string
	n      atomic.Int64
}

// NewSequence creates a Sequence.
func NewSequence(prefix string) *Sequence {
	return &Sequence{prefix: prefix}
}

func (s *Sequence) NewID() string {
	return fmt.Sprintf("%s-%d", s.prefix, s.n.Add(1))
}

// Attrs builds an attribute map from alternating keys and values.
func Attrs(kv ...any) map[string]any {
	if len(kv)%2 != 0 {
		panic("testutil.Attrs: odd number of arguments")
	}
	attrs := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		attrs[kv[i].(string)] = kv[i+1]
	}
	return attrs
}
