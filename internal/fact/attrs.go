package fact

import (
	"fmt"
	"regexp"
	"strings"
)

var namePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ValidName reports whether name can be used as an attribute name.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Bookkeeping attributes are maintained by the store and the runtime, never
// by judges. They are excluded from existence checks.
const (
	AttrID      = "_id"
	AttrTime    = "_time"
	AttrVersion = "_version"
	AttrJob     = "_job"
)

// IsBookkeeping reports whether name is one of the internal attributes.
func IsBookkeeping(name string) bool {
	switch name {
	case AttrID, AttrTime, AttrVersion, AttrJob:
		return true
	}
	return false
}

// Attrs is an ordered multimap from attribute name to values. Names keep
// the order of their first addition; values keep insertion order.
//
// Attrs is the accumulator handed to probe callbacks before a fact exists.
// The zero value is ready to use.
type Attrs struct {
	names []string
	vals  map[string][]Value
}

// NewAttrs creates an empty attribute set.
func NewAttrs() *Attrs {
	return &Attrs{}
}

// Add appends values to the named attribute.
func (a *Attrs) Add(name string, vals ...Value) {
	if len(vals) == 0 {
		return
	}
	if a.vals == nil {
		a.vals = make(map[string][]Value)
	}
	if _, ok := a.vals[name]; !ok {
		a.names = append(a.names, name)
	}
	a.vals[name] = append(a.vals[name], vals...)
}

// Set replaces the values of the named attribute, keeping its position.
func (a *Attrs) Set(name string, vals ...Value) {
	if a.vals != nil {
		if _, ok := a.vals[name]; ok {
			a.vals[name] = nil
		}
	}
	a.Add(name, vals...)
}

// Get returns a copy of the values of the named attribute.
func (a *Attrs) Get(name string) []Value {
	vals := a.vals[name]
	if len(vals) == 0 {
		return nil
	}
	out := make([]Value, len(vals))
	copy(out, vals)
	return out
}

// First returns the first value of the named attribute.
func (a *Attrs) First(name string) (Value, bool) {
	vals := a.vals[name]
	if len(vals) == 0 {
		return nil, false
	}
	return vals[0], true
}

// Has reports whether the attribute carries at least one value.
func (a *Attrs) Has(name string) bool {
	return len(a.vals[name]) > 0
}

// Contains reports whether the attribute carries a value equal to v.
func (a *Attrs) Contains(name string, v Value) bool {
	for _, have := range a.vals[name] {
		if Equal(have, v) {
			return true
		}
	}
	return false
}

// Names returns attribute names in first-addition order.
func (a *Attrs) Names() []string {
	out := make([]string, 0, len(a.names))
	for _, n := range a.names {
		if len(a.vals[n]) > 0 {
			out = append(out, n)
		}
	}
	return out
}

// Len returns the number of attributes with at least one value.
func (a *Attrs) Len() int {
	return len(a.Names())
}

// Clone returns a deep copy.
func (a *Attrs) Clone() *Attrs {
	c := NewAttrs()
	for _, n := range a.Names() {
		c.Add(n, a.vals[n]...)
	}
	return c
}

// Int returns the first value of the attribute if it is an Int.
func (a *Attrs) Int(name string) (int64, bool) {
	v, ok := a.First(name)
	if !ok {
		return 0, false
	}
	n, ok := v.(Int)
	return int64(n), ok
}

// Str returns the first value of the attribute if it is a String.
func (a *Attrs) Str(name string) (string, bool) {
	v, ok := a.First(name)
	if !ok {
		return "", false
	}
	s, ok := v.(String)
	return string(s), ok
}

// Validate checks that every attribute name is well formed.
func (a *Attrs) Validate() error {
	for _, n := range a.Names() {
		if !ValidName(n) {
			return fmt.Errorf("invalid attribute name %q", n)
		}
	}
	return nil
}

// String renders the set as [name: v1, v2; name: v].
func (a *Attrs) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, n := range a.Names() {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(n)
		b.WriteString(": ")
		for j, v := range a.vals[n] {
			if j > 0 {
				b.WriteString(", ")
			}
			if v.Kind() == KindString {
				fmt.Fprintf(&b, "%q", v.Text())
			} else {
				b.WriteString(v.Text())
			}
		}
	}
	b.WriteByte(']')
	return b.String()
}
