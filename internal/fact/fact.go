package fact

import (
	"context"
	"errors"
	"fmt"
)

// Appender persists new values of an existing fact. The store's views
// implement it; a Fact writes through the view that produced it.
type Appender interface {
	Append(ctx context.Context, id int64, name string, vals ...Value) error
}

// ErrDetached is returned by Fact.Add on a fact that has no backing view.
var ErrDetached = errors.New("fact is not attached to a store")

// Fact is a handle on a stored fact. Reads are served from the values
// loaded with it; Add writes through and updates the local copy.
type Fact struct {
	id    int64
	attrs *Attrs
	w     Appender
}

// New creates a handle. attrs is owned by the handle after the call.
func New(id int64, attrs *Attrs, w Appender) *Fact {
	if attrs == nil {
		attrs = NewAttrs()
	}
	return &Fact{id: id, attrs: attrs, w: w}
}

// ID returns the store identifier of the fact.
func (f *Fact) ID() int64 { return f.id }

// Attrs returns a copy of the fact's attributes.
func (f *Fact) Attrs() *Attrs { return f.attrs.Clone() }

func (f *Fact) Get(name string) []Value { return f.attrs.Get(name) }
func (f *Fact) First(name string) (Value, bool) { return f.attrs.First(name) }
func (f *Fact) Has(name string) bool { return f.attrs.Has(name) }
func (f *Fact) Contains(name string, v Value) bool { return f.attrs.Contains(name, v) }
func (f *Fact) Names() []string { return f.attrs.Names() }
func (f *Fact) Int(name string) (int64, bool) { return f.attrs.Int(name) }
func (f *Fact) Str(name string) (string, bool) { return f.attrs.Str(name) }
func (f *Fact) String() string { return f.attrs.String() }

// Add appends values to the named attribute, persisting them first.
func (f *Fact) Add(ctx context.Context, name string, vals ...Value) error {
	if len(vals) == 0 {
		return nil
	}
	if f.w == nil {
		return ErrDetached
	}
	if !ValidName(name) {
		return fmt.Errorf("add %q to fact %d: invalid attribute name", name, f.id)
	}
	if err := f.w.Append(ctx, f.id, name, vals...); err != nil {
		return fmt.Errorf("add %q to fact %d: %w", name, f.id, err)
	}
	f.attrs.Add(name, vals...)
	return nil
}

// AddAll appends every attribute of attrs, in order.
func (f *Fact) AddAll(ctx context.Context, attrs *Attrs) error {
	for _, n := range attrs.Names() {
		if err := f.Add(ctx, n, attrs.Get(n)...); err != nil {
			return err
		}
	}
	return nil
}
