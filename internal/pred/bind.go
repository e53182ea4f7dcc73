package pred

import (
	"fmt"
	"sort"

	"github.com/roach88/factbase/internal/fact"
)

// UnboundError is returned by Bind when a placeholder has no value.
type UnboundError struct {
	Name string
}

func (e *UnboundError) Error() string {
	return fmt.Sprintf("predicate: placeholder $%s is not bound", e.Name)
}

// Bind replaces every $name placeholder with the value bound to name.
// Unused bindings are ignored; a placeholder without a binding is an error.
// The input predicate is not modified.
func Bind(p Predicate, values map[string]fact.Value) (Predicate, error) {
	switch q := p.(type) {
	case And:
		ps, err := bindAll(q.Predicates, values)
		if err != nil {
			return nil, err
		}
		return And{Predicates: ps}, nil
	case Or:
		ps, err := bindAll(q.Predicates, values)
		if err != nil {
			return nil, err
		}
		return Or{Predicates: ps}, nil
	case Not:
		sub, err := Bind(q.Predicate, values)
		if err != nil {
			return nil, err
		}
		return Not{Predicate: sub}, nil
	case Eq:
		t, err := bindTerm(q.Term, values)
		if err != nil {
			return nil, err
		}
		return Eq{Attr: q.Attr, Term: t}, nil
	case Gt:
		t, err := bindTerm(q.Term, values)
		if err != nil {
			return nil, err
		}
		return Gt{Attr: q.Attr, Term: t}, nil
	case Lt:
		t, err := bindTerm(q.Term, values)
		if err != nil {
			return nil, err
		}
		return Lt{Attr: q.Attr, Term: t}, nil
	default:
		return p, nil
	}
}

func bindAll(ps []Predicate, values map[string]fact.Value) ([]Predicate, error) {
	out := make([]Predicate, len(ps))
	for i, p := range ps {
		b, err := Bind(p, values)
		if err != nil {
			return nil, err
		}
		out[i] = b
	}
	return out, nil
}

func bindTerm(t Term, values map[string]fact.Value) (Term, error) {
	param, ok := t.(Param)
	if !ok {
		return t, nil
	}
	v, ok := values[string(param)]
	if !ok || v == nil {
		return nil, &UnboundError{Name: string(param)}
	}
	return V(v), nil
}

// Params returns the sorted, de-duplicated placeholder names in p.
func Params(p Predicate) []string {
	seen := map[string]bool{}
	collectParams(p, seen)
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func collectParams(p Predicate, seen map[string]bool) {
	var t Term
	switch q := p.(type) {
	case And:
		for _, sub := range q.Predicates {
			collectParams(sub, seen)
		}
	case Or:
		for _, sub := range q.Predicates {
			collectParams(sub, seen)
		}
	case Not:
		collectParams(q.Predicate, seen)
	case Eq:
		t = q.Term
	case Gt:
		t = q.Term
	case Lt:
		t = q.Term
	}
	if param, ok := t.(Param); ok {
		seen[string(param)] = true
	}
}
