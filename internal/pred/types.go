package pred

import "github.com/roach88/factbase/internal/fact"

// Predicate is a condition over the attributes of one fact.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - And, Or, Not: boolean composition
//   - Eq, Gt, Lt: compare some value of an attribute with a term
//   - Exists, Absent: attribute presence
//   - Always: matches every fact
type Predicate interface {
	predicateNode()
	String() string
}

// Term is the right-hand side of a comparison: a literal or a placeholder.
type Term interface {
	termNode()
}

// Lit is a literal value term.
type Lit struct {
	Value fact.Value
}

func (Lit) termNode() {}

// Param is a $name placeholder, replaced by Bind.
type Param string

func (Param) termNode() {}

// V wraps a value as a literal term.
func V(v fact.Value) Term { return Lit{Value: v} }

// P builds a placeholder term.
func P(name string) Term { return Param(name) }

// And matches when all predicates match. An empty And matches everything.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}
func (p And) String() string { return Format(p) }

// Or matches when any predicate matches. An empty Or is invalid.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}
func (p Or) String() string { return Format(p) }

// Not negates a predicate.
type Not struct {
	Predicate Predicate
}

func (Not) predicateNode() {}
func (p Not) String() string { return Format(p) }

// Eq matches when some value of Attr equals the term.
//
// Strings compare as exact text, timestamps at second precision, and
// numbers by kind and value: Int 5 does not equal Float 5.0.
type Eq struct {
	Attr string
	Term Term
}

func (Eq) predicateNode() {}
func (p Eq) String() string { return Format(p) }

// Gt matches when some value of Attr is greater than the term.
type Gt struct {
	Attr string
	Term Term
}

func (Gt) predicateNode() {}
func (p Gt) String() string { return Format(p) }

// Lt matches when some value of Attr is less than the term.
type Lt struct {
	Attr string
	Term Term
}

func (Lt) predicateNode() {}
func (p Lt) String() string { return Format(p) }

// Exists matches when Attr has at least one value.
type Exists struct {
	Attr string
}

func (Exists) predicateNode() {}
func (p Exists) String() string { return Format(p) }

// Absent matches when Attr has no value.
type Absent struct {
	Attr string
}

func (Absent) predicateNode() {}
func (p Absent) String() string { return Format(p) }

// Always matches every fact.
type Always struct{}

func (Always) predicateNode() {}
func (p Always) String() string { return Format(p) }

// EqS is Eq against a string literal.
func EqS(attr, s string) Eq { return Eq{Attr: attr, Term: V(fact.S(s))} }

// EqI is Eq against an integer literal.
func EqI(attr string, n int64) Eq { return Eq{Attr: attr, Term: V(fact.I(n))} }

// EqV is Eq against any literal value.
func EqV(attr string, v fact.Value) Eq { return Eq{Attr: attr, Term: V(v)} }

// AllOf conjoins predicates, flattening nested Ands and dropping Always.
// It returns Always when nothing remains and the single predicate when
// only one does.
func AllOf(ps ...Predicate) Predicate {
	var out []Predicate
	for _, p := range ps {
		switch q := p.(type) {
		case nil, Always:
			continue
		case And:
			for _, sub := range q.Predicates {
				if sub == nil {
					continue
				}
				if _, ok := sub.(Always); ok {
					continue
				}
				out = append(out, sub)
			}
		default:
			out = append(out, p)
		}
	}
	switch len(out) {
	case 0:
		return Always{}
	case 1:
		return out[0]
	default:
		return And{Predicates: out}
	}
}
