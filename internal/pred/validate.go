package pred

import (
	"errors"
	"fmt"

	"github.com/roach88/factbase/internal/fact"
)

// Validate checks that a predicate is structurally sound: no nil nodes,
// well-formed attribute names, no empty Or, and literal terms carrying a
// value. Placeholders are allowed; use Params to find them.
//
// All problems are reported, joined with errors.Join.
func Validate(p Predicate) error {
	v := &validator{}
	v.validate(p)
	return errors.Join(v.errs...)
}

// validator accumulates problems during traversal.
type validator struct {
	errs []error
}

func (v *validator) add(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) validate(p Predicate) {
	switch q := p.(type) {
	case nil:
		v.add("nil predicate")
	case And:
		for _, sub := range q.Predicates {
			v.validate(sub)
		}
	case Or:
		if len(q.Predicates) == 0 {
			v.add("empty or matches nothing")
		}
		for _, sub := range q.Predicates {
			v.validate(sub)
		}
	case Not:
		v.validate(q.Predicate)
	case Eq:
		v.compare("eq", q.Attr, q.Term)
	case Gt:
		v.compare("gt", q.Attr, q.Term)
	case Lt:
		v.compare("lt", q.Attr, q.Term)
	case Exists:
		v.attr("exists", q.Attr)
	case Absent:
		v.attr("absent", q.Attr)
	case Always:
	default:
		v.add("unknown predicate type %T", p)
	}
}

func (v *validator) attr(op, name string) {
	if !fact.ValidName(name) {
		v.add("%s: invalid attribute name %q", op, name)
	}
}

func (v *validator) compare(op, attr string, t Term) {
	v.attr(op, attr)
	switch term := t.(type) {
	case Lit:
		if term.Value == nil {
			v.add("%s %s: literal without value", op, attr)
		}
	case Param:
		if !fact.ValidName(string(term)) {
			v.add("%s %s: invalid placeholder $%s", op, attr, string(term))
		}
	default:
		v.add("%s %s: missing term", op, attr)
	}
}
