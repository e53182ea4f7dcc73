package pred

import (
	"fmt"
	"strings"

	"github.com/roach88/factbase/internal/fact"
)

// Format renders the canonical text form of a predicate.
//
// This is the only place where literals are quoted. Inside string
// literals backslashes, single quotes and double quotes are escaped with a
// backslash. Format is a pure function.
func Format(p Predicate) string {
	var b strings.Builder
	writePredicate(&b, p)
	return b.String()
}

func writePredicate(b *strings.Builder, p Predicate) {
	switch q := p.(type) {
	case nil:
		b.WriteString("(nil)")
	case And:
		writeList(b, "and", q.Predicates)
	case Or:
		writeList(b, "or", q.Predicates)
	case Not:
		b.WriteString("(not ")
		writePredicate(b, q.Predicate)
		b.WriteByte(')')
	case Eq:
		writeCompare(b, "eq", q.Attr, q.Term)
	case Gt:
		writeCompare(b, "gt", q.Attr, q.Term)
	case Lt:
		writeCompare(b, "lt", q.Attr, q.Term)
	case Exists:
		fmt.Fprintf(b, "(exists %s)", q.Attr)
	case Absent:
		fmt.Fprintf(b, "(absent %s)", q.Attr)
	case Always:
		b.WriteString("(always)")
	default:
		fmt.Fprintf(b, "(unknown %T)", p)
	}
}

func writeList(b *strings.Builder, op string, ps []Predicate) {
	b.WriteByte('(')
	b.WriteString(op)
	for _, p := range ps {
		b.WriteByte(' ')
		writePredicate(b, p)
	}
	b.WriteByte(')')
}

func writeCompare(b *strings.Builder, op, attr string, t Term) {
	fmt.Fprintf(b, "(%s %s ", op, attr)
	b.WriteString(FormatTerm(t))
	b.WriteByte(')')
}

// FormatTerm renders a single term.
func FormatTerm(t Term) string {
	switch term := t.(type) {
	case Param:
		return "$" + string(term)
	case Lit:
		return FormatValue(term.Value)
	default:
		return "nil"
	}
}

// FormatValue renders a literal value.
func FormatValue(v fact.Value) string {
	switch val := v.(type) {
	case fact.String:
		return Quote(string(val))
	case fact.Float:
		s := val.Text()
		if !strings.ContainsAny(s, ".eEnN") {
			s += ".0"
		}
		return s
	case nil:
		return "nil"
	default:
		return v.Text()
	}
}

// Quote wraps s in single quotes, backslash-escaping backslashes and both
// kinds of quotes.
func Quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\', '\'', '"':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('\'')
	return b.String()
}
