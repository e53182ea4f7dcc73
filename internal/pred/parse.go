package pred

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/roach88/factbase/internal/fact"
)

// ParseError reports malformed predicate text.
type ParseError struct {
	Pos     int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("predicate: at %d: %s", e.Pos, e.Message)
}

var (
	intPattern   = regexp.MustCompile(`^-?[0-9]+$`)
	floatPattern = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?([eE][-+]?[0-9]+)?$`)
	timePattern  = regexp.MustCompile(`^[0-9]{4}-[0-9]{2}-[0-9]{2}T`)
)

type tokenKind int

const (
	tokOpen tokenKind = iota
	tokClose
	tokQuoted
	tokBare
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// Parse reads the text form produced by Format.
func Parse(s string) (Predicate, error) {
	toks, err := tokenize(s)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	pr, err := p.predicate()
	if err != nil {
		return nil, err
	}
	if p.i < len(p.toks) {
		return nil, &ParseError{Pos: p.toks[p.i].pos, Message: "trailing input"}
	}
	return pr, nil
}

// MustParse is Parse for predicates known at compile time. It panics on error.
func MustParse(s string) Predicate {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

func tokenize(s string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '(':
			toks = append(toks, token{kind: tokOpen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokClose, text: ")", pos: i})
			i++
		case c == '\'' || c == '"':
			start := i
			var b strings.Builder
			i++
			closed := false
			for i < len(s) {
				ch := s[i]
				if ch == c {
					closed = true
					i++
					break
				}
				if ch == '\\' && i+1 < len(s) {
					i++
				}
				r, size := utf8.DecodeRuneInString(s[i:])
				if r == utf8.RuneError && size == 1 {
					return nil, &ParseError{Pos: i, Message: "invalid UTF-8 in string"}
				}
				b.WriteString(s[i : i+size])
				i += size
			}
			if !closed {
				return nil, &ParseError{Pos: start, Message: "unterminated string"}
			}
			toks = append(toks, token{kind: tokQuoted, text: b.String(), pos: start})
		default:
			start := i
			for i < len(s) && !strings.ContainsRune(" \t\n\r()'\"", rune(s[i])) {
				i++
			}
			toks = append(toks, token{kind: tokBare, text: s[start:i], pos: start})
		}
	}
	return toks, nil
}

type parser struct {
	toks []token
	i    int
}

func (p *parser) next() (token, error) {
	if p.i >= len(p.toks) {
		return token{}, &ParseError{Pos: p.end(), Message: "unexpected end of input"}
	}
	t := p.toks[p.i]
	p.i++
	return t, nil
}

func (p *parser) end() int {
	if len(p.toks) == 0 {
		return 0
	}
	last := p.toks[len(p.toks)-1]
	return last.pos + len(last.text)
}

func (p *parser) expect(kind tokenKind, what string) (token, error) {
	t, err := p.next()
	if err != nil {
		return t, err
	}
	if t.kind != kind {
		return t, &ParseError{Pos: t.pos, Message: fmt.Sprintf("expected %s, got %q", what, t.text)}
	}
	return t, nil
}

func (p *parser) predicate() (Predicate, error) {
	if _, err := p.expect(tokOpen, "'('"); err != nil {
		return nil, err
	}
	op, err := p.expect(tokBare, "operator")
	if err != nil {
		return nil, err
	}
	var out Predicate
	switch op.text {
	case "and", "or":
		var ps []Predicate
		for p.i < len(p.toks) && p.toks[p.i].kind == tokOpen {
			sub, err := p.predicate()
			if err != nil {
				return nil, err
			}
			ps = append(ps, sub)
		}
		if op.text == "and" {
			out = And{Predicates: ps}
		} else {
			out = Or{Predicates: ps}
		}
	case "not":
		sub, err := p.predicate()
		if err != nil {
			return nil, err
		}
		out = Not{Predicate: sub}
	case "eq", "gt", "lt":
		attr, err := p.attr()
		if err != nil {
			return nil, err
		}
		term, err := p.term()
		if err != nil {
			return nil, err
		}
		switch op.text {
		case "eq":
			out = Eq{Attr: attr, Term: term}
		case "gt":
			out = Gt{Attr: attr, Term: term}
		default:
			out = Lt{Attr: attr, Term: term}
		}
	case "exists", "absent":
		attr, err := p.attr()
		if err != nil {
			return nil, err
		}
		if op.text == "exists" {
			out = Exists{Attr: attr}
		} else {
			out = Absent{Attr: attr}
		}
	case "always":
		out = Always{}
	default:
		return nil, &ParseError{Pos: op.pos, Message: fmt.Sprintf("unknown operator %q", op.text)}
	}
	if _, err := p.expect(tokClose, "')'"); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *parser) attr() (string, error) {
	t, err := p.expect(tokBare, "attribute name")
	if err != nil {
		return "", err
	}
	if !fact.ValidName(t.text) {
		return "", &ParseError{Pos: t.pos, Message: fmt.Sprintf("invalid attribute name %q", t.text)}
	}
	return t.text, nil
}

func (p *parser) term() (Term, error) {
	t, err := p.next()
	if err != nil {
		return nil, err
	}
	switch t.kind {
	case tokQuoted:
		return V(fact.S(t.text)), nil
	case tokBare:
		return bareTerm(t)
	default:
		return nil, &ParseError{Pos: t.pos, Message: fmt.Sprintf("expected term, got %q", t.text)}
	}
}

func bareTerm(t token) (Term, error) {
	s := t.text
	switch {
	case strings.HasPrefix(s, "$"):
		name := s[1:]
		if !fact.ValidName(name) {
			return nil, &ParseError{Pos: t.pos, Message: fmt.Sprintf("invalid placeholder %q", s)}
		}
		return P(name), nil
	case intPattern.MatchString(s):
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, &ParseError{Pos: t.pos, Message: fmt.Sprintf("integer out of range: %s", s)}
		}
		return V(fact.I(n)), nil
	case floatPattern.MatchString(s):
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, &ParseError{Pos: t.pos, Message: fmt.Sprintf("bad float: %s", s)}
		}
		return V(fact.F(f)), nil
	case timePattern.MatchString(s):
		v, err := fact.ParseTime(s)
		if err != nil {
			return nil, &ParseError{Pos: t.pos, Message: err.Error()}
		}
		return V(v), nil
	default:
		return nil, &ParseError{Pos: t.pos, Message: fmt.Sprintf("unquoted string %q", s)}
	}
}
