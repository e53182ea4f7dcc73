package pred

import (
	"strings"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"

	"github.com/roach88/factbase/internal/fact"
)

func goldenPredicates() []Predicate {
	when := fact.T(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	return []Predicate{
		And{Predicates: []Predicate{
			EqS("what", "issue-was-opened"),
			Gt{Attr: "issue", Term: P("before")},
			Absent{Attr: "seen"},
		}},
		EqS("title", `it's "quoted" \ here`),
		Or{Predicates: []Predicate{
			EqI("n", -3),
			EqV("x", fact.F(2)),
			Lt{Attr: "when", Term: V(when)},
		}},
		Not{Predicate: Exists{Attr: "details"}},
		Always{},
		And{},
		EqV("ratio", fact.F(0.125)),
	}
}

func TestFormat_Golden(t *testing.T) {
	var lines []string
	for _, p := range goldenPredicates() {
		lines = append(lines, Format(p))
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "format", []byte(strings.Join(lines, "\n")+"\n"))
}

func TestQuote_EscapesBothQuotes(t *testing.T) {
	assert.Equal(t, `'a\'b\"c\\d'`, Quote(`a'b"c\d`))
	assert.Equal(t, `''`, Quote(""))
}

func TestFormatValue_FloatAlwaysLooksLikeFloat(t *testing.T) {
	assert.Equal(t, "3.0", FormatValue(fact.F(3)))
	assert.Equal(t, "3", FormatValue(fact.I(3)))
	assert.Equal(t, "1e+21", FormatValue(fact.F(1e21)))
}

func TestString_UsesFormat(t *testing.T) {
	p := EqS("what", "x")
	assert.Equal(t, "(eq what 'x')", p.String())
}

func TestAllOf(t *testing.T) {
	a := EqS("a", "1")
	b := Exists{Attr: "b"}

	assert.Equal(t, Always{}, AllOf())
	assert.Equal(t, Always{}, AllOf(Always{}, nil))
	assert.Equal(t, a, AllOf(a, Always{}))
	assert.Equal(t, And{Predicates: []Predicate{a, b}}, AllOf(And{Predicates: []Predicate{a}}, b))
}
