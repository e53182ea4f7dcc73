// Package predsql compiles predicates to parameterized SQL over the
// entity-attribute-value schema of the fact store.
//
// Every attribute test becomes an EXISTS subquery on attrs correlated with
// the outer facts row. Values are always bound as ? parameters. Every SELECT
// is ordered by fact id so results are deterministic.
package predsql

import (
	"fmt"
	"strings"

	"github.com/roach88/factbase/internal/fact"
	"github.com/roach88/factbase/internal/pred"
)

// Compiler compiles predicates to SQL for SQLite.
type Compiler struct {
	// Params resolves $name placeholders still present in a predicate.
	// A placeholder with no entry is an *pred.UnboundError.
	Params map[string]fact.Value
}

// NewCompiler creates a Compiler with no placeholder values.
func NewCompiler() *Compiler {
	return &Compiler{Params: make(map[string]fact.Value)}
}

// SelectIDs returns a query selecting the ids of matching facts in
// ascending order.
func (c *Compiler) SelectIDs(p pred.Predicate) (string, []any, error) {
	where, params, err := c.Where(p)
	if err != nil {
		return "", nil, err
	}
	return "SELECT f.id FROM facts f WHERE " + where + " ORDER BY f.id ASC", params, nil
}

// DeleteMatching returns a statement deleting every matching fact.
func (c *Compiler) DeleteMatching(p pred.Predicate) (string, []any, error) {
	where, params, err := c.Where(p)
	if err != nil {
		return "", nil, err
	}
	return "DELETE FROM facts WHERE id IN (SELECT f.id FROM facts f WHERE " + where + ")", params, nil
}

// Where compiles p to a boolean SQL expression over the alias f.
func (c *Compiler) Where(p pred.Predicate) (string, []any, error) {
	if p == nil {
		return "", nil, fmt.Errorf("compile: nil predicate")
	}
	switch q := p.(type) {
	case pred.Always:
		return "1 = 1", nil, nil
	case pred.And:
		return c.compileList(q.Predicates, " AND ", "1 = 1")
	case pred.Or:
		if len(q.Predicates) == 0 {
			return "", nil, fmt.Errorf("compile: empty or")
		}
		return c.compileList(q.Predicates, " OR ", "")
	case pred.Not:
		sql, params, err := c.Where(q.Predicate)
		if err != nil {
			return "", nil, err
		}
		return "NOT (" + sql + ")", params, nil
	case pred.Exists:
		if err := checkAttr(q.Attr); err != nil {
			return "", nil, err
		}
		return "EXISTS (SELECT 1 FROM attrs a WHERE a.fact_id = f.id AND a.name = ?)", []any{q.Attr}, nil
	case pred.Absent:
		if err := checkAttr(q.Attr); err != nil {
			return "", nil, err
		}
		return "NOT EXISTS (SELECT 1 FROM attrs a WHERE a.fact_id = f.id AND a.name = ?)", []any{q.Attr}, nil
	case pred.Eq:
		return c.compileCompare(q.Attr, "=", q.Term)
	case pred.Gt:
		return c.compileCompare(q.Attr, ">", q.Term)
	case pred.Lt:
		return c.compileCompare(q.Attr, "<", q.Term)
	default:
		return "", nil, fmt.Errorf("compile: unsupported predicate type %T", p)
	}
}

func (c *Compiler) compileList(ps []pred.Predicate, sep, empty string) (string, []any, error) {
	if len(ps) == 0 {
		return empty, nil, nil
	}
	parts := make([]string, 0, len(ps))
	var params []any
	for _, p := range ps {
		sql, sub, err := c.Where(p)
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		params = append(params, sub...)
	}
	if len(parts) == 1 {
		return parts[0], params, nil
	}
	return "(" + strings.Join(parts, sep) + ")", params, nil
}

// compileCompare emits an EXISTS over the attribute's values. The column
// and kind filter depend on the literal: strings compare text, times
// compare unix seconds. Equality on numbers is kind-exact; ordering
// compares int and float values numerically.
func (c *Compiler) compileCompare(attr, op string, t pred.Term) (string, []any, error) {
	if err := checkAttr(attr); err != nil {
		return "", nil, err
	}
	v, err := c.resolve(t)
	if err != nil {
		return "", nil, err
	}
	var cond string
	var arg any
	switch val := v.(type) {
	case fact.String:
		cond = "a.kind = 's' AND a.str " + op + " ? COLLATE BINARY"
		arg = string(val)
	case fact.Int:
		cond = "a.kind IN ('i', 'f') AND COALESCE(a.num, a.flt) " + op + " ?"
		if op == "=" {
			cond = "a.kind = 'i' AND a.num = ?"
		}
		arg = int64(val)
	case fact.Float:
		cond = "a.kind IN ('i', 'f') AND COALESCE(a.num, a.flt) " + op + " ?"
		if op == "=" {
			cond = "a.kind = 'f' AND a.flt = ?"
		}
		arg = float64(val)
	case fact.Time:
		cond = "a.kind = 't' AND a.num " + op + " ?"
		arg = val.Unix()
	default:
		return "", nil, fmt.Errorf("compile: %s: unsupported value %T", attr, v)
	}
	sql := "EXISTS (SELECT 1 FROM attrs a WHERE a.fact_id = f.id AND a.name = ? AND " + cond + ")"
	return sql, []any{attr, arg}, nil
}

func (c *Compiler) resolve(t pred.Term) (fact.Value, error) {
	switch term := t.(type) {
	case pred.Lit:
		if term.Value == nil {
			return nil, fmt.Errorf("compile: literal without value")
		}
		return term.Value, nil
	case pred.Param:
		v, ok := c.Params[string(term)]
		if !ok || v == nil {
			return nil, &pred.UnboundError{Name: string(term)}
		}
		return v, nil
	default:
		return nil, fmt.Errorf("compile: missing term")
	}
}

func checkAttr(name string) error {
	if !fact.ValidName(name) {
		return fmt.Errorf("compile: invalid attribute name %q", name)
	}
	return nil
}
