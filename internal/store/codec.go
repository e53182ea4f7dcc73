package store

import (
	"database/sql"
	"fmt"

	"github.com/roach88/factbase/internal/fact"
)

// row is the column form of one attribute value.
type row struct {
	kind sql.NullString
	str  sql.NullString
	num  sql.NullInt64
	flt  sql.NullFloat64
}

func encode(v fact.Value) (row, error) {
	r := row{kind: sql.NullString{Valid: true}}
	switch val := v.(type) {
	case fact.String:
		r.kind.String = fact.KindString.Code()
		r.str = sql.NullString{String: string(val), Valid: true}
	case fact.Int:
		r.kind.String = fact.KindInt.Code()
		r.num = sql.NullInt64{Int64: int64(val), Valid: true}
	case fact.Float:
		r.kind.String = fact.KindFloat.Code()
		r.flt = sql.NullFloat64{Float64: float64(val), Valid: true}
	case fact.Time:
		r.kind.String = fact.KindTime.Code()
		r.num = sql.NullInt64{Int64: val.Unix(), Valid: true}
		r.str = sql.NullString{String: val.Text(), Valid: true}
	case nil:
		return r, fmt.Errorf("nil value")
	default:
		return r, fmt.Errorf("unsupported value type %T", v)
	}
	return r, nil
}

func (r row) decode() (fact.Value, error) {
	if !r.kind.Valid {
		return nil, fmt.Errorf("missing kind")
	}
	kind, err := fact.KindFromCode(r.kind.String)
	if err != nil {
		return nil, err
	}
	switch kind {
	case fact.KindString:
		return fact.String(r.str.String), nil
	case fact.KindInt:
		return fact.I(r.num.Int64), nil
	case fact.KindFloat:
		return fact.F(r.flt.Float64), nil
	default:
		return fact.Unix(r.num.Int64), nil
	}
}
