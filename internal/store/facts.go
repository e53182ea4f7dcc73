package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/factbase/internal/fact"
	"github.com/roach88/factbase/internal/pred"
	"github.com/roach88/factbase/internal/predsql"
)

// ErrRollback discards the mutations of a Txn block. It is swallowed at
// the block boundary: Txn returns nil.
var ErrRollback = errors.New("store: rollback")

// Facts is the fact store as seen by judges. It is implemented by *Store
// (autocommit) and by the view handed to a Txn callback.
type Facts interface {
	fact.Appender

	// Query returns the facts matching p, ordered by id ascending. The
	// result is fully read before Query returns.
	Query(ctx context.Context, p pred.Predicate) ([]*fact.Fact, error)

	// Insert creates a new fact carrying _id and _time.
	Insert(ctx context.Context) (*fact.Fact, error)

	// Delete removes the facts matching p and returns how many were removed.
	Delete(ctx context.Context, p pred.Predicate) (int, error)

	// Txn runs fn atomically. On the Store it is a transaction; on a
	// view it is a savepoint, so nested blocks roll back independently.
	// Returning ErrRollback (possibly wrapped) discards the block and Txn
	// returns nil. Any other error discards the block and is returned.
	Txn(ctx context.Context, fn func(Facts) error) error
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// view implements Facts over a querier. The root view wraps the database;
// transactional views wrap a *sql.Tx.
type view struct {
	s   *Store
	q   querier
	tx  *sql.Tx
	seq *int // savepoint counter shared by every view of one transaction
}

var _ Facts = (*view)(nil)
var _ Facts = (*Store)(nil)

func (v *view) Query(ctx context.Context, p pred.Predicate) ([]*fact.Fact, error) {
	ids, params, err := predsql.NewCompiler().SelectIDs(p)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	rows, err := v.q.QueryContext(ctx, `
		SELECT f.id, v.name, v.kind, v.str, v.num, v.flt
		FROM facts f LEFT JOIN attrs v ON v.fact_id = f.id
		WHERE f.id IN (`+ids+`)
		ORDER BY f.id ASC, v.id ASC
	`, params...)
	if err != nil {
		return nil, fmt.Errorf("query facts: %w", err)
	}
	defer rows.Close()

	facts := []*fact.Fact{}
	var cur *fact.Attrs
	var curID int64
	for rows.Next() {
		var (
			id   int64
			name sql.NullString
			r    row
		)
		if err := rows.Scan(&id, &name, &r.kind, &r.str, &r.num, &r.flt); err != nil {
			return nil, fmt.Errorf("scan fact: %w", err)
		}
		if cur == nil || id != curID {
			cur = fact.NewAttrs()
			curID = id
			facts = append(facts, fact.New(id, cur, v))
		}
		if !name.Valid {
			continue
		}
		val, err := r.decode()
		if err != nil {
			return nil, fmt.Errorf("fact %d attribute %q: %w", id, name.String, err)
		}
		cur.Add(name.String, val)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate facts: %w", err)
	}

	return facts, nil
}

func (v *view) Insert(ctx context.Context) (*fact.Fact, error) {
	var out *fact.Fact
	err := v.atomic(ctx, func(w *view) error {
		res, err := w.q.ExecContext(ctx, "INSERT INTO facts DEFAULT VALUES")
		if err != nil {
			return fmt.Errorf("insert fact: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("insert fact: %w", err)
		}
		now := fact.T(v.s.now())
		if err := w.Append(ctx, id, fact.AttrID, fact.I(id)); err != nil {
			return err
		}
		if err := w.Append(ctx, id, fact.AttrTime, now); err != nil {
			return err
		}
		attrs := fact.NewAttrs()
		attrs.Add(fact.AttrID, fact.I(id))
		attrs.Add(fact.AttrTime, now)
		// the handle writes through v: on the root view w is gone after commit
		out = fact.New(id, attrs, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (v *view) Delete(ctx context.Context, p pred.Predicate) (int, error) {
	stmt, params, err := predsql.NewCompiler().DeleteMatching(p)
	if err != nil {
		return 0, fmt.Errorf("delete: %w", err)
	}
	res, err := v.q.ExecContext(ctx, stmt, params...)
	if err != nil {
		return 0, fmt.Errorf("delete facts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete facts: %w", err)
	}
	return int(n), nil
}

func (v *view) Append(ctx context.Context, id int64, name string, vals ...fact.Value) error {
	if !fact.ValidName(name) {
		return fmt.Errorf("append: invalid attribute name %q", name)
	}
	for _, val := range vals {
		r, err := encode(val)
		if err != nil {
			return fmt.Errorf("append %q: %w", name, err)
		}
		_, err = v.q.ExecContext(ctx, `
			INSERT INTO attrs (fact_id, name, kind, str, num, flt)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id, name, r.kind, r.str, r.num, r.flt)
		if err != nil {
			return fmt.Errorf("append %q to fact %d: %w", name, id, err)
		}
	}
	return nil
}

func (v *view) Txn(ctx context.Context, fn func(Facts) error) error {
	if v.tx == nil {
		return v.begin(ctx, fn)
	}
	return v.savepoint(ctx, fn)
}

// atomic runs fn in the current transaction, or in a new one when v is
// the root view.
func (v *view) atomic(ctx context.Context, fn func(*view) error) error {
	if v.tx != nil {
		return fn(v)
	}
	return v.begin(ctx, func(f Facts) error {
		return fn(f.(*view))
	})
}

func (v *view) begin(ctx context.Context, fn func(Facts) error) error {
	tx, err := v.s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&view{s: v.s, q: tx, tx: tx, seq: new(int)}); err != nil {
		if errors.Is(err, ErrRollback) {
			return nil
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (v *view) savepoint(ctx context.Context, fn func(Facts) error) error {
	*v.seq++
	name := fmt.Sprintf("sp%d", *v.seq)

	if _, err := v.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}

	if err := fn(&view{s: v.s, q: v.tx, tx: v.tx, seq: v.seq}); err != nil {
		if _, rbErr := v.tx.ExecContext(ctx, "ROLLBACK TO "+name); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback to savepoint: %w", rbErr))
		}
		if _, relErr := v.tx.ExecContext(ctx, "RELEASE "+name); relErr != nil {
			return errors.Join(err, fmt.Errorf("release savepoint: %w", relErr))
		}
		if errors.Is(err, ErrRollback) {
			return nil
		}
		return err
	}

	if _, err := v.tx.ExecContext(ctx, "RELEASE "+name); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}
