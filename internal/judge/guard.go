package judge

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/factbase/internal/fact"
	"github.com/roach88/factbase/internal/pred"
	"github.com/roach88/factbase/internal/store"
)

// ErrEmptyProbe is returned by UpsertIfAbsent when the probe sets no
// attributes besides bookkeeping ones; its match would be every fact.
var ErrEmptyProbe = errors.New("probe sets no attributes")

// Probe fills the attributes of a candidate fact.
type Probe func(a *fact.Attrs) error

// ExactMatch builds the predicate selecting facts that carry every value
// of a, ignoring bookkeeping attributes. It returns nil when nothing is
// left to match.
func ExactMatch(a *fact.Attrs) pred.Predicate {
	var ps []pred.Predicate
	for _, name := range a.Names() {
		if fact.IsBookkeeping(name) {
			continue
		}
		for _, v := range a.Get(name) {
			ps = append(ps, pred.EqV(name, v))
		}
	}
	if len(ps) == 0 {
		return nil
	}
	return pred.And{Predicates: ps}
}

// UpsertIfAbsent inserts a fact with the attributes set by probe unless a
// fact carrying all of them already exists. It returns the new fact, or
// nil when a match was found.
//
// Matching ignores _id, _time, _version and _job. Strings compare as exact
// text and timestamps at second precision. All work goes through tx.
func (rt *Runtime) UpsertIfAbsent(ctx context.Context, tx store.Facts, probe Probe) (*fact.Fact, error) {
	a := fact.NewAttrs()
	if err := probe(a); err != nil {
		return nil, fmt.Errorf("upsert: probe: %w", err)
	}
	if err := a.Validate(); err != nil {
		return nil, fmt.Errorf("upsert: %w", err)
	}

	match := ExactMatch(a)
	if match == nil {
		return nil, fmt.Errorf("upsert: %w", ErrEmptyProbe)
	}

	found, err := tx.Query(ctx, match)
	if err != nil {
		return nil, fmt.Errorf("upsert: %w", err)
	}
	if len(found) > 0 {
		rt.logger.Debug("fact already exists", "id", found[0].ID(), "match", pred.Format(match))
		return nil, nil
	}

	f, err := tx.Insert(ctx)
	if err != nil {
		return nil, fmt.Errorf("upsert: %w", err)
	}
	for _, name := range a.Names() {
		if name == fact.AttrID || name == fact.AttrTime {
			continue
		}
		if err := f.Add(ctx, name, a.Get(name)...); err != nil {
			return nil, fmt.Errorf("upsert: %w", err)
		}
	}
	if err := rt.stamp(ctx, f); err != nil {
		return nil, fmt.Errorf("upsert: %w", err)
	}
	rt.logger.Debug("fact inserted", "id", f.ID(), "fact", f.String())
	return f, nil
}
