package judge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/factbase/internal/fact"
	"github.com/roach88/factbase/internal/pred"
	"github.com/roach88/factbase/internal/store"
)

// Mode selects what JoinOnce does with each tuple.
type Mode int

const (
	// Draw inserts a new fact per tuple. The fact is tagged what=<judge>
	// whether or not the callback set details, unless the callback set
	// what itself.
	Draw Mode = iota + 1
	// Maybe inserts a new fact per tuple unless an identical one exists.
	Maybe
	// Consider mutates the first fact of the tuple in place.
	Consider
)

func (m Mode) String() string {
	switch m {
	case Draw:
		return "draw"
	case Maybe:
		return "maybe"
	case Consider:
		return "consider"
	default:
		return "unknown"
	}
}

// ParseMode is the inverse of Mode.String.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "draw":
		return Draw, nil
	case "maybe":
		return Maybe, nil
	case "consider":
		return Consider, nil
	default:
		return 0, fmt.Errorf("unknown join mode %q", s)
	}
}

// Verdict is the control result of a tuple callback.
type Verdict int

const (
	// Continue keeps the tuple's work and marks it seen.
	Continue Verdict = iota
	// Skip discards the tuple's work and leaves it unseen, so the next
	// run retries it.
	Skip
	// Stop keeps the tuple's work, marks it seen, and ends the join.
	// Everything processed so far is committed.
	Stop
	// Rollback discards the whole join, including tuples already
	// processed. JoinOnce returns 0.
	Rollback
)

func (v Verdict) String() string {
	switch v {
	case Continue:
		return "continue"
	case Skip:
		return "skip"
	case Stop:
		return "stop"
	case Rollback:
		return "rollback"
	default:
		return "unknown"
	}
}

// AttrDetails holds the explanation a callback attaches to its result.
const AttrDetails = "details"

// AttrWhat tags a fact with the judge or label that produced it.
const AttrWhat = "what"

// Cell is what a tuple callback works on.
type Cell struct {
	// Tx is the transactional view; every read and write goes through it.
	Tx store.Facts

	// Tuple holds one fact per query, in query order.
	Tuple []*fact.Fact

	// Attrs accumulates the attributes of the fact to create (Draw and
	// Maybe). Follow attributes are already present.
	Attrs *fact.Attrs

	// Target is the fact to mutate in place (Consider). It is Tuple[0].
	Target *fact.Fact

	details string
}

// SetDetails records the explanation stored as the details attribute.
func (c *Cell) SetDetails(s string) { c.details = s }

// Details returns the explanation set so far.
func (c *Cell) Details() string { return c.details }

// TupleFunc processes one tuple.
type TupleFunc func(ctx context.Context, c *Cell) (Verdict, error)

type follow struct {
	pos  int
	attr string
}

type joinConfig struct {
	threshold  int
	quotaAware bool
	follows    []string
}

// JoinOption configures JoinOnce.
type JoinOption func(*joinConfig)

// WithThreshold stops the join once n tuples have been processed.
func WithThreshold(n int) JoinOption {
	return func(c *joinConfig) { c.threshold = n }
}

// QuotaAware stops the join before a tuple when the runtime is off quota.
func QuotaAware() JoinOption {
	return func(c *joinConfig) { c.quotaAware = true }
}

// Follow copies attributes of tuple members onto the fact to create.
// "1.issue" is attribute issue of tuple member 1; a bare name reads
// member 0.
func Follow(attrs ...string) JoinOption {
	return func(c *joinConfig) { c.follows = append(c.follows, attrs...) }
}

func parseFollows(specs []string, n int) ([]follow, error) {
	out := make([]follow, 0, len(specs))
	for _, s := range specs {
		f := follow{attr: s}
		if i := strings.IndexByte(s, '.'); i >= 0 {
			pos, err := strconv.Atoi(s[:i])
			if err != nil || pos < 0 {
				return nil, configError("join", "bad follow %q", s)
			}
			f.pos, f.attr = pos, s[i+1:]
		}
		if f.pos >= n {
			return nil, configError("join", "follow %q: position beyond %d queries", s, n)
		}
		if !fact.ValidName(f.attr) {
			return nil, configError("join", "follow %q: invalid attribute name", s)
		}
		out = append(out, f)
	}
	return out, nil
}

// errAbortJoin carries a Rollback verdict out of the tuple savepoint.
var errAbortJoin = errors.New("join rolled back by callback")

// JoinOnce runs fn over every tuple of the N-way join of queries whose
// members are all unseen by this judge, and returns how many tuples it
// processed.
//
// Tuples are enumerated in query order with the leftmost query varying
// slowest; facts within a query are in id order. The whole scan runs in
// one transaction and each tuple in a savepoint of it. For each tuple:
// the quota check (when QuotaAware) and the threshold check may stop the
// join; then fn runs per mode; then every member is tagged seen=judge,
// whether or not fn changed anything. A tuple containing a fact tagged
// earlier in the same run no longer qualifies and is passed over.
//
// An error from fn or the store aborts the transaction and is returned.
func (rt *Runtime) JoinOnce(ctx context.Context, queries []pred.Predicate, mode Mode, fn TupleFunc, opts ...JoinOption) (int, error) {
	cfg := joinConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if len(queries) == 0 {
		return 0, configError("join", "no queries")
	}
	if mode < Draw || mode > Consider {
		return 0, configError("join", "unknown mode %d", mode)
	}
	if fn == nil {
		return 0, configError("join", "nil callback")
	}
	follows, err := parseFollows(cfg.follows, len(queries))
	if err != nil {
		return 0, err
	}

	var count int
	var stopped string
	err = rt.facts.Txn(ctx, func(tx store.Facts) error {
		count, stopped = 0, ""
		lists := make([][]*fact.Fact, len(queries))
		for i, q := range FilterUnseenTuples(queries, rt.judge) {
			found, err := tx.Query(ctx, q)
			if err != nil {
				return fmt.Errorf("join query %d: %w", i, err)
			}
			if len(found) == 0 {
				return nil
			}
			lists[i] = found
		}

		tagged := make(map[int64]bool)
		idx := make([]int, len(lists))
		for {
			tuple := make([]*fact.Fact, len(lists))
			fresh := true
			for i, l := range lists {
				tuple[i] = l[idx[i]]
				if tagged[tuple[i].ID()] {
					fresh = false
				}
			}

			if fresh {
				if cfg.quotaAware && rt.OffQuota() {
					stopped = "quota"
					return nil
				}
				if cfg.threshold > 0 && count >= cfg.threshold {
					stopped = "threshold"
					return nil
				}

				verdict, err := rt.joinTuple(ctx, tx, tuple, mode, fn, follows)
				if err != nil {
					if errors.Is(err, errAbortJoin) {
						stopped = "rollback"
						return store.ErrRollback
					}
					return err
				}
				if verdict != Skip {
					for _, f := range tuple {
						tagged[f.ID()] = true
					}
					count++
					rt.spend()
					rt.metrics.tuple(rt.judge, mode)
				}
				if verdict == Stop {
					stopped = "callback"
					return nil
				}
			}

			if !advance(idx, lists) {
				return nil
			}
		}
	})
	if err != nil {
		return 0, fmt.Errorf("join once: %w", err)
	}
	if stopped == "rollback" {
		count = 0
	}

	rt.logger.Info("join finished",
		"mode", mode.String(),
		"queries", len(queries),
		"processed", count,
		"stopped", stopped)
	return count, nil
}

// advance steps idx like an odometer, rightmost position fastest. It
// returns false after the last combination.
func advance(idx []int, lists [][]*fact.Fact) bool {
	for i := len(idx) - 1; i >= 0; i-- {
		idx[i]++
		if idx[i] < len(lists[i]) {
			return true
		}
		idx[i] = 0
	}
	return false
}

// joinTuple processes one tuple inside a savepoint. Member handles are
// copied onto the savepoint view so a Skip leaves no trace in memory or
// in the store.
func (rt *Runtime) joinTuple(ctx context.Context, tx store.Facts, members []*fact.Fact, mode Mode, fn TupleFunc, follows []follow) (Verdict, error) {
	var verdict Verdict
	err := tx.Txn(ctx, func(sp store.Facts) error {
		tuple := make([]*fact.Fact, len(members))
		for i, m := range members {
			tuple[i] = fact.New(m.ID(), m.Attrs(), sp)
		}

		c := &Cell{Tx: sp, Tuple: tuple}
		if mode == Consider {
			c.Target = tuple[0]
		} else {
			c.Attrs = fact.NewAttrs()
			for _, f := range follows {
				c.Attrs.Add(f.attr, tuple[f.pos].Get(f.attr)...)
			}
		}

		v, err := fn(ctx, c)
		if err != nil {
			if errors.Is(err, store.ErrRollback) {
				verdict = Skip
			}
			return err
		}
		verdict = v
		switch v {
		case Skip:
			return store.ErrRollback
		case Rollback:
			return errAbortJoin
		case Continue, Stop:
		default:
			return fmt.Errorf("unknown verdict %d", v)
		}

		if err := rt.applyTuple(ctx, sp, c, mode); err != nil {
			return err
		}
		return MarkSeen(ctx, tuple, rt.judge)
	})
	return verdict, err
}

func (rt *Runtime) applyTuple(ctx context.Context, sp store.Facts, c *Cell, mode Mode) error {
	switch mode {
	case Consider:
		if c.details != "" {
			if err := c.Target.Add(ctx, AttrDetails, fact.S(c.details)); err != nil {
				return err
			}
		}
		return nil
	case Draw:
		rt.finishAttrs(c)
		f, err := sp.Insert(ctx)
		if err != nil {
			return err
		}
		if err := f.AddAll(ctx, c.Attrs); err != nil {
			return err
		}
		if err := rt.stamp(ctx, f); err != nil {
			return err
		}
		rt.logger.Debug("drawn", "id", f.ID(), "fact", f.String())
		return nil
	default:
		rt.finishAttrs(c)
		f, err := rt.UpsertIfAbsent(ctx, sp, func(a *fact.Attrs) error {
			for _, n := range c.Attrs.Names() {
				a.Add(n, c.Attrs.Get(n)...)
			}
			return nil
		})
		if err != nil {
			return err
		}
		if f == nil {
			rt.logger.Debug("maybe: identical fact exists", "tuple", tupleIDs(c.Tuple))
		}
		return nil
	}
}

func (rt *Runtime) finishAttrs(c *Cell) {
	if c.details != "" {
		c.Attrs.Set(AttrDetails, fact.S(c.details))
	}
	if !c.Attrs.Has(AttrWhat) {
		c.Attrs.Add(AttrWhat, fact.S(rt.judge))
	}
}

func tupleIDs(tuple []*fact.Fact) []int64 {
	ids := make([]int64, len(tuple))
	for i, f := range tuple {
		ids[i] = f.ID()
	}
	return ids
}
