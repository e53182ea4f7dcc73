package judge

import (
	"context"
	"fmt"

	"github.com/roach88/factbase/internal/fact"
	"github.com/roach88/factbase/internal/pred"
	"github.com/roach88/factbase/internal/store"
)

// DefaultPartitionAttr is the attribute identifying a cursor's partition.
const DefaultPartitionAttr = "repository"

// ParamBefore is the placeholder bound to the current cursor in By
// queries. The partition placeholder is named after the partition
// attribute ($repository by default).
const ParamBefore = "before"

// StepFunc processes the unit next of a partition and returns the new
// cursor value.
type StepFunc func(ctx context.Context, tx store.Facts, partition, next int64) (int64, error)

// Finder locates the next unit of a partition after cursor. ok is false
// when there is nothing to do.
type Finder func(ctx context.Context, tx store.Facts, partition, cursor int64) (next int64, ok bool, err error)

// PartitionFunc enumerates the partitions of a pass.
type PartitionFunc func(ctx context.Context) ([]int64, error)

// Iterator is a partitioned cursor scanner. Configure it with As, By (or
// ByFunc) and Over, each exactly once, then call Run.
//
// Misconfiguration is recorded as a *ConfigError when it happens and is
// returned by Err and by Run before any work is done.
type Iterator struct {
	rt *Runtime

	label    string
	labelSet bool
	finder   Finder
	finderOK bool
	step     StepFunc

	partitions    PartitionFunc
	partitionAttr string
	start         int64
	repeat        int

	errs []error
}

// IterateOption configures an Iterator.
type IterateOption func(*Iterator)

// Partitions sets the partition enumerator. Required.
func Partitions(fn PartitionFunc) IterateOption {
	return func(it *Iterator) { it.partitions = fn }
}

// PartitionAttr names the attribute holding the partition id on cursor
// facts and the matching placeholder in By queries.
// Default: DefaultPartitionAttr.
func PartitionAttr(name string) IterateOption {
	return func(it *Iterator) { it.partitionAttr = name }
}

// Start sets the cursor used when a partition has none, and the cursor a
// partition is reset to when no next unit exists. Default: 0.
func Start(v int64) IterateOption {
	return func(it *Iterator) { it.start = v }
}

// Repeat sets how many units each partition may process per pass.
// Default: 1.
func Repeat(n int) IterateOption {
	return func(it *Iterator) { it.repeat = n }
}

// Iterate creates an Iterator bound to the runtime.
func (rt *Runtime) Iterate(opts ...IterateOption) *Iterator {
	it := &Iterator{
		rt:            rt,
		partitionAttr: DefaultPartitionAttr,
		repeat:        1,
	}
	for _, opt := range opts {
		opt(it)
	}
	if !fact.ValidName(it.partitionAttr) {
		it.fail("invalid partition attribute %q", it.partitionAttr)
	}
	if it.repeat < 1 {
		it.fail("repeat must be positive, got %d", it.repeat)
	}
	return it
}

func (it *Iterator) fail(format string, args ...any) {
	it.errs = append(it.errs, configError("iterate", format, args...))
}

// As names the cursor: cursor facts carry what=label and store the
// cursor value in an attribute named label.
func (it *Iterator) As(label string) *Iterator {
	if it.labelSet {
		it.fail("as called twice (%q, then %q)", it.label, label)
		return it
	}
	if !fact.ValidName(label) {
		it.fail("label %q is not a valid attribute name", label)
	}
	it.label, it.labelSet = label, true
	return it
}

// By selects the next unit with a query. The query may use the partition
// placeholder and $before; the unit is the smallest integer value of attr
// among matching facts.
func (it *Iterator) By(p pred.Predicate, attr string) *Iterator {
	if err := pred.Validate(p); err != nil {
		it.fail("by: %v", err)
	}
	if !fact.ValidName(attr) {
		it.fail("by: invalid attribute name %q", attr)
	}
	return it.ByFunc(it.queryFinder(p, attr))
}

// ByFunc selects the next unit with a custom finder.
func (it *Iterator) ByFunc(f Finder) *Iterator {
	if it.finderOK {
		it.fail("by called twice")
		return it
	}
	if f == nil {
		it.fail("by: nil finder")
	}
	it.finder, it.finderOK = f, true
	return it
}

// Over sets the step callback.
func (it *Iterator) Over(step StepFunc) *Iterator {
	if it.step != nil {
		it.fail("over called twice")
		return it
	}
	if step == nil {
		it.fail("over: nil step")
		return it
	}
	it.step = step
	return it
}

// Err returns the first configuration error, including setters that were
// never called.
func (it *Iterator) Err() error {
	if len(it.errs) > 0 {
		return it.errs[0]
	}
	switch {
	case !it.labelSet:
		return configError("iterate", "as was not called")
	case !it.finderOK:
		return configError("iterate", "by was not called")
	case it.step == nil:
		return configError("iterate", "over was not called")
	case it.partitions == nil:
		return configError("iterate", "no partitions")
	}
	return nil
}

func (it *Iterator) queryFinder(p pred.Predicate, attr string) Finder {
	return func(ctx context.Context, tx store.Facts, partition, cursor int64) (int64, bool, error) {
		bound, err := pred.Bind(p, map[string]fact.Value{
			it.partitionAttr: fact.I(partition),
			ParamBefore:      fact.I(cursor),
		})
		if err != nil {
			return 0, false, err
		}
		found, err := tx.Query(ctx, bound)
		if err != nil {
			return 0, false, err
		}
		var next int64
		ok := false
		for _, f := range found {
			for _, v := range f.Get(attr) {
				n, isInt := v.(fact.Int)
				if !isInt {
					return 0, false, &TypeError{
						Where: fmt.Sprintf("%s of fact %d", attr, f.ID()),
						Want:  fact.KindInt.String(),
						Got:   v.Kind().String(),
					}
				}
				if !ok || int64(n) < next {
					next, ok = int64(n), true
				}
			}
		}
		return next, ok, nil
	}
}

// IterateReport summarizes a pass.
type IterateReport struct {
	// Units is the number of units persisted, idle ones included.
	Units int
	// Advanced is the number of units where the step ran.
	Advanced int
	// Stopped is true when the quota ended the pass early.
	Stopped bool
	// Cursors holds the cursor persisted last for each partition touched.
	Cursors map[int64]int64
}

// Run performs one pass: partitions are swept in enumeration order until
// each has processed Repeat units or the quota runs out. Each unit runs in
// its own transaction, so a quota stop keeps every persisted cursor.
func (it *Iterator) Run(ctx context.Context) (IterateReport, error) {
	report := IterateReport{Cursors: make(map[int64]int64)}
	if err := it.Err(); err != nil {
		return report, err
	}

	parts, err := it.partitions(ctx)
	if err != nil {
		return report, fmt.Errorf("iterate %s: partitions: %w", it.label, err)
	}
	log := it.rt.logger.With("label", it.label)
	log.Info("iterate started", "partitions", len(parts), "repeat", it.repeat)

	counts := make([]int, len(parts))
	for {
		swept := false
		for i, p := range parts {
			if counts[i] >= it.repeat {
				continue
			}
			swept = true
			cursor, advanced, err := it.unit(ctx, p)
			if err != nil {
				return report, fmt.Errorf("iterate %s: partition %d: %w", it.label, p, err)
			}
			counts[i]++
			report.Units++
			report.Cursors[p] = cursor
			if advanced {
				report.Advanced++
			}
			it.rt.metrics.unit(it.rt.judge, it.label, advanced)
			it.rt.spend()
			log.Debug("cursor saved", "partition", p, "cursor", cursor, "advanced", advanced)

			if it.rt.OffQuota() {
				report.Stopped = true
				log.Info("iterate stopped: off quota", "units", report.Units, "advanced", report.Advanced)
				return report, nil
			}
		}
		if !swept {
			break
		}
	}

	log.Info("iterate finished", "units", report.Units, "advanced", report.Advanced)
	return report, nil
}

// unit resumes one partition: read the cursor, drop every cursor fact,
// find and step the next unit, persist the new cursor. All in one
// transaction.
func (it *Iterator) unit(ctx context.Context, partition int64) (int64, bool, error) {
	var cursor int64
	var advanced bool
	err := it.rt.facts.Txn(ctx, func(tx store.Facts) error {
		match := pred.And{Predicates: []pred.Predicate{
			pred.EqS(AttrWhat, it.label),
			pred.EqI(it.partitionAttr, partition),
		}}

		prev, err := it.cursor(ctx, tx, match)
		if err != nil {
			return err
		}
		if _, err := tx.Delete(ctx, match); err != nil {
			return err
		}

		next, ok, err := it.finder(ctx, tx, partition, prev)
		if err != nil {
			return fmt.Errorf("find next after %d: %w", prev, err)
		}
		cursor, advanced = it.start, false
		if ok {
			cursor, err = it.step(ctx, tx, partition, next)
			if err != nil {
				return fmt.Errorf("step %d: %w", next, err)
			}
			advanced = true
		}

		f, err := tx.Insert(ctx)
		if err != nil {
			return err
		}
		if err := f.Add(ctx, AttrWhat, fact.S(it.label)); err != nil {
			return err
		}
		if err := f.Add(ctx, it.partitionAttr, fact.I(partition)); err != nil {
			return err
		}
		if err := f.Add(ctx, it.label, fact.I(cursor)); err != nil {
			return err
		}
		return it.rt.stamp(ctx, f)
	})
	return cursor, advanced, err
}

// cursor returns the stored cursor, or Start when there is none. Only the
// first cursor fact counts; duplicates are about to be deleted.
func (it *Iterator) cursor(ctx context.Context, tx store.Facts, match pred.Predicate) (int64, error) {
	found, err := tx.Query(ctx, match)
	if err != nil {
		return 0, err
	}
	if len(found) == 0 {
		return it.start, nil
	}
	v, ok := found[0].First(it.label)
	if !ok {
		return it.start, nil
	}
	n, ok := v.(fact.Int)
	if !ok {
		return 0, &TypeError{
			Where: fmt.Sprintf("cursor %s of fact %d", it.label, found[0].ID()),
			Want:  fact.KindInt.String(),
			Got:   v.Kind().String(),
		}
	}
	return int64(n), nil
}
