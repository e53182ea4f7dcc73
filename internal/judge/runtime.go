package judge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/factbase/internal/fact"
	"github.com/roach88/factbase/internal/store"
)

// Runtime carries everything a judge run needs: the fact store, the judge
// name used for seen-markers and what-tags, a logger, a quota, a clock and
// a time budget. There is no ambient state; every primitive is a method on
// Runtime or takes its dependencies as arguments.
//
// A Runtime is used by one goroutine at a time.
type Runtime struct {
	facts   store.Facts
	judge   string
	logger  *slog.Logger
	quota   Quota
	clock   Clock
	budget  Budget
	metrics *Metrics
	jobs    JobGenerator
	version string
	job     string
	epoch   time.Time
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger. The judge name is attached to every record.
func WithLogger(l *slog.Logger) Option {
	return func(rt *Runtime) { rt.logger = l }
}

// WithQuota sets the quota checked between units of work.
// Default: NoQuota.
func WithQuota(q Quota) Option {
	return func(rt *Runtime) { rt.quota = q }
}

// WithClock sets the clock. Default: SystemClock.
func WithClock(c Clock) Option {
	return func(rt *Runtime) { rt.clock = c }
}

// WithBudget sets the budget Incremate checks between providers.
// Default: Unbounded.
func WithBudget(b Budget) Option {
	return func(rt *Runtime) { rt.budget = b }
}

// WithMetrics sets the counters updated by the primitives.
func WithMetrics(m *Metrics) Option {
	return func(rt *Runtime) { rt.metrics = m }
}

// WithJobGenerator sets the source of the _job token.
// Default: UUIDv7Generator.
func WithJobGenerator(g JobGenerator) Option {
	return func(rt *Runtime) { rt.jobs = g }
}

// WithVersion sets the _version stamped on created facts.
// Default: fact.RuntimeVersion.
func WithVersion(v string) Option {
	return func(rt *Runtime) { rt.version = v }
}

// WithEpoch sets the process start time Incremate budgets are measured
// from. Default: the clock's time when the Runtime is created.
func WithEpoch(t time.Time) Option {
	return func(rt *Runtime) { rt.epoch = t }
}

// New creates a Runtime for the named judge over facts.
func New(facts store.Facts, judge string, opts ...Option) *Runtime {
	rt := &Runtime{
		facts:   facts,
		judge:   judge,
		logger:  slog.Default(),
		quota:   NoQuota{},
		clock:   SystemClock{},
		budget:  Unbounded{},
		jobs:    UUIDv7Generator{},
		version: fact.RuntimeVersion,
	}
	for _, opt := range opts {
		opt(rt)
	}
	rt.logger = rt.logger.With("judge", judge)
	rt.job = rt.jobs.Generate()
	if rt.epoch.IsZero() {
		rt.epoch = rt.clock.Now()
	}
	return rt
}

// Judge returns the judge name.
func (rt *Runtime) Judge() string { return rt.judge }

// Facts returns the fact store the runtime writes to.
func (rt *Runtime) Facts() store.Facts { return rt.facts }

// Logger returns the judge's logger.
func (rt *Runtime) Logger() *slog.Logger { return rt.logger }

// Job returns the token stamped as _job on created facts.
func (rt *Runtime) Job() string { return rt.job }

// Now returns the runtime clock's current time.
func (rt *Runtime) Now() time.Time { return rt.clock.Now() }

// OffQuota reports whether the runtime's quota is exhausted.
func (rt *Runtime) OffQuota() bool {
	return rt.quota != nil && rt.quota.OffQuota()
}

func (rt *Runtime) spend() {
	if s, ok := rt.quota.(Spender); ok {
		s.Spend()
	}
}

// stamp adds the bookkeeping attributes of facts the runtime creates.
func (rt *Runtime) stamp(ctx context.Context, f *fact.Fact) error {
	if !f.Has(fact.AttrVersion) {
		if err := f.Add(ctx, fact.AttrVersion, fact.S(rt.version)); err != nil {
			return fmt.Errorf("stamp: %w", err)
		}
	}
	if !f.Has(fact.AttrJob) {
		if err := f.Add(ctx, fact.AttrJob, fact.S(rt.job)); err != nil {
			return fmt.Errorf("stamp: %w", err)
		}
	}
	rt.metrics.inserted(rt.judge)
	return nil
}
