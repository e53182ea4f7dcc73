package judge

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/roach88/factbase/internal/fact"
)

// ProviderFunc computes metrics for a fact. It returns the values to
// append per attribute. Providers must not depend on each other: they run
// in random order and any of them may be deferred to a later run.
type ProviderFunc func(ctx context.Context, f *fact.Fact) (map[string][]fact.Value, error)

// Providers is a registry of named metric providers. A provider's name is
// also the attribute that marks it done: a fact carrying that attribute
// does not run the provider again.
type Providers struct {
	funcs map[string]ProviderFunc
}

// NewProviders creates an empty registry.
func NewProviders() *Providers {
	return &Providers{funcs: make(map[string]ProviderFunc)}
}

// Register adds a provider. Names must be valid attribute names and unique.
func (p *Providers) Register(name string, fn ProviderFunc) error {
	if !fact.ValidName(name) {
		return configError("incremate", "invalid provider name %q", name)
	}
	if fn == nil {
		return configError("incremate", "provider %q: nil func", name)
	}
	if _, ok := p.funcs[name]; ok {
		return configError("incremate", "provider %q registered twice", name)
	}
	p.funcs[name] = fn
	return nil
}

// MustRegister is Register for static registration. It panics on error.
func (p *Providers) MustRegister(name string, fn ProviderFunc) {
	if err := p.Register(name, fn); err != nil {
		panic(err)
	}
}

// Select returns the sorted names starting with prefix.
func (p *Providers) Select(prefix string) []string {
	var names []string
	for n := range p.funcs {
		if strings.HasPrefix(n, prefix) {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

type incremateConfig struct {
	seed           *uint64
	avoidDuplicate bool
	timeout        time.Duration
}

// IncremateOption configures Incremate.
type IncremateOption func(*incremateConfig)

// WithSeed fixes the shuffle so provider order is reproducible.
func WithSeed(seed uint64) IncremateOption {
	return func(c *incremateConfig) { c.seed = &seed }
}

// AvoidDuplicate skips returned attributes the fact already carries.
func AvoidDuplicate() IncremateOption {
	return func(c *incremateConfig) { c.avoidDuplicate = true }
}

// WithTimeout bounds this call in addition to the runtime budget.
func WithTimeout(d time.Duration) IncremateOption {
	return func(c *incremateConfig) { c.timeout = d }
}

// IncremateReport lists what happened to each selected provider.
type IncremateReport struct {
	// Order is the shuffled order providers were considered in.
	Order []string
	// Ran lists providers invoked, in order.
	Ran []string
	// Present lists providers skipped because their attribute exists.
	Present []string
	// Pending lists providers left for a later run by the budget.
	Pending []string
}

// Stopped reports whether the budget cut the run short.
func (r IncremateReport) Stopped() bool { return len(r.Pending) > 0 }

// Incremate runs the providers whose names start with prefix against f,
// in shuffled order, appending what they return.
//
// A provider is skipped when f already carries its name as an attribute.
// Before each remaining provider the budget is checked against the
// runtime epoch and the time this call started; once it is over, the
// rest are left pending. Provider errors abort the call; attributes
// appended before the error stay appended.
func (rt *Runtime) Incremate(ctx context.Context, f *fact.Fact, providers *Providers, prefix string, opts ...IncremateOption) (IncremateReport, error) {
	cfg := incremateConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	var r *rand.Rand
	if cfg.seed != nil {
		r = rand.New(rand.NewPCG(*cfg.seed, *cfg.seed))
	} else {
		r = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	var report IncremateReport
	report.Order = providers.Select(prefix)
	r.Shuffle(len(report.Order), func(i, j int) {
		report.Order[i], report.Order[j] = report.Order[j], report.Order[i]
	})

	budget := rt.budget
	if cfg.timeout > 0 {
		budget = eitherBudget{budget, Lifetime{Timeout: cfg.timeout, Clock: rt.clock}}
	}
	kickoff := rt.clock.Now()
	log := rt.logger.With("fact", f.ID(), "prefix", prefix)

	for i, name := range report.Order {
		if f.Has(name) {
			report.Present = append(report.Present, name)
			rt.metrics.provider(rt.judge, "present")
			continue
		}
		if budget.Over(rt.epoch, kickoff) {
			for _, rest := range report.Order[i:] {
				if !f.Has(rest) {
					report.Pending = append(report.Pending, rest)
					rt.metrics.provider(rt.judge, "budget")
				}
			}
			log.Info("incremate stopped: over budget", "ran", len(report.Ran), "pending", len(report.Pending))
			return report, nil
		}

		out, err := providers.funcs[name](ctx, f)
		if err != nil {
			return report, fmt.Errorf("incremate %s: %w", name, err)
		}
		attrs := make([]string, 0, len(out))
		for a := range out {
			attrs = append(attrs, a)
		}
		sort.Strings(attrs)
		for _, a := range attrs {
			if cfg.avoidDuplicate && f.Has(a) {
				log.Debug("attribute already present", "provider", name, "attr", a)
				continue
			}
			if err := f.Add(ctx, a, out[a]...); err != nil {
				return report, fmt.Errorf("incremate %s: %w", name, err)
			}
		}
		report.Ran = append(report.Ran, name)
		rt.metrics.provider(rt.judge, "ran")
		log.Debug("provider ran", "provider", name, "attrs", attrs)
	}

	log.Info("incremate finished", "ran", len(report.Ran), "present", len(report.Present))
	return report, nil
}

type eitherBudget []Budget

func (bs eitherBudget) Over(epoch, kickoff time.Time) bool {
	return slices.ContainsFunc(bs, func(b Budget) bool {
		return b != nil && b.Over(epoch, kickoff)
	})
}
