package judges

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/factbase/internal/fact"
	"github.com/roach88/factbase/internal/judge"
	"github.com/roach88/factbase/internal/pred"
	"github.com/roach88/factbase/internal/store"
)

const QualityOfService = "quality-of-service"

// qosPrefix selects the quality-of-service providers.
const qosPrefix = "total_"

// qosProviders builds the providers over facts. Each one counts or sums
// over the whole store.
func qosProviders(facts store.Facts) *judge.Providers {
	p := judge.NewProviders()
	p.MustRegister("total_issues", func(ctx context.Context, f *fact.Fact) (map[string][]fact.Value, error) {
		found, err := facts.Query(ctx, pred.EqS(judge.AttrWhat, IssueWasOpened))
		if err != nil {
			return nil, err
		}
		return map[string][]fact.Value{"total_issues": {fact.I(int64(len(found)))}}, nil
	})
	p.MustRegister("total_awards", func(ctx context.Context, f *fact.Fact) (map[string][]fact.Value, error) {
		found, err := facts.Query(ctx, pred.EqS(judge.AttrWhat, AwardForIssue))
		if err != nil {
			return nil, err
		}
		return map[string][]fact.Value{"total_awards": {fact.I(int64(len(found)))}}, nil
	})
	p.MustRegister("total_points", func(ctx context.Context, f *fact.Fact) (map[string][]fact.Value, error) {
		found, err := facts.Query(ctx, pred.AllOf(
			pred.EqS(judge.AttrWhat, AwardForIssue),
			pred.Exists{Attr: "award"},
		))
		if err != nil {
			return nil, err
		}
		var sum int64
		for _, a := range found {
			n, _ := a.Int("award")
			sum += n
		}
		return map[string][]fact.Value{"total_points": {fact.I(sum)}}, nil
	})
	return p
}

func qualityOfService(ctx context.Context, rt *judge.Runtime, env Env) error {
	day := fact.T(rt.Now().UTC().Truncate(24 * time.Hour))
	if _, err := rt.UpsertIfAbsent(ctx, rt.Facts(), func(a *fact.Attrs) error {
		a.Add(judge.AttrWhat, fact.S(QualityOfService))
		a.Add("when", day)
		return nil
	}); err != nil {
		return fmt.Errorf("%s: %w", QualityOfService, err)
	}

	found, err := rt.Facts().Query(ctx, pred.AllOf(
		pred.EqS(judge.AttrWhat, QualityOfService),
		pred.EqV("when", day),
	))
	if err != nil {
		return fmt.Errorf("%s: %w", QualityOfService, err)
	}
	if len(found) == 0 {
		return fmt.Errorf("%s: no fact for %s", QualityOfService, day.Text())
	}
	latest := found[len(found)-1]

	opts := []judge.IncremateOption{judge.AvoidDuplicate()}
	if env.Seed != nil {
		opts = append(opts, judge.WithSeed(*env.Seed))
	}
	if env.Timeout > 0 {
		opts = append(opts, judge.WithTimeout(env.Timeout))
	}
	report, err := rt.Incremate(ctx, latest, qosProviders(rt.Facts()), qosPrefix, opts...)
	if err != nil {
		return fmt.Errorf("%s: %w", QualityOfService, err)
	}
	rt.Logger().Info("quality of service updated",
		"fact", latest.ID(),
		"ran", report.Ran,
		"pending", report.Pending)
	return nil
}
