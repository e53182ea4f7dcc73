package judges

import (
	"context"
	"fmt"

	"github.com/roach88/factbase/internal/fact"
	"github.com/roach88/factbase/internal/github"
	"github.com/roach88/factbase/internal/judge"
	"github.com/roach88/factbase/internal/pred"
	"github.com/roach88/factbase/internal/store"
)

const (
	IssueWasOpened = "issue-was-opened"
	AwardForIssue  = "award-for-issue"
)

// cursorLabel names the issue-was-opened cursor facts.
const cursorLabel = "issue_was_opened"

func issueWasOpened(ctx context.Context, rt *judge.Runtime, env Env) error {
	if env.GitHub == nil {
		return &judge.ConfigError{Component: IssueWasOpened, Message: "no GitHub client"}
	}
	repeat := env.Repeat
	if repeat < 1 {
		repeat = 1
	}

	// the finder fetches the issue; the step consumes it
	found := make(map[int64]github.Issue)
	report, err := rt.Iterate(judge.Partitions(env.Partitions), judge.Repeat(repeat)).
		As(cursorLabel).
		ByFunc(func(ctx context.Context, tx store.Facts, repo, cursor int64) (int64, bool, error) {
			is, ok, err := env.GitHub.NextIssue(ctx, repo, cursor)
			if err != nil || !ok {
				return 0, false, err
			}
			found[repo] = is
			return is.Number, true, nil
		}).
		Over(func(ctx context.Context, tx store.Facts, repo, number int64) (int64, error) {
			is := found[repo]
			delete(found, repo)
			if is.IsPull() {
				rt.Logger().Debug("pull request skipped", "repository", repo, "issue", number)
				return number, nil
			}
			f, err := rt.UpsertIfAbsent(ctx, tx, func(a *fact.Attrs) error {
				a.Add(judge.AttrWhat, fact.S(IssueWasOpened))
				a.Add("repository", fact.I(repo))
				a.Add("issue", fact.I(number))
				a.Add("who", fact.I(is.User.ID))
				a.Add("when", fact.T(is.CreatedAt))
				return nil
			})
			if err != nil {
				return 0, err
			}
			if f != nil {
				rt.Logger().Info("issue recorded", "repository", repo, "issue", number, "who", is.User.Login)
			}
			return number, nil
		}).
		Run(ctx)
	if err != nil {
		return err
	}
	rt.Logger().Info("issues scanned",
		"units", report.Units,
		"advanced", report.Advanced,
		"stopped", report.Stopped)
	return nil
}

// DefaultAwardRules are the rules award-for-issue applies.
func DefaultAwardRules() []judge.Rule {
	return []judge.Rule{
		judge.Const(15, "opening an issue"),
		judge.AtMost(100, "the cap"),
	}
}

var openedIssues = pred.MustParse("(and (eq what 'issue-was-opened') (exists who))")

func awardForIssue(ctx context.Context, rt *judge.Runtime, env Env) error {
	rules := env.Rules
	if rules == nil {
		rules = DefaultAwardRules()
	}
	bill := judge.Award(rules...)

	n, err := rt.JoinOnce(ctx, []pred.Predicate{openedIssues}, judge.Maybe,
		func(ctx context.Context, c *judge.Cell) (judge.Verdict, error) {
			c.Attrs.Add("award", fact.I(int64(bill.Points)))
			c.SetDetails(bill.Explanation)
			return judge.Continue, nil
		},
		judge.Follow("repository", "issue", "who"),
		judge.QuotaAware())
	if err != nil {
		return fmt.Errorf("%s: %w", AwardForIssue, err)
	}
	rt.Logger().Info("issues awarded", "issues", n, "points", bill.Points)
	return nil
}
