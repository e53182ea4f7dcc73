package judges

import (
	"context"
	"sort"
	"time"

	"github.com/roach88/factbase/internal/github"
	"github.com/roach88/factbase/internal/judge"
)

// IssueSource finds issues by number. *github.Client implements it.
type IssueSource interface {
	NextIssue(ctx context.Context, repoID, after int64) (github.Issue, bool, error)
}

// Env carries what judges need beyond the runtime.
type Env struct {
	// GitHub is where issue-was-opened reads issues from.
	GitHub IssueSource

	// Partitions enumerates repository ids.
	Partitions judge.PartitionFunc

	// Repeat is how many issues per repository one run may record.
	Repeat int

	// Seed fixes the order of quality-of-service providers when set.
	Seed *uint64

	// Timeout bounds one quality-of-service run. Zero means no bound.
	Timeout time.Duration

	// Rules overrides the award-for-issue rules when non-nil.
	Rules []judge.Rule
}

// Func runs one judge.
type Func func(ctx context.Context, rt *judge.Runtime, env Env) error

var registry = map[string]Func{
	IssueWasOpened:   issueWasOpened,
	AwardForIssue:    awardForIssue,
	QualityOfService: qualityOfService,
}

// Names returns the registered judge names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named judge or a *judge.ConfigError.
func Lookup(name string) (Func, error) {
	fn, ok := registry[name]
	if !ok {
		return nil, &judge.ConfigError{Component: "judges", Message: "unknown judge " + name}
	}
	return fn, nil
}
