package judge

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/factbase/internal/fact"
	"github.com/roach88/factbase/internal/pred"
	"github.com/roach88/factbase/internal/store"
)

func issues(t *testing.T, rt *Runtime, n int) []*fact.Fact {
	t.Helper()
	out := make([]*fact.Fact, n)
	for i := range out {
		out[i] = insertFact(t, rt.Facts(), "what", "issue-was-opened", "repository", 1, "issue", i+1)
	}
	return out
}

var issueQuery = []pred.Predicate{pred.EqS("what", "issue-was-opened")}

func continueAll(ctx context.Context, c *Cell) (Verdict, error) { return Continue, nil }

func TestJoinOnce_AtMostOnce(t *testing.T) {
	rt, s := newTestRuntime(t, "award")
	ctx := context.Background()
	issues(t, rt, 3)

	n, err := rt.JoinOnce(ctx, issueQuery, Draw, func(ctx context.Context, c *Cell) (Verdict, error) {
		c.Attrs.Add("points", fact.I(10))
		return Continue, nil
	}, Follow("issue"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	drawn := queryFacts(t, s, "(eq what 'award')")
	require.Len(t, drawn, 3)
	for i, f := range drawn {
		issue, _ := f.Int("issue")
		points, _ := f.Int("points")
		job, _ := f.Str(fact.AttrJob)
		assert.Equal(t, int64(i+1), issue)
		assert.Equal(t, int64(10), points)
		assert.Equal(t, testJob, job)
	}

	// Every tuple is now seen
	n, err = rt.JoinOnce(ctx, issueQuery, Draw, func(ctx context.Context, c *Cell) (Verdict, error) {
		t.Fatal("callback must not run for seen tuples")
		return Continue, nil
	})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, queryFacts(t, s, "(eq what 'award')"), 3)
}

func TestJoinOnce_TupleOrderAndTagging(t *testing.T) {
	rt, s := newTestRuntime(t, "pair")
	ctx := context.Background()
	a1 := insertFact(t, s, "what", "a")
	a2 := insertFact(t, s, "what", "a")
	b1 := insertFact(t, s, "what", "b")
	b2 := insertFact(t, s, "what", "b")

	var seen [][2]int64
	n, err := rt.JoinOnce(ctx,
		[]pred.Predicate{pred.EqS("what", "a"), pred.EqS("what", "b")},
		Consider,
		func(ctx context.Context, c *Cell) (Verdict, error) {
			seen = append(seen, [2]int64{c.Tuple[0].ID(), c.Tuple[1].ID()})
			assert.Equal(t, c.Tuple[0].ID(), c.Target.ID())
			return Continue, nil
		})
	require.NoError(t, err)

	// (a1,b2) and (a2,b1) contain facts tagged earlier in the run
	assert.Equal(t, 2, n)
	assert.Equal(t, [][2]int64{{a1.ID(), b1.ID()}, {a2.ID(), b2.ID()}}, seen)
}

func TestJoinOnce_EmptyQueryMeansNoTuples(t *testing.T) {
	rt, s := newTestRuntime(t, "pair")
	insertFact(t, s, "what", "a")

	n, err := rt.JoinOnce(context.Background(),
		[]pred.Predicate{pred.EqS("what", "a"), pred.EqS("what", "b")},
		Draw, continueAll)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Len(t, queryFacts(t, s, "(exists seen)"), 0)
}

func TestJoinOnce_Skip(t *testing.T) {
	rt, s := newTestRuntime(t, "award")
	ctx := context.Background()
	all := issues(t, rt, 3)

	n, err := rt.JoinOnce(ctx, issueQuery, Draw, func(ctx context.Context, c *Cell) (Verdict, error) {
		issue, _ := c.Tuple[0].Int("issue")
		c.Attrs.Add("issue", fact.I(issue))
		// Writes made before the skip are discarded
		require.NoError(t, c.Tuple[0].Add(ctx, "touched", fact.I(1)))
		if issue == 2 {
			return Skip, nil
		}
		return Continue, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	skipped := reload(t, s, all[1].ID())
	assert.False(t, skipped.Has(AttrSeen))
	assert.False(t, skipped.Has("touched"))
	assert.True(t, reload(t, s, all[0].ID()).Has("touched"))
	assert.Len(t, queryFacts(t, s, "(eq what 'award')"), 2)

	// The skipped tuple is retried by the next run
	var retried []int64
	n, err = rt.JoinOnce(ctx, issueQuery, Consider, func(ctx context.Context, c *Cell) (Verdict, error) {
		retried = append(retried, c.Target.ID())
		return Continue, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []int64{all[1].ID()}, retried)
}

func TestJoinOnce_CallbackRollbackErrorIsSkip(t *testing.T) {
	rt, s := newTestRuntime(t, "award")
	all := issues(t, rt, 2)

	n, err := rt.JoinOnce(context.Background(), issueQuery, Consider, func(ctx context.Context, c *Cell) (Verdict, error) {
		if c.Target.ID() == all[0].ID() {
			return Continue, fmt.Errorf("not yet: %w", store.ErrRollback)
		}
		return Continue, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, reload(t, s, all[0].ID()).Has(AttrSeen))
	assert.True(t, reload(t, s, all[1].ID()).Has(AttrSeen))
}

func TestJoinOnce_Stop(t *testing.T) {
	rt, s := newTestRuntime(t, "award")
	all := issues(t, rt, 3)

	n, err := rt.JoinOnce(context.Background(), issueQuery, Draw, func(ctx context.Context, c *Cell) (Verdict, error) {
		return Stop, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.True(t, reload(t, s, all[0].ID()).Has(AttrSeen), "stopping tuple is kept")
	assert.False(t, reload(t, s, all[1].ID()).Has(AttrSeen))
	assert.Len(t, queryFacts(t, s, "(eq what 'award')"), 1)
}

func TestJoinOnce_Rollback(t *testing.T) {
	rt, s := newTestRuntime(t, "award")
	issues(t, rt, 3)

	calls := 0
	n, err := rt.JoinOnce(context.Background(), issueQuery, Draw, func(ctx context.Context, c *Cell) (Verdict, error) {
		calls++
		if calls == 2 {
			return Rollback, nil
		}
		return Continue, nil
	})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, 2, calls)

	assert.Empty(t, queryFacts(t, s, "(exists seen)"))
	assert.Empty(t, queryFacts(t, s, "(eq what 'award')"))
}

func TestJoinOnce_CallbackError(t *testing.T) {
	rt, s := newTestRuntime(t, "award")
	issues(t, rt, 2)
	boom := errors.New("boom")

	calls := 0
	n, err := rt.JoinOnce(context.Background(), issueQuery, Draw, func(ctx context.Context, c *Cell) (Verdict, error) {
		calls++
		if calls == 2 {
			return Continue, boom
		}
		return Continue, nil
	})
	require.ErrorIs(t, err, boom)
	assert.Zero(t, n)
	assert.Empty(t, queryFacts(t, s, "(exists seen)"), "the whole join is aborted")
}

func TestJoinOnce_Threshold(t *testing.T) {
	rt, s := newTestRuntime(t, "award")
	issues(t, rt, 5)

	n, err := rt.JoinOnce(context.Background(), issueQuery, Draw, continueAll, WithThreshold(2))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, queryFacts(t, s, "(eq seen 'award')"), 2)
}

func TestJoinOnce_QuotaAware(t *testing.T) {
	q := NewStepQuota(2)
	rt, s := newTestRuntime(t, "award", WithQuota(q))
	issues(t, rt, 5)

	n, err := rt.JoinOnce(context.Background(), issueQuery, Draw, continueAll, QuotaAware())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, q.Current())
	assert.Len(t, queryFacts(t, s, "(eq seen 'award')"), 2)

	// Without QuotaAware the quota is not consulted
	q.Reset()
	n, err = rt.JoinOnce(context.Background(), issueQuery, Draw, continueAll)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestJoinOnce_Maybe(t *testing.T) {
	rt, s := newTestRuntime(t, "labels")
	issues(t, rt, 3)

	n, err := rt.JoinOnce(context.Background(), issueQuery, Maybe, func(ctx context.Context, c *Cell) (Verdict, error) {
		c.Attrs.Add("repository", fact.I(1))
		c.SetDetails("repository has issues")
		return Continue, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n, "every tuple is processed and seen")

	created := queryFacts(t, s, "(eq what 'labels')")
	require.Len(t, created, 1, "identical results collapse into one fact")
	details, _ := created[0].Str(AttrDetails)
	assert.Equal(t, "repository has issues", details)
}

func TestJoinOnce_WhatTagging(t *testing.T) {
	rt, s := newTestRuntime(t, "award")
	issues(t, rt, 2)

	_, err := rt.JoinOnce(context.Background(), issueQuery, Draw, func(ctx context.Context, c *Cell) (Verdict, error) {
		issue, _ := c.Tuple[0].Int("issue")
		if issue == 2 {
			c.Attrs.Add("what", fact.S("bonus"))
		}
		return Continue, nil
	}, Follow("issue"))
	require.NoError(t, err)

	plain := queryFacts(t, s, "(eq what 'award')")
	require.Len(t, plain, 1, "tagged with the judge even without details")
	assert.False(t, plain[0].Has(AttrDetails))
	issue, _ := plain[0].Int("issue")
	assert.Equal(t, int64(1), issue)

	own := queryFacts(t, s, "(eq what 'bonus')")
	require.Len(t, own, 1, "a what set by the callback is kept")
	assert.Equal(t, []fact.Value{fact.S("bonus")}, own[0].Get("what"))
}

func TestJoinOnce_ConsiderDetails(t *testing.T) {
	rt, s := newTestRuntime(t, "qos")
	all := issues(t, rt, 1)

	n, err := rt.JoinOnce(context.Background(), issueQuery, Consider, func(ctx context.Context, c *Cell) (Verdict, error) {
		if err := c.Target.Add(ctx, "score", fact.I(3)); err != nil {
			return Continue, err
		}
		c.SetDetails("three points")
		return Continue, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	f := reload(t, s, all[0].ID())
	score, _ := f.Int("score")
	details, _ := f.Str(AttrDetails)
	assert.Equal(t, int64(3), score)
	assert.Equal(t, "three points", details)
	assert.True(t, f.Contains(AttrSeen, fact.S("qos")))
	assert.Empty(t, queryFacts(t, s, "(eq what 'qos')"), "consider creates nothing")
}

func TestJoinOnce_FollowPositions(t *testing.T) {
	rt, s := newTestRuntime(t, "pair")
	insertFact(t, s, "what", "a", "issue", 7)
	insertFact(t, s, "what", "b", "repository", 3)

	n, err := rt.JoinOnce(context.Background(),
		[]pred.Predicate{pred.EqS("what", "a"), pred.EqS("what", "b")},
		Draw, continueAll, Follow("0.issue", "1.repository"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	created := queryFacts(t, s, "(eq what 'pair')")
	require.Len(t, created, 1)
	issue, _ := created[0].Int("issue")
	repo, _ := created[0].Int("repository")
	assert.Equal(t, int64(7), issue)
	assert.Equal(t, int64(3), repo)
}

func TestJoinOnce_ConfigErrors(t *testing.T) {
	rt, _ := newTestRuntime(t, "j")
	ctx := context.Background()

	tests := []struct {
		name    string
		queries []pred.Predicate
		mode    Mode
		fn      TupleFunc
		opts    []JoinOption
	}{
		{"no queries", nil, Draw, continueAll, nil},
		{"bad mode", issueQuery, Mode(42), continueAll, nil},
		{"nil callback", issueQuery, Draw, nil, nil},
		{"bad follow position", issueQuery, Draw, continueAll, []JoinOption{Follow("x.issue")}},
		{"follow beyond queries", issueQuery, Draw, continueAll, []JoinOption{Follow("1.issue")}},
		{"follow bad name", issueQuery, Draw, continueAll, []JoinOption{Follow("0.is-sue")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rt.JoinOnce(ctx, tt.queries, tt.mode, tt.fn, tt.opts...)
			require.Error(t, err)
			assert.True(t, IsConfigError(err), "got %v", err)
		})
	}
}

func TestJoinOnce_Metrics(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	rt, _ := newTestRuntime(t, "award", WithMetrics(m))
	issues(t, rt, 3)

	_, err := rt.JoinOnce(context.Background(), issueQuery, Draw, continueAll)
	require.NoError(t, err)

	assert.Equal(t, 3.0, promtest.ToFloat64(m.TuplesProcessed.WithLabelValues("award", "draw")))
	assert.Equal(t, 3.0, promtest.ToFloat64(m.FactsInserted.WithLabelValues("award")))
}

func TestMode_RoundTrip(t *testing.T) {
	for _, m := range []Mode{Draw, Maybe, Consider} {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseMode("sometimes")
	assert.Error(t, err)
}
