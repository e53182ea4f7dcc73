package judge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/factbase/internal/fact"
	"github.com/roach88/factbase/internal/pred"
	"github.com/roach88/factbase/internal/store"
	"github.com/roach88/factbase/internal/testutil"
)

const testJob = "test-job"

// newTestRuntime opens a fresh store and a runtime for judge over it with
// a frozen clock and a fixed job token.
func newTestRuntime(t *testing.T, judge string, opts ...Option) (*Runtime, *store.Store) {
	t.Helper()
	s := testutil.OpenStore(t)
	base := []Option{
		WithClock(testutil.NewManualClock(testutil.Epoch, 0)),
		WithJobGenerator(testutil.NewFixedJobGenerator(testJob)),
	}
	return New(s, judge, append(base, opts...)...), s
}

// insertFact inserts a fact with the given name/value pairs.
func insertFact(t *testing.T, facts store.Facts, kv ...any) *fact.Fact {
	t.Helper()
	require.Zero(t, len(kv)%2, "insertFact needs name/value pairs")
	ctx := context.Background()
	f, err := facts.Insert(ctx)
	require.NoError(t, err)
	for i := 0; i < len(kv); i += 2 {
		name := kv[i].(string)
		require.NoError(t, f.Add(ctx, name, fact.MustOf(kv[i+1])))
	}
	return f
}

// queryFacts returns the facts matching the predicate text.
func queryFacts(t *testing.T, facts store.Facts, text string) []*fact.Fact {
	t.Helper()
	found, err := facts.Query(context.Background(), pred.MustParse(text))
	require.NoError(t, err)
	return found
}

// reload fetches the current state of a fact by id.
func reload(t *testing.T, facts store.Facts, id int64) *fact.Fact {
	t.Helper()
	found, err := facts.Query(context.Background(), pred.EqI(fact.AttrID, id))
	require.NoError(t, err)
	require.Len(t, found, 1, "fact %d", id)
	return found[0]
}
