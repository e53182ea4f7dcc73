package judge

import (
	"context"
	"fmt"

	"github.com/roach88/factbase/internal/fact"
	"github.com/roach88/factbase/internal/pred"
)

// AttrSeen holds the names of the judges that processed a fact.
const AttrSeen = "seen"

// FilterUnseen restricts p to facts not yet tagged seen by judge.
func FilterUnseen(p pred.Predicate, judge string) pred.Predicate {
	return pred.AllOf(p, pred.Not{Predicate: pred.EqS(AttrSeen, judge)})
}

// FilterUnseenTuples applies FilterUnseen to every member query, so a
// tuple qualifies only if each of its facts is unseen.
func FilterUnseenTuples(ps []pred.Predicate, judge string) []pred.Predicate {
	out := make([]pred.Predicate, len(ps))
	for i, p := range ps {
		out[i] = FilterUnseen(p, judge)
	}
	return out
}

// MarkSeen tags every fact with seen=judge, skipping facts already tagged
// and facts repeated within facts.
func MarkSeen(ctx context.Context, facts []*fact.Fact, judge string) error {
	tag := fact.S(judge)
	done := make(map[int64]bool, len(facts))
	for _, f := range facts {
		if done[f.ID()] {
			continue
		}
		done[f.ID()] = true
		if f.Contains(AttrSeen, tag) {
			continue
		}
		if err := f.Add(ctx, AttrSeen, tag); err != nil {
			return fmt.Errorf("mark seen: %w", err)
		}
	}
	return nil
}
