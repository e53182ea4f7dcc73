package judge

import (
	"fmt"
	"math"
	"strings"
)

// RuleKind selects how a rule computes its raw value.
type RuleKind int

const (
	// KindConst yields its points.
	KindConst RuleKind = iota + 1
	// KindLinear yields x*k.
	KindLinear
	// KindAtMost yields min(0, points-sum): a correction keeping the
	// running sum at or below points.
	KindAtMost
	// KindAtLeast yields max(0, points-sum): a correction lifting the
	// running sum to at least points.
	KindAtLeast
)

func (k RuleKind) String() string {
	switch k {
	case KindConst:
		return "const"
	case KindLinear:
		return "linear"
	case KindAtMost:
		return "at_most"
	case KindAtLeast:
		return "at_least"
	default:
		return "unknown"
	}
}

// Rule is one step of an award computation. Build rules with Const,
// Linear, AtMost and AtLeast, then refine them with When, Min, Max and
// Gate.
type Rule struct {
	kind    RuleKind
	points  float64
	x, k    float64
	because string
	skip    bool
	min     *float64
	max     *float64
	gate    *float64
}

// Const awards a fixed number of points.
func Const(points float64, because string) Rule {
	return Rule{kind: KindConst, points: points, because: because}
}

// Linear awards x*k points.
func Linear(x, k float64, because string) Rule {
	return Rule{kind: KindLinear, x: x, k: k, because: because}
}

// AtMost caps the running sum at points.
func AtMost(points float64, because string) Rule {
	return Rule{kind: KindAtMost, points: points, because: because}
}

// AtLeast raises the running sum to points.
func AtLeast(points float64, because string) Rule {
	return Rule{kind: KindAtLeast, points: points, because: because}
}

// When skips the rule entirely unless cond holds.
func (r Rule) When(cond bool) Rule {
	r.skip = !cond
	return r
}

// Min clamps the rule's value from below.
func (r Rule) Min(v float64) Rule {
	r.min = &v
	return r
}

// Max clamps the rule's value from above.
func (r Rule) Max(v float64) Rule {
	r.max = &v
	return r
}

// Gate zeroes the rule's value when its magnitude is below |v|.
func (r Rule) Gate(v float64) Rule {
	r.gate = &v
	return r
}

// Kind returns the rule kind.
func (r Rule) Kind() RuleKind { return r.kind }

// Because returns the explanation text.
func (r Rule) Because() string { return r.because }

// value computes the rule's contribution given the running sum.
func (r Rule) value(sum int) float64 {
	var v float64
	switch r.kind {
	case KindConst:
		v = r.points
	case KindLinear:
		v = r.x * r.k
	case KindAtMost:
		v = math.Min(0, r.points-float64(sum))
	case KindAtLeast:
		v = math.Max(0, r.points-float64(sum))
	}
	if r.min != nil && v < *r.min {
		v = *r.min
	}
	if r.max != nil && v > *r.max {
		v = *r.max
	}
	if r.gate != nil && math.Abs(v) < math.Abs(*r.gate) {
		v = 0
	}
	return v
}

// Entry is one non-zero contribution to a bill.
type Entry struct {
	Points  int    `json:"points" yaml:"points"`
	Because string `json:"because" yaml:"because"`
}

// Bill is the result of Award.
type Bill struct {
	Points      int     `json:"points" yaml:"points"`
	Explanation string  `json:"explanation" yaml:"explanation"`
	Entries     []Entry `json:"entries" yaml:"entries"`
}

// Award evaluates rules in order into a total and an explanation.
//
// Each value is truncated toward zero before it joins the running sum, so
// at_most and at_least see exactly the total so far. Zero values are left
// out of the explanation. Award is pure.
func Award(rules ...Rule) Bill {
	var bill Bill
	for _, r := range rules {
		if r.skip {
			continue
		}
		v := r.value(bill.Points)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		n := int(math.Trunc(v))
		if n == 0 {
			continue
		}
		bill.Points += n
		bill.Entries = append(bill.Entries, Entry{Points: n, Because: r.because})
	}
	bill.Explanation = explain(bill)
	return bill
}

func explain(b Bill) string {
	if len(b.Entries) == 0 {
		return "You've earned nothing."
	}
	parts := make([]string, len(b.Entries))
	for i, e := range b.Entries {
		parts[i] = fmt.Sprintf("%+d for %s", e.Points, e.Because)
	}
	return fmt.Sprintf("You've earned %+d points for this: %s.", b.Points, strings.Join(parts, ", "))
}
