package judge

// Quota reports whether the external rate budget is exhausted. It is
// checked between units of work only: before each JoinOnce tuple (when
// quota-aware) and after each Iterate unit.
//
// Implemented by the GitHub client (remaining API calls) and StepQuota.
type Quota interface {
	OffQuota() bool
}

// Spender is implemented by quotas that count units of work themselves.
// The runtime calls Spend once per completed unit.
type Spender interface {
	Spend()
}

// NoQuota never runs out.
type NoQuota struct{}

// OffQuota always returns false.
func (NoQuota) OffQuota() bool { return false }

// StepQuota limits a run to a fixed number of units.
//
// Each completed Iterate unit or JoinOnce tuple spends one step. Once
// maxSteps have been spent OffQuota reports true and the run stops
// gracefully; everything already committed stays committed.
type StepQuota struct {
	maxSteps int // Maximum units per run
	current  int // Units spent so far
}

// NewStepQuota creates a quota allowing maxSteps units.
func NewStepQuota(maxSteps int) *StepQuota {
	return &StepQuota{
		maxSteps: maxSteps,
		current:  0,
	}
}

// Spend records one completed unit.
func (q *StepQuota) Spend() {
	q.current++
}

// OffQuota reports whether every step has been spent.
func (q *StepQuota) OffQuota() bool {
	return q.current >= q.maxSteps
}

// Reset resets the step counter to 0.
func (q *StepQuota) Reset() {
	q.current = 0
}

// Current returns the number of steps spent.
// Used for logging and diagnostics.
func (q *StepQuota) Current() int {
	return q.current
}

// MaxSteps returns the step limit.
// Used for logging and diagnostics.
func (q *StepQuota) MaxSteps() int {
	return q.maxSteps
}

// AnyQuota is off as soon as any member is off. Spend reaches every
// member that counts steps.
type AnyQuota []Quota

// OffQuota reports whether any member quota is exhausted.
func (qs AnyQuota) OffQuota() bool {
	for _, q := range qs {
		if q != nil && q.OffQuota() {
			return true
		}
	}
	return false
}

// Spend forwards to every member implementing Spender.
func (qs AnyQuota) Spend() {
	for _, q := range qs {
		if s, ok := q.(Spender); ok {
			s.Spend()
		}
	}
}
