package testutil

import "sync/atomic"

// SwitchQuota is a judge.Quota flipped by hand, standing in for an API
// rate limit that runs out or recovers between runs.
//
// Thread-safety: SwitchQuota is safe for concurrent use.
type SwitchQuota struct {
	off atomic.Bool
}

// NewSwitchQuota creates a quota in the given state.
func NewSwitchQuota(off bool) *SwitchQuota {
	q := &SwitchQuota{}
	q.off.Store(off)
	return q
}

// Set switches the quota off (true) or back on (false).
func (q *SwitchQuota) Set(off bool) {
	q.off.Store(off)
}

// OffQuota reports the current state.
//
// Implements judge.Quota interface.
func (q *SwitchQuota) OffQuota() bool {
	return q.off.Load()
}
