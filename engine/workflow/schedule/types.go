// Package schedule implements the Redis sorted-set backed scheduler
// described in the DESIGN ledger: a durable, time-ordered store of
// recurring fire-times that drains to the trigger stream as wallclock
// advances.
package schedule

import (
	"time"

	"github.com/fluxgraph/fluxgraph/engine/core"
)

// Schedule is one workflow's scheduler-trigger fire-time policy. It is
// JSON-marshaled verbatim as the member payload of the workflow_schedules_zset
// sorted set; the set's score is always NextRun's unix-seconds value.
type Schedule struct {
	WorkflowID core.ID `json:"workflow_id"`
	NextRun time.Time `json:"next_run"`
	IntervalSecs *int64 `json:"interval_seconds,omitempty"`
	Until *time.Time `json:"until,omitempty"`
	MaxOccurrences *int64 `json:"max_occurrences,omitempty"`
	Occurrences int64 `json:"occurrences"`
	Context map[string]any `json:"context,omitempty"`
}

// IsOneShot reports whether the schedule fires exactly once.
func (s *Schedule) IsOneShot() bool {
	return s.IntervalSecs == nil
}

// ShouldStop evaluates the termination predicates after the
// occurrence counter and NextRun have already been advanced by the
// caller for this drain.
func (s *Schedule) ShouldStop() bool {
	if s.IsOneShot() {
		return true
	}
	if s.Until != nil && s.NextRun.After(*s.Until) {
		return true
	}
	if s.MaxOccurrences != nil && s.Occurrences >= *s.MaxOccurrences {
		return true
	}
	return false
}

// Advance mutates s in place to its next occurrence: increments
// Occurrences, and if an interval is set, pushes NextRun forward by it.
// Returns true when s should be retired (not reinserted).
func (s *Schedule) Advance(now time.Time) bool {
	s.Occurrences++
	if s.IsOneShot() {
		return true
	}
	s.NextRun = now.Add(time.Duration(*s.IntervalSecs) * time.Second)
	return s.ShouldStop()
}
