package app

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Outcome is the decision taken for a single course request.
type Outcome string

const (
	OutcomeApproved          Outcome = "approved"
	OutcomeRejectedQuota     Outcome = "rejected-quota"
	OutcomeRejectedCollision Outcome = "rejected-collision"
	OutcomePendingQuota      Outcome = "pending-quota"
	OutcomePendingCollision  Outcome = "pending-collision"
)

// Mutates reports whether the outcome changed the request store.
func (o Outcome) Mutates() bool {
	switch o {
	case OutcomeApproved, OutcomeRejectedQuota, OutcomeRejectedCollision:
		return true
	default:
		return false
	}
}

// Decision records what happened to one request during a run.
type Decision struct {
	RequestID      int64
	Requester      int64
	Shortname      string
	CurrentCourses int
	MaxCourses     int
	Outcome        Outcome
	CourseID       int64 // set for approved requests
}

// Report is the result of one approval run.
type Report struct {
	RunID      uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Skipped    bool
	SkipReason string
	Decisions  []Decision
}

func newReport() *Report {
	return &Report{
		RunID:     uuid.New(),
		StartedAt: time.Now(),
	}
}

func (r *Report) add(d Decision) {
	r.Decisions = append(r.Decisions, d)
}

// Count returns the number of decisions with the given outcome.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, d := range r.Decisions {
		if d.Outcome == o {
			n++
		}
	}
	return n
}

// Mutations returns the number of requests approved or rejected.
func (r *Report) Mutations() int {
	n := 0
	for _, d := range r.Decisions {
		if d.Outcome.Mutates() {
			n++
		}
	}
	return n
}

// Summary is a one-line description suitable for logs and chat replies.
func (r *Report) Summary() string {
	if r.Skipped {
		return fmt.Sprintf("run %s skipped: %s", r.RunID, r.SkipReason)
	}
	return fmt.Sprintf("run %s processed %d request(s): %d approved, %d rejected (quota), %d rejected (shortname), %d left pending (quota), %d left pending (shortname)",
		r.RunID, len(r.Decisions),
		r.Count(OutcomeApproved),
		r.Count(OutcomeRejectedQuota),
		r.Count(OutcomeRejectedCollision),
		r.Count(OutcomePendingQuota),
		r.Count(OutcomePendingCollision),
	)
}
