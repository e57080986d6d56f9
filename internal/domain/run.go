package domain

import "time"

// Run is the journal entry for one batch invocation
type Run struct {
	// ID is the unique identifier for the run
	ID string

	// Kind is the action kind shared by every request of the batch
	Kind ActionKind

	// StartedAt is when the first request was dispatched
	StartedAt time.Time

	// FinishedAt is when the last request resolved
	FinishedAt time.Time

	// Results holds one entry per request, in input order
	Results []ActionResult
}

// Succeeded counts successful results.
func (r *Run) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Succeeded {
			n++
		}
	}
	return n
}

// RunRepository defines the interface for the run journal
type RunRepository interface {
	// Save appends a run and its results
	Save(run *Run) error

	// GetByID returns a run by ID, or nil when absent
	GetByID(id string) (*Run, error)

	// Recent returns the newest runs first, up to limit
	Recent(limit int) ([]*Run, error)
}
