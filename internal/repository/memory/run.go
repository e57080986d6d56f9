package memory

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"yt_multi_account/internal/domain"
)

// RunRepository is an in-memory implementation of RunRepository
type RunRepository struct {
	mu   sync.RWMutex
	runs map[string]*domain.Run
	seq  []string
}

// NewRunRepository creates a new in-memory run journal
func NewRunRepository() *RunRepository {
	return &RunRepository{
		runs: make(map[string]*domain.Run),
	}
}

// Save stores a copy of the run
func (r *RunRepository) Save(run *domain.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if _, exists := r.runs[run.ID]; !exists {
		r.seq = append(r.seq, run.ID)
	}
	r.runs[run.ID] = cloneRun(run)
	return nil
}

// GetByID returns a run by ID, or nil when absent
func (r *RunRepository) GetByID(id string) (*domain.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, nil
	}
	return cloneRun(run), nil
}

// Recent returns up to limit runs, newest first
func (r *RunRepository) Recent(limit int) ([]*domain.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 {
		return nil, nil
	}

	order := make(map[string]int, len(r.seq))
	for i, id := range r.seq {
		order[id] = i
	}

	runs := make([]*domain.Run, 0, len(r.runs))
	for _, run := range r.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return order[runs[i].ID] > order[runs[j].ID]
	})

	if len(runs) > limit {
		runs = runs[:limit]
	}
	out := make([]*domain.Run, len(runs))
	for i, run := range runs {
		out[i] = cloneRun(run)
	}
	return out, nil
}

func cloneRun(run *domain.Run) *domain.Run {
	c := *run
	c.Results = append([]domain.ActionResult(nil), run.Results...)
	return &c
}
