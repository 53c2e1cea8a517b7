package history

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores runs in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu     sync.RWMutex
	byUser map[string][]Run
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byUser: make(map[string][]Run)}
}

// Create stores the run.
func (r *MemoryRepo) Create(ctx context.Context, run Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	run.FileIDs = append([]string(nil), run.FileIDs...)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[run.UserID] = append(r.byUser[run.UserID], run)
	return nil
}

// ListByUser returns runs newest first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Run, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	runs := append([]Run(nil), r.byUser[userID]...)
	r.mu.RUnlock()

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if offset >= len(runs) {
		return []Run{}, nil
	}
	runs = runs[offset:]
	if limit > 0 && limit < len(runs) {
		runs = runs[:limit]
	}
	return runs, nil
}

// GetByID returns one of the user's runs.
func (r *MemoryRepo) GetByID(ctx context.Context, userID, runID string) (Run, error) {
	if err := ctx.Err(); err != nil {
		return Run{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, run := range r.byUser[userID] {
		if run.ID == runID {
			return run, nil
		}
	}
	return Run{}, ErrNotFound
}

var _ Repo = (*MemoryRepo)(nil)
