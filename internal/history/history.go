// Package history keeps a ledger of batch runs.
package history

import (
	"context"
	"sort"
	"sync"
	"time"
)

// BatchRun is one completed batch.
type BatchRun struct {
	ID         string    `json:"id"`
	Source     string    `json:"source"`
	Target     string    `json:"target"`
	Sender     string    `json:"sender,omitempty"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Store records runs and lists the most recent first.
type Store interface {
	Record(ctx context.Context, run BatchRun) error
	List(ctx context.Context, limit int) ([]BatchRun, error)
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// ClampLimit maps non-positive limits to the default and caps large ones.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// MemoryStore keeps up to capacity runs in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	runs     []BatchRun
	capacity int
}

// NewMemoryStore returns a store that drops the oldest runs beyond capacity.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = maxListLimit
	}
	return &MemoryStore{capacity: capacity}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Record(_ context.Context, run BatchRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	if over := len(s.runs) - s.capacity; over > 0 {
		s.runs = append([]BatchRun(nil), s.runs[over:]...)
	}
	return nil
}

func (s *MemoryStore) List(_ context.Context, limit int) ([]BatchRun, error) {
	limit = ClampLimit(limit)
	s.mu.RLock()
	out := make([]BatchRun, len(s.runs))
	copy(out, s.runs)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
