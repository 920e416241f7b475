package jobs

import (
	"context"
	"sort"
	"sync"
)

// Store persists live jobs. Implementations must preserve insertion order in
// ListActive and ListTerminal (ascending Seq): the FIFO and queue-position
// logic depends on that contract, not on any particular backing structure.
type Store interface {
	// NextSeq returns the next value of a monotonically increasing sequence.
	NextSeq(ctx context.Context) (uint64, error)
	// Put inserts or replaces a job.
	Put(ctx context.Context, job *Job) error
	// Get returns the job or nil when absent.
	Get(ctx context.Context, id string) (*Job, error)
	// ListActive returns all non-terminal jobs in submission order.
	ListActive(ctx context.Context) ([]*Job, error)
	// ListTerminal returns all terminal jobs in submission order.
	ListTerminal(ctx context.Context) ([]*Job, error)
	// Delete removes a job. Deleting an absent job is not an error.
	Delete(ctx context.Context, id string) error
}

// MemoryStore is the in-process Store used by a single-node deployment and
// by tests.
type MemoryStore struct {
	mu   sync.RWMutex
	seq  uint64
	jobs map[string]*Job
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]*Job)}
}

// NextSeq returns the next value of the in-process sequence.
func (s *MemoryStore) NextSeq(ctx context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq, nil
}

// Put stores a copy of the job.
func (s *MemoryStore) Put(ctx context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.clone()
	return nil
}

// Get returns a copy of the job, or nil when absent.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return job.clone(), nil
}

// ListActive returns non-terminal jobs in submission order.
func (s *MemoryStore) ListActive(ctx context.Context) ([]*Job, error) {
	return s.list(func(j *Job) bool { return !j.Status.Terminal() }), nil
}

// ListTerminal returns terminal jobs in submission order.
func (s *MemoryStore) ListTerminal(ctx context.Context) ([]*Job, error) {
	return s.list(func(j *Job) bool { return j.Status.Terminal() }), nil
}

func (s *MemoryStore) list(keep func(*Job) bool) []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Job
	for _, j := range s.jobs {
		if keep(j) {
			out = append(out, j.clone())
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Seq < out[b].Seq })
	return out
}

// Delete removes a job.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}
