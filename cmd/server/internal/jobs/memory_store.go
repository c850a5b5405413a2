package jobs

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps jobs in a map. Terminal jobs older than ttl are pruned
// lazily on access, so reads take the write lock too.
type MemoryStore struct {
	mu  sync.Mutex
	m   map[string]*Job
	ttl time.Duration
	now func() time.Time
}

// NewMemoryStore creates an empty store. A ttl of zero keeps jobs forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{m: make(map[string]*Job), ttl: ttl, now: time.Now}
}

func (s *MemoryStore) Create(ctx context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[job.ID]; ok {
		return ErrExists
	}
	s.m[job.ID] = clone(job)
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.m[id]
	if !ok || s.expired(job) {
		delete(s.m, id)
		return nil, ErrNotFound
	}
	return clone(job), nil
}

func (s *MemoryStore) Update(ctx context.Context, id string, fn func(*Job) error) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.m[id]
	if !ok || s.expired(job) {
		delete(s.m, id)
		return nil, ErrNotFound
	}
	next := clone(job)
	if err := fn(next); err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now()
	s.m[id] = next
	return clone(next), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[id]; !ok {
		return ErrNotFound
	}
	delete(s.m, id)
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Job, 0, len(s.m))
	for id, job := range s.m {
		if s.expired(job) {
			delete(s.m, id)
			continue
		}
		out = append(out, clone(job))
	}
	sortNewestFirst(out)
	return out, nil
}

func (s *MemoryStore) expired(job *Job) bool {
	return s.ttl > 0 && job.Status.Terminal() && s.now().Sub(job.UpdatedAt) > s.ttl
}

// clone copies the record. Results are immutable once set, so the pointer is shared.
func clone(job *Job) *Job {
	c := *job
	if job.CompletedAt != nil {
		t := *job.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func sortNewestFirst(jobs []*Job) {
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].CreatedAt.Equal(jobs[j].CreatedAt) {
			return jobs[i].ID < jobs[j].ID
		}
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
}
