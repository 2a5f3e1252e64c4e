package session

import (
	"context"
	"sync"
	"time"

	"pixel-storefront/internal/domain"
)

type memoryRepo struct {
	mu      sync.Mutex
	records map[string]Record
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory keeps records in process. Used for development and tests.
func NewMemory(ttl time.Duration) Repository {
	return &memoryRepo{records: make(map[string]Record), ttl: ttl, now: time.Now}
}

func (r *memoryRepo) Save(ctx context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now().UTC()
	if prev, ok := r.records[rec.ID]; ok {
		rec.CreatedAt = prev.CreatedAt
	} else if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	r.records[rec.ID] = rec
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, id string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || r.expired(rec) {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}

func (r *memoryRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[id]; !ok {
		return domain.ErrNotFound
	}
	delete(r.records, id)
	return nil
}

func (r *memoryRepo) Purge(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, rec := range r.records {
		if r.expired(rec) {
			delete(r.records, id)
			n++
		}
	}
	return n, nil
}

func (r *memoryRepo) expired(rec Record) bool {
	return r.now().Sub(rec.UpdatedAt) > r.ttl
}
