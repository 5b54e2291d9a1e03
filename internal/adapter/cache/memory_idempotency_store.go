package cache

import (
	"context"
	"sync"
	"time"

	"github.com/aq2208/gorder-settlement/internal/usecase"
)

// MemoryIdempotencyStore is the single-process stand-in for the Redis store.
type MemoryIdempotencyStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	locks map[string]time.Time
	vals  map[string]memVal
}

type memVal struct {
	v   string
	exp time.Time
}

func NewMemoryIdempotencyStore(ttl time.Duration) *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{
		ttl:   ttl,
		now:   time.Now,
		locks: map[string]time.Time{},
		vals:  map[string]memVal{},
	}
}

func (s *MemoryIdempotencyStore) TryLock(_ context.Context, scope, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := scope + ":" + key
	if exp, ok := s.locks[k]; ok && s.live(exp) {
		return false, nil
	}
	s.locks[k] = s.expiry()
	return true, nil
}

func (s *MemoryIdempotencyStore) Release(_ context.Context, scope, key string) error {
	s.mu.Lock()
	delete(s.locks, scope+":"+key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryIdempotencyStore) Remember(_ context.Context, scope, key, value string) error {
	s.mu.Lock()
	s.vals[scope+":"+key] = memVal{v: value, exp: s.expiry()}
	s.mu.Unlock()
	return nil
}

func (s *MemoryIdempotencyStore) Recall(_ context.Context, scope, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vals[scope+":"+key]
	if !ok || !s.live(v.exp) {
		return "", false, nil
	}
	return v.v, true, nil
}

// zero expiry means no ttl
func (s *MemoryIdempotencyStore) expiry() time.Time {
	if s.ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(s.ttl)
}

func (s *MemoryIdempotencyStore) live(exp time.Time) bool {
	return exp.IsZero() || s.now().Before(exp)
}

var _ usecase.IdempotencyStore = (*MemoryIdempotencyStore)(nil)
