package session

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"
)

// MemoryStore keeps sessions in process memory. Idle sessions expire after
// ttl; every Save restarts the clock.
type MemoryStore struct {
	cache *cache.Cache
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{cache: cache.New(ttl, 10*time.Minute)}
}

func (r *MemoryStore) Load(_ context.Context, id string) (*Session, error) {
	if x, found := r.cache.Get(id); found {
		return x.(*Session).Clone(), nil
	}
	return New(id), nil
}

func (r *MemoryStore) Save(_ context.Context, s *Session) error {
	r.cache.Set(s.ID, s.Clone(), cache.DefaultExpiration)
	return nil
}

func (r *MemoryStore) count() int {
	return r.cache.ItemCount()
}
