package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/screening-server/internal/domain"
)

// MemorySessionRepository keeps sessions in a bounded in-process LRU. The
// least recently used session is evicted once capacity is reached, and
// sessions expire after ttl.
type MemorySessionRepository struct {
	cache *expirable.LRU[string, domain.Session]
}

// NewMemorySessionRepository creates a repository holding at most size
// sessions. A zero ttl keeps sessions until evicted.
func NewMemorySessionRepository(size int, ttl time.Duration) *MemorySessionRepository {
	if size <= 0 {
		size = 10000
	}
	return &MemorySessionRepository{
		cache: expirable.NewLRU[string, domain.Session](size, nil, ttl),
	}
}

func (r *MemorySessionRepository) Get(_ context.Context, id string) (*domain.Session, error) {
	s, ok := r.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
	}
	out := s.Clone()
	return &out, nil
}

func (r *MemorySessionRepository) Save(_ context.Context, session *domain.Session) error {
	r.cache.Add(session.ID, session.Clone())
	return nil
}

func (r *MemorySessionRepository) Delete(_ context.Context, id string) error {
	r.cache.Remove(id)
	return nil
}

// Len returns the number of live sessions.
func (r *MemorySessionRepository) Len() int {
	return r.cache.Len()
}
