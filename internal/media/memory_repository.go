package media

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps records in process. It backs tests and local runs
// without a database.
type MemoryRepository struct {
	mu      sync.RWMutex
	media   map[string]*Media
	order   map[string]int64
	counter int64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		media: make(map[string]*Media),
		order: make(map[string]int64),
	}
}

func (r *MemoryRepository) Create(ctx context.Context, m *Media) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	m.ID = uuid.NewString()
	m.CreatedAt = now
	m.UpdatedAt = now
	if m.Genre == nil {
		m.Genre = []string{}
	}

	r.counter++
	r.media[m.ID] = copyMedia(m)
	r.order[m.ID] = r.counter
	return nil
}

func (r *MemoryRepository) ListAll(ctx context.Context) ([]*Media, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*Media, 0, len(r.media))
	for _, m := range r.media {
		list = append(list, copyMedia(m))
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return r.order[list[i].ID] > r.order[list[j].ID]
	})
	return list, nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*Media, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, exists := r.media[id]
	if !exists {
		return nil, ErrNotFound
	}
	return copyMedia(m), nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.media[id]; !exists {
		return ErrNotFound
	}
	delete(r.media, id)
	delete(r.order, id)
	return nil
}

func (r *MemoryRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.media), nil
}

func copyMedia(m *Media) *Media {
	c := *m
	c.Genre = append([]string{}, m.Genre...)
	return &c
}

var (
	_ Repository = (*MemoryRepository)(nil)
	_ Repository = (*PostgresRepository)(nil)
)
