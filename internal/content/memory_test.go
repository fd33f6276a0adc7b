package content

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentacademy/academy/internal/access"
)

type memoryRepo struct {
	mu    sync.Mutex
	items map[uuid.UUID]Item
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{items: map[uuid.UUID]Item{}}
}

func (m *memoryRepo) Create(_ context.Context, item Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.items {
		if existing.Slug == item.Slug {
			return ErrDuplicateSlug
		}
	}
	m.items[item.ID] = item
	return nil
}

func (m *memoryRepo) Update(_ context.Context, item Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item.ID]; !ok {
		return ErrNotFound
	}
	m.items[item.ID] = item
	return nil
}

func (m *memoryRepo) Get(_ context.Context, id uuid.UUID) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return item, nil
}

func (m *memoryRepo) GetBySlug(_ context.Context, slug string) (Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, item := range m.items {
		if item.Slug == slug {
			return item, nil
		}
	}
	return Item{}, ErrNotFound
}

func (m *memoryRepo) ListVisible(_ context.Context, pred access.Predicate, kind Kind, limit, offset int) ([]Item, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []Item
	for _, item := range m.items {
		if kind != "" && item.Kind != kind {
			continue
		}
		if pred.Matches(item.Access()) {
			matched = append(matched, item)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Slug < matched[j].Slug })
	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := min(offset+limit, total)
	return matched[offset:end], total, nil
}

func (m *memoryRepo) ListDue(_ context.Context, now time.Time, limit int) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var due []Item
	for _, item := range m.items {
		if item.Status == access.StatusScheduled && item.PublishAt != nil && !item.PublishAt.After(now) {
			due = append(due, item)
		}
	}
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}
