package catalog

import (
	"context"
	"sync"

	optionerrors "github.com/abgdnv/gocommerce/option_service/internal/errors"
	"github.com/google/uuid"
)

// InMemoryItemFinder keeps items in a map. It backs the memory database driver and tests.
type InMemoryItemFinder struct {
	mu    sync.RWMutex
	items map[uuid.UUID]Item
}

func NewInMemoryItemFinder(items ...Item) *InMemoryItemFinder {
	f := &InMemoryItemFinder{items: make(map[uuid.UUID]Item, len(items))}
	for _, item := range items {
		f.items[item.ID] = item
	}
	return f
}

// Put adds or replaces an item.
func (f *InMemoryItemFinder) Put(item Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[item.ID] = item
}

func (f *InMemoryItemFinder) FindActiveByID(_ context.Context, id uuid.UUID) (*Item, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	item, ok := f.items[id]
	if !ok || !item.Active() {
		return nil, optionerrors.ErrItemNotFound
	}
	return &item, nil
}
