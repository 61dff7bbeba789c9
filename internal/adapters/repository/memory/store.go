// Package memory provides an in-process persistence.Adapter
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stepflow/stepflow/internal/core/graph"
	"github.com/stepflow/stepflow/internal/core/persistence"
	"github.com/stepflow/stepflow/internal/infrastructure/metrics"
	"github.com/stepflow/stepflow/pkg/serialization"
)

// Store keeps serialized items in a map
type Store struct {
	mu         sync.RWMutex
	items      map[string]*entry
	serializer *serialization.Serializer
	now        func() time.Time
}

type entry struct {
	item *persistence.Item
	blob []byte
}

// Config holds configuration for Store
type Config struct {
	Serializer *serialization.Serializer // defaults to msgpack+zstd
	Now        func() time.Time
}

// NewStore creates an empty store
func NewStore(config Config) *Store {
	if config.Serializer == nil {
		config.Serializer = serialization.DefaultSerializer()
	}
	if config.Now == nil {
		config.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Store{
		items:      make(map[string]*entry),
		serializer: config.Serializer,
		now:        config.Now,
	}
}

// SaveData stores payload, keeping the original creation time on overwrite
func (s *Store) SaveData(ctx context.Context, opts persistence.SaveOptions, payload []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	item, err := persistence.NewItem(opts, payload, s.now())
	if err != nil {
		return "", err
	}
	blob, err := s.serializer.SerializeBytes(payload)
	if err != nil {
		return "", err
	}
	item.Format = s.serializer.Format()
	item.Payload = nil

	s.mu.Lock()
	if prev, ok := s.items[item.ID]; ok {
		item.CreatedAt = prev.item.CreatedAt
	}
	s.items[item.ID] = &entry{item: item, blob: blob}
	s.mu.Unlock()

	metrics.StoreOperation(string(persistence.ProviderMemory))
	return item.ID, nil
}

// RetrieveData returns the payload for id
func (s *Store) RetrieveData(ctx context.Context, id string) ([]byte, error) {
	if id == "" {
		return nil, persistence.ErrInvalidItemID
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	e, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return nil, persistence.ErrItemNotFound
	}
	metrics.StoreOperation(string(persistence.ProviderMemory))
	return s.serializer.DeserializeBytes(e.blob)
}

// ListItems returns item metadata, newest first
func (s *Store) ListItems(ctx context.Context, filter persistence.Filter) ([]*persistence.Item, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]*persistence.Item, 0, len(s.items))
	for _, e := range s.items {
		if filter.Type != "" && e.item.Type != filter.Type {
			continue
		}
		cp := *e.item
		cp.AdditionalInfo = graph.CopyMap(e.item.AdditionalInfo)
		out = append(out, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []*persistence.Item{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

// DeleteItem removes the item stored under id
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrInvalidItemID
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return persistence.ErrItemNotFound
	}
	delete(s.items, id)
	metrics.StoreOperation(string(persistence.ProviderMemory))
	return nil
}

// Len returns the number of stored items
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
