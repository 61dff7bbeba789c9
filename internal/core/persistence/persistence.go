// Package persistence defines the contract between the core and the stores
// that keep exported application state: a local embedded store, a remote
// document store and an in-memory one.
package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stepflow/stepflow/pkg/validation"
)

// Provider names a storage backend
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderRemote Provider = "remote"
	ProviderMemory Provider = "memory"
)

// DefaultItemType is the type of items holding a full state export
const DefaultItemType = "app-state"

// SaveOptions describe where and under which identity a payload is stored
type SaveOptions struct {
	Provider       Provider               `json:"provider" validate:"required,oneof=local remote memory"`
	ItemID         string                 `json:"itemId,omitempty" validate:"omitempty,entity_id"`
	ItemTitle      string                 `json:"itemTitle,omitempty" validate:"max=256"`
	ItemType       string                 `json:"itemType,omitempty" validate:"omitempty,step_type"`
	AdditionalInfo map[string]interface{} `json:"additionalInfo,omitempty"`
}

// Validate checks the options
func (o *SaveOptions) Validate() error {
	return validation.Struct(o)
}

// Item is one stored payload with its metadata
type Item struct {
	ID             string                 `json:"id"`
	Title          string                 `json:"title,omitempty"`
	Type           string                 `json:"type"`
	Provider       Provider               `json:"provider"`
	AdditionalInfo map[string]interface{} `json:"additionalInfo,omitempty"`
	Payload        []byte                 `json:"-"`
	Format         string                 `json:"format,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

// NewItem validates opts and builds the item to store, generating an id
// when none is given.
func NewItem(opts SaveOptions, payload []byte, now time.Time) (*Item, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid save options: %w", err)
	}
	if payload == nil {
		return nil, ErrNilPayload
	}
	id := opts.ItemID
	if id == "" {
		id = uuid.NewString()
	}
	typ := opts.ItemType
	if typ == "" {
		typ = DefaultItemType
	}
	return &Item{
		ID:             id,
		Title:          opts.ItemTitle,
		Type:           typ,
		Provider:       opts.Provider,
		AdditionalInfo: opts.AdditionalInfo,
		Payload:        payload,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// Filter narrows ListItems
type Filter struct {
	Type   string `json:"type,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// Validate ensures filter parameters are valid
func (f *Filter) Validate() error {
	if f.Limit < 0 {
		return ErrInvalidLimit
	}
	if f.Offset < 0 {
		return ErrInvalidOffset
	}
	return nil
}

// Adapter is implemented by every store. The only ordering guarantee is
// that a write is observed by the next read from the same adapter.
type Adapter interface {
	// SaveData stores payload and returns its id
	SaveData(ctx context.Context, opts SaveOptions, payload []byte) (string, error)

	// RetrieveData returns the payload stored under id, or ErrItemNotFound
	RetrieveData(ctx context.Context, id string) ([]byte, error)

	// ListItems returns stored items, newest first
	ListItems(ctx context.Context, filter Filter) ([]*Item, error)

	// DeleteItem removes the item stored under id
	DeleteItem(ctx context.Context, id string) error
}
