package persistence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewItem(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	item, err := NewItem(SaveOptions{Provider: ProviderLocal, ItemTitle: "backup"}, []byte("{}"), now)
	require.NoError(t, err)
	assert.NotEmpty(t, item.ID)
	assert.Equal(t, DefaultItemType, item.Type)
	assert.Equal(t, now, item.CreatedAt)

	item, err = NewItem(SaveOptions{Provider: ProviderRemote, ItemID: "fixed-id", ItemType: "snapshot"}, []byte("{}"), now)
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", item.ID)
	assert.Equal(t, "snapshot", item.Type)
}

func TestNewItem_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		opts    SaveOptions
		payload []byte
	}{
		{"missing provider", SaveOptions{}, []byte("{}")},
		{"unknown provider", SaveOptions{Provider: "cloud"}, []byte("{}")},
		{"bad id", SaveOptions{Provider: ProviderLocal, ItemID: "has spaces"}, []byte("{}")},
		{"nil payload", SaveOptions{Provider: ProviderLocal}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewItem(tt.opts, tt.payload, time.Now())
			assert.Error(t, err)
		})
	}
}

func TestFilter_Validate(t *testing.T) {
	assert.NoError(t, (&Filter{}).Validate())
	assert.ErrorIs(t, (&Filter{Limit: -1}).Validate(), ErrInvalidLimit)
	assert.ErrorIs(t, (&Filter{Offset: -1}).Validate(), ErrInvalidOffset)
}
