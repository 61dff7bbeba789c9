package sqlite

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stepflow/stepflow/internal/core/persistence"
	"github.com/stepflow/stepflow/pkg/serialization"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	store := NewStore(db, serialization.DefaultSerializer())
	require.NoError(t, store.CreateTables(context.Background()))
	return store
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	payload := []byte(`{"flowchart-app-state":{"state":{"items":[]},"version":1}}`)

	id, err := store.SaveData(ctx, persistence.SaveOptions{
		Provider:       persistence.ProviderLocal,
		ItemTitle:      "Nightly",
		AdditionalInfo: map[string]interface{}{"workspaces": float64(2)},
	}, payload)
	require.NoError(t, err)

	loaded, err := store.RetrieveData(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, payload, loaded)

	items, err := store.ListItems(ctx, persistence.Filter{Type: persistence.DefaultItemType, Limit: 10})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, id, items[0].ID)
	assert.Equal(t, "Nightly", items[0].Title)
	assert.Equal(t, persistence.ProviderLocal, items[0].Provider)
	assert.Equal(t, float64(2), items[0].AdditionalInfo["workspaces"])
	assert.Equal(t, "msgpack+zstd", items[0].Format)

	require.NoError(t, store.DeleteItem(ctx, id))
	_, err = store.RetrieveData(ctx, id)
	assert.ErrorIs(t, err, persistence.ErrItemNotFound)
	assert.ErrorIs(t, store.DeleteItem(ctx, id), persistence.ErrItemNotFound)
}

func TestSQLiteStore_UpsertKeepsCreatedAt(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return base }
	opts := persistence.SaveOptions{Provider: persistence.ProviderLocal, ItemID: "app-state"}
	_, err := store.SaveData(ctx, opts, []byte("v1"))
	require.NoError(t, err)

	store.now = func() time.Time { return base.Add(time.Hour) }
	_, err = store.SaveData(ctx, opts, []byte("v2"))
	require.NoError(t, err)

	loaded, err := store.RetrieveData(ctx, "app-state")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), loaded)

	items, err := store.ListItems(ctx, persistence.Filter{})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, base, items[0].CreatedAt)
	assert.Equal(t, base.Add(time.Hour), items[0].UpdatedAt)
}

func TestSQLiteStore_ListPaging(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		at := base.Add(time.Duration(i) * time.Minute)
		store.now = func() time.Time { return at }
		_, err := store.SaveData(ctx, persistence.SaveOptions{Provider: persistence.ProviderLocal, ItemID: id}, []byte(id))
		require.NoError(t, err)
	}

	items, err := store.ListItems(ctx, persistence.Filter{Offset: 1})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "b", items[0].ID)

	items, err = store.ListItems(ctx, persistence.Filter{Limit: 1, Offset: 2})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].ID)
}

func TestSQLiteStore_FormatMismatch(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	_, err := store.SaveData(ctx, persistence.SaveOptions{Provider: persistence.ProviderLocal, ItemID: "x"}, []byte("x"))
	require.NoError(t, err)

	plain, err := serialization.NewSerializer(serialization.SerializationConfig{Codec: serialization.NewJSONCodec()})
	require.NoError(t, err)
	reader := NewStore(store.db, plain)
	_, err = reader.RetrieveData(ctx, "x")
	assert.ErrorIs(t, err, persistence.ErrLoadFailed)
}

func TestSQLiteStore_Errors(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.RetrieveData(ctx, "")
	assert.Equal(t, persistence.ErrInvalidItemID, err)
	assert.Equal(t, persistence.ErrInvalidItemID, store.DeleteItem(ctx, ""))

	_, err = store.SaveData(ctx, persistence.SaveOptions{Provider: "cloud"}, []byte("x"))
	assert.Error(t, err)

	_, err = store.ListItems(ctx, persistence.Filter{Offset: -1})
	assert.ErrorIs(t, err, persistence.ErrInvalidOffset)
}

func TestWithTableName(t *testing.T) {
	store := NewStore(nil, nil)
	assert.Equal(t, "custom_items", store.WithTableName("custom_items").tableName)
	assert.Equal(t, "custom_items", store.WithTableName("bad; DROP").tableName)
}

func TestOpen(t *testing.T) {
	store, err := Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	defer store.Close()

	id, err := store.SaveData(context.Background(), persistence.SaveOptions{Provider: persistence.ProviderLocal}, []byte("{}"))
	require.NoError(t, err)
	assert.NotEmpty(t, id)
}
