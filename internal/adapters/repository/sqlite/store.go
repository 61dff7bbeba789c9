// Package sqlite implements the local embedded store on modernc.org/sqlite
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	_ "modernc.org/sqlite"

	"github.com/stepflow/stepflow/internal/core/persistence"
	"github.com/stepflow/stepflow/internal/infrastructure/metrics"
	"github.com/stepflow/stepflow/pkg/serialization"
)

const provider = string(persistence.ProviderLocal)

// Store implements persistence.Adapter for SQLite
type Store struct {
	db         *sql.DB
	serializer *serialization.Serializer
	tableName  string
	now        func() time.Time
}

// Open opens (or creates) the database file at path and its tables
func Open(ctx context.Context, path string, serializer *serialization.Serializer) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared across calls
	db.SetMaxOpenConns(1)
	s := NewStore(db, serializer)
	if err := s.CreateTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an open database
func NewStore(db *sql.DB, serializer *serialization.Serializer) *Store {
	if serializer == nil {
		serializer = serialization.DefaultSerializer()
	}
	return &Store{
		db:         db,
		serializer: serializer,
		tableName:  "stored_items",
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithTableName allows overriding the default table name with validation.
// Only alphanumeric and underscore are permitted to prevent SQL injection via identifiers.
func (s *Store) WithTableName(name string) *Store {
	if isSafeIdent(name) {
		s.tableName = name
	}
	return s
}

func isSafeIdent(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			continue
		}
		return false
	}
	return true
}

// SaveData upserts payload; an overwrite keeps the original created_at
func (s *Store) SaveData(ctx context.Context, opts persistence.SaveOptions, payload []byte) (string, error) {
	item, err := persistence.NewItem(opts, payload, s.now())
	if err != nil {
		return "", err
	}

	blob, err := s.serializer.SerializeBytes(payload)
	if err != nil {
		return "", fmt.Errorf("failed to serialize payload: %w", err)
	}

	info, err := sonic.ConfigStd.Marshal(item.AdditionalInfo)
	if err != nil {
		return "", fmt.Errorf("failed to serialize additional info: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, title, type, provider, additional_info, payload, format, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			type = excluded.type,
			provider = excluded.provider,
			additional_info = excluded.additional_info,
			payload = excluded.payload,
			format = excluded.format,
			updated_at = excluded.updated_at
	`, s.tableName)

	_, err = s.db.ExecContext(ctx, query,
		item.ID, item.Title, item.Type, string(item.Provider), string(info), blob,
		s.serializer.Format(), item.CreatedAt.UnixMilli(), item.UpdatedAt.UnixMilli())
	if err != nil {
		metrics.StoreFailure(provider)
		return "", fmt.Errorf("%w: %v", persistence.ErrSaveFailed, err)
	}

	metrics.StoreOperation(provider)
	return item.ID, nil
}

// RetrieveData returns the payload stored under id
func (s *Store) RetrieveData(ctx context.Context, id string) ([]byte, error) {
	if id == "" {
		return nil, persistence.ErrInvalidItemID
	}

	query := fmt.Sprintf("SELECT payload, format FROM %s WHERE id = ?", s.tableName)

	var blob []byte
	var format string
	err := s.db.QueryRowContext(ctx, query, id).Scan(&blob, &format)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrItemNotFound
		}
		metrics.StoreFailure(provider)
		return nil, fmt.Errorf("%w: %v", persistence.ErrLoadFailed, err)
	}
	if format != s.serializer.Format() {
		return nil, fmt.Errorf("%w: item %s was stored as %s, reader expects %s",
			persistence.ErrLoadFailed, id, format, s.serializer.Format())
	}

	payload, err := s.serializer.DeserializeBytes(blob)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize payload: %w", err)
	}
	metrics.StoreOperation(provider)
	return payload, nil
}

// ListItems returns item metadata without payloads, newest first
func (s *Store) ListItems(ctx context.Context, filter persistence.Filter) ([]*persistence.Item, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	query, args := s.buildListQuery(filter)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		metrics.StoreFailure(provider)
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := make([]*persistence.Item, 0)
	for rows.Next() {
		var item persistence.Item
		var providerName, info string
		var createdAt, updatedAt int64

		if err := rows.Scan(&item.ID, &item.Title, &item.Type, &providerName, &info,
			&item.Format, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		item.Provider = persistence.Provider(providerName)
		item.CreatedAt = time.UnixMilli(createdAt).UTC()
		item.UpdatedAt = time.UnixMilli(updatedAt).UTC()
		if info != "" && info != "null" {
			if err := sonic.ConfigStd.UnmarshalFromString(info, &item.AdditionalInfo); err != nil {
				return nil, fmt.Errorf("failed to deserialize additional info: %w", err)
			}
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	metrics.StoreOperation(provider)
	return items, nil
}

// DeleteItem removes the item stored under id
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrInvalidItemID
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", s.tableName)
	result, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		metrics.StoreFailure(provider)
		return fmt.Errorf("%w: %v", persistence.ErrDeleteFailed, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrItemNotFound
	}

	metrics.StoreOperation(provider)
	return nil
}

// CreateTables creates the necessary database tables
func (s *Store) CreateTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL,
			provider TEXT NOT NULL,
			additional_info TEXT,
			payload BLOB NOT NULL,
			format TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_%s_type ON %s (type);
		CREATE INDEX IF NOT EXISTS idx_%s_updated_at ON %s (updated_at);
	`, s.tableName, s.tableName, s.tableName, s.tableName, s.tableName)

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// buildListQuery constructs the SQL query for listing items
func (s *Store) buildListQuery(filter persistence.Filter) (string, []interface{}) {
	query := fmt.Sprintf(`SELECT id, title, type, provider, COALESCE(additional_info, ''), format, created_at, updated_at
		FROM %s WHERE 1=1`, s.tableName)
	args := make([]interface{}, 0)

	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, filter.Type)
	}

	query += " ORDER BY updated_at DESC, id ASC"

	switch {
	case filter.Limit > 0:
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	case filter.Offset > 0:
		// SQLite requires LIMIT before OFFSET
		query += " LIMIT -1"
	}

	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	return query, args
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
