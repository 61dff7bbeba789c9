// Package postgres implements the remote document store on pgx
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stepflow/stepflow/internal/core/persistence"
	"github.com/stepflow/stepflow/internal/infrastructure/metrics"
	"github.com/stepflow/stepflow/pkg/serialization"
)

const provider = string(persistence.ProviderRemote)

// Store implements persistence.Adapter for PostgreSQL
type Store struct {
	pool       *pgxpool.Pool
	serializer *serialization.Serializer
	tableName  string
	now        func() time.Time
}

// Connect opens a pool for dsn and creates the tables
func Connect(ctx context.Context, dsn string, serializer *serialization.Serializer) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres: %w", err)
	}
	s := NewStore(pool, serializer)
	if err := s.CreateTables(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewStore wraps an existing pool
func NewStore(pool *pgxpool.Pool, serializer *serialization.Serializer) *Store {
	if serializer == nil {
		serializer = serialization.DefaultSerializer()
	}
	return &Store{
		pool:       pool,
		serializer: serializer,
		tableName:  "stored_items",
		now:        func() time.Time { return time.Now().UTC() },
	}
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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			type = EXCLUDED.type,
			provider = EXCLUDED.provider,
			additional_info = EXCLUDED.additional_info,
			payload = EXCLUDED.payload,
			format = EXCLUDED.format,
			updated_at = EXCLUDED.updated_at
	`, s.tableName)

	_, err = s.pool.Exec(ctx, query,
		item.ID, item.Title, item.Type, string(item.Provider), info, blob,
		s.serializer.Format(), item.CreatedAt, item.UpdatedAt)
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

	query := fmt.Sprintf("SELECT payload, format FROM %s WHERE id = $1", s.tableName)

	var blob []byte
	var format string
	err := s.pool.QueryRow(ctx, query, id).Scan(&blob, &format)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
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

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		metrics.StoreFailure(provider)
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := make([]*persistence.Item, 0)
	for rows.Next() {
		var item persistence.Item
		var providerName string
		var info []byte

		if err := rows.Scan(&item.ID, &item.Title, &item.Type, &providerName, &info,
			&item.Format, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}
		item.Provider = persistence.Provider(providerName)
		if len(info) > 0 {
			if err := sonic.ConfigStd.Unmarshal(info, &item.AdditionalInfo); err != nil {
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

	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", s.tableName)
	result, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		metrics.StoreFailure(provider)
		return fmt.Errorf("%w: %v", persistence.ErrDeleteFailed, err)
	}
	if result.RowsAffected() == 0 {
		return persistence.ErrItemNotFound
	}

	metrics.StoreOperation(provider)
	return nil
}

// CreateTables creates the necessary database tables
func (s *Store) CreateTables(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id VARCHAR(128) PRIMARY KEY,
			title VARCHAR(256) NOT NULL DEFAULT '',
			type VARCHAR(64) NOT NULL,
			provider VARCHAR(32) NOT NULL,
			additional_info JSONB,
			payload BYTEA NOT NULL,
			format VARCHAR(64) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_%s_type ON %s (type);
		CREATE INDEX IF NOT EXISTS idx_%s_updated_at ON %s (updated_at);
	`, s.tableName, s.tableName, s.tableName, s.tableName, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// buildListQuery constructs the SQL query for listing items
func (s *Store) buildListQuery(filter persistence.Filter) (string, []interface{}) {
	query := fmt.Sprintf(`SELECT id, title, type, provider, additional_info, format, created_at, updated_at
		FROM %s WHERE 1=1`, s.tableName)
	args := make([]interface{}, 0)
	argCount := 0

	if filter.Type != "" {
		argCount++
		query += fmt.Sprintf(" AND type = $%d", argCount)
		args = append(args, filter.Type)
	}

	query += " ORDER BY updated_at DESC, id ASC"

	if filter.Limit > 0 {
		argCount++
		query += fmt.Sprintf(" LIMIT $%d", argCount)
		args = append(args, filter.Limit)
	}

	if filter.Offset > 0 {
		argCount++
		query += fmt.Sprintf(" OFFSET $%d", argCount)
		args = append(args, filter.Offset)
	}

	return query, args
}

// Close closes the database connection pool
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
