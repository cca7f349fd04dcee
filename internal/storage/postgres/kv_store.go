package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

type kvStore struct {
	db *sql.DB
}

// NewKeyValueStore создаёт PostgreSQL-реализацию KeyValueStore поверх таблицы cart_slots.
func NewKeyValueStore(store *Store) domain.KeyValueStore {
	return &kvStore{db: store.DB()}
}

func (s *kvStore) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var value []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT value
		FROM cart_slots
		WHERE namespace = $1 AND slot_key = $2
	`, namespace, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrSlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get slot %s/%s: %w", namespace, key, err)
	}
	return value, nil
}

func (s *kvStore) Put(ctx context.Context, namespace, key string, value []byte) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if value == nil {
		value = []byte{}
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO cart_slots (namespace, slot_key, value, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (namespace, slot_key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`, namespace, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("put slot %s/%s: %w", namespace, key, err)
	}
	return nil
}

func (s *kvStore) Delete(ctx context.Context, namespace, key string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM cart_slots
		WHERE namespace = $1 AND slot_key = $2
	`, namespace, key); err != nil {
		return fmt.Errorf("delete slot %s/%s: %w", namespace, key, err)
	}
	return nil
}

var _ domain.KeyValueStore = (*kvStore)(nil)
