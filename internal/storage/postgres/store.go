// Package postgres содержит PostgreSQL-реализации хранилищ витрины.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	defaultConnTimeout     = 5 * time.Second
	defaultMaxOpenConns    = 20
	defaultMaxIdleConns    = 10
	defaultConnMaxLifetime = 30 * time.Minute
	defaultConnMaxIdleTime = 5 * time.Minute

	// opTimeout ограничивает каждую операцию репозиториев.
	opTimeout = 5 * time.Second
)

var errStoreNotInitialized = errors.New("postgres store is not initialized")

// Store оборачивает SQL-подключение к PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open открывает подключение к PostgreSQL через pgx и проверяет доступность базы.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	store := &Store{db: db}
	if err := store.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return store, nil
}

// DB возвращает raw SQL DB, когда нужен низкоуровневый доступ.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping проверяет доступность подключения. Используется readiness-проверкой.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// Close закрывает подключение к БД.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
