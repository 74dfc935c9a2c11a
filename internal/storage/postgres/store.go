package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const connTimeout = 5 * time.Second

// Пул невелик: витрина ходит в базу только за KV-снимками.
const (
	maxOpenConns    = 10
	maxIdleConns    = 5
	connMaxLifetime = 30 * time.Minute
)

// Store держит подключение к PostgreSQL для kv-хранилища витрины.
type Store struct {
	db *sql.DB
}

// Open открывает пул соединений и проверяет, что база отвечает.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	store := &Store{db: db}
	if err := store.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// DB отдаёт низкоуровневый *sql.DB для репозиториев поверх этого подключения.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping проверяет доступность базы с ограничением по времени.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("postgres store is not initialized")
	}

	pingCtx, cancel := context.WithTimeout(ctx, connTimeout)
	defer cancel()
	if err := s.db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// EnsureSchema создаёт таблицу kv-хранилища, если её ещё нет.
// Схема нарочно одна таблица: снимки корзин, заказов и ящиков живут как JSON.
func (s *Store) EnsureSchema(ctx context.Context) error {
	schemaCtx, cancel := context.WithTimeout(ctx, connTimeout)
	defer cancel()

	_, err := s.db.ExecContext(schemaCtx, `
		CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      BYTEA NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure kv schema: %w", err)
	}
	return nil
}

// Close закрывает пул соединений.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
