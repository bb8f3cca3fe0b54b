package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/sirupsen/logrus"
)

// Config holds database connection configuration.
type Config struct {
	URL         string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// Store is the PostgreSQL persistence layer. It backs both the permission
// resolvers and the guard layer's resource lookups.
type Store struct {
	db  *sql.DB
	log *logrus.Logger
}

// New opens a connection pool and verifies it.
func New(config Config, log *logrus.Logger) (*Store, error) {
	db, err := sql.Open("postgres", config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(config.MaxConns)
	db.SetMaxIdleConns(config.MinConns)
	db.SetConnMaxLifetime(config.MaxLifetime)
	db.SetConnMaxIdleTime(config.MaxIdleTime)

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{db: db, log: log}, nil
}

// NewWithDB wraps an existing handle. Used by tests with sqlmock.
func NewWithDB(db *sql.DB, log *logrus.Logger) *Store {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{db: db, log: log}
}

// DB exposes the underlying handle for health checks and the audit logger.
func (s *Store) DB() *sql.DB { return s.db }

// HealthCheck pings the database.
func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres unhealthy: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}
