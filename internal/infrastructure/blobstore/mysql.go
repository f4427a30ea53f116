package blobstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore backs the artifact cache with a shared MySQL database for
// deployments where several tool processes work the same sessions.
// Interface and semantics match SQLiteStore.
type MySQLStore struct {
	db *sql.DB
}

func NewMySQLStore(dsn string) (*MySQLStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("mysql dsn is required")
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetConnMaxLifetime(time.Hour)
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS artifacts (
		scope VARCHAR(191) NOT NULL,
		artifact_key VARCHAR(191) NOT NULL,
		payload MEDIUMBLOB NOT NULL,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (scope, artifact_key)
	)`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &MySQLStore{db: db}, nil
}

func (s *MySQLStore) Put(ctx context.Context, scope, key string, payload []byte) error {
	if scope == "" || key == "" {
		return errors.New("scope and key are required")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `INSERT INTO artifacts (scope, artifact_key, payload, created_at)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE payload = VALUES(payload)`,
		scope, key, payload, time.Now().UTC())
	return err
}

func (s *MySQLStore) Get(ctx context.Context, scope, key string) ([]byte, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM artifacts WHERE scope = ? AND artifact_key = ?`, scope, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (s *MySQLStore) Has(ctx context.Context, scope, key string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM artifacts WHERE scope = ? AND artifact_key = ?`, scope, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *MySQLStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

func (s *MySQLStore) Close() error {
	return s.db.Close()
}
