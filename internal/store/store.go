package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

var (
	// ErrNotFound is returned when a content item does not exist or is not
	// visible to the requesting founder.
	ErrNotFound = errors.New("content item not found")
	// ErrInvalidState is returned when an item exists but its current status
	// does not permit the requested transition.
	ErrInvalidState = errors.New("content item is not in a valid state for this operation")
)

//go:embed schema.sql
var schemaSQL string

// ContentStore provides Postgres-backed persistence for content items and
// per-founder policies. All founder-scoped reads and writes filter on
// founder_id so one tenant can never observe or mutate another's items.
type ContentStore struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewContentStore(db *sql.DB, logger *logrus.Logger) *ContentStore {
	return &ContentStore{db: db, logger: logger}
}

// EnsureSchema applies the embedded schema. Statements are idempotent, so
// running it on every startup is safe.
func (s *ContentStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	s.logger.Debug("Database schema ensured")
	return nil
}

// DB exposes the underlying handle for health checks.
func (s *ContentStore) DB() *sql.DB {
	return s.db
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
