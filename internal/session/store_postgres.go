package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	id "lifeshield/pkg/domain"
	"lifeshield/pkg/platform/sentinel"
)

// Postgres persists sessions as JSONB rows with an explicit version column
// for optimistic concurrency. Expired rows are archived in place, never
// deleted, so the conversation and transition history survives for audit.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Schema returns the DDL the store expects. Applied by the operator or a
// migration tool, not by the store itself.
func Schema() string {
	return `
CREATE TABLE IF NOT EXISTS sessions (
    id         UUID PRIMARY KEY,
    stage      TEXT        NOT NULL,
    data       JSONB       NOT NULL,
    version    BIGINT      NOT NULL,
    archived   BOOLEAN     NOT NULL DEFAULT FALSE,
    created_at TIMESTAMPTZ NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL,
    expires_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS sessions_expires_at_idx ON sessions (expires_at) WHERE NOT archived;`
}

func (s *Postgres) Create(ctx context.Context, sess *Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	const q = `
		INSERT INTO sessions (id, stage, data, version, created_at, updated_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`
	res, err := s.db.ExecContext(ctx, q,
		sess.ID.String(), string(sess.Stage), payload, sess.Version,
		sess.CreatedAt, sess.UpdatedAt, sess.ExpiresAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session %s: %w", sess.ID, sentinel.ErrConflict)
	}
	return nil
}

func (s *Postgres) Get(ctx context.Context, sessionID id.SessionID) (*Session, error) {
	const q = `SELECT data, version, archived, expires_at FROM sessions WHERE id = $1`

	var (
		payload   []byte
		version   int64
		archived  bool
		expiresAt time.Time
	)
	err := s.db.QueryRowContext(ctx, q, sessionID.String()).
		Scan(&payload, &version, &archived, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if archived || time.Now().UTC().After(expiresAt) {
		return nil, fmt.Errorf("session %s: %w", sessionID, sentinel.ErrExpired)
	}

	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	sess.Version = version
	return &sess, nil
}

func (s *Postgres) Update(ctx context.Context, sess *Session) error {
	next := sess.Clone()
	next.Version++
	payload, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	const q = `
		UPDATE sessions
		SET stage = $2, data = $3, version = $4, updated_at = $5, expires_at = $6
		WHERE id = $1 AND version = $7 AND NOT archived`
	res, err := s.db.ExecContext(ctx, q,
		sess.ID.String(), string(next.Stage), payload, next.Version,
		next.UpdatedAt, next.ExpiresAt, sess.Version)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if rows == 0 {
		return s.classifyUpdateMiss(ctx, sess.ID)
	}
	sess.Version = next.Version
	return nil
}

// classifyUpdateMiss distinguishes a lost version race from a missing or
// archived row after an UPDATE matched nothing.
func (s *Postgres) classifyUpdateMiss(ctx context.Context, sessionID id.SessionID) error {
	var archived bool
	err := s.db.QueryRowContext(ctx,
		`SELECT archived FROM sessions WHERE id = $1`, sessionID.String()).Scan(&archived)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if archived {
		return fmt.Errorf("session %s: %w", sessionID, sentinel.ErrExpired)
	}
	return fmt.Errorf("session %s: %w", sessionID, sentinel.ErrConflict)
}

func (s *Postgres) Sweep(ctx context.Context, now time.Time) (int, error) {
	const q = `UPDATE sessions SET archived = TRUE WHERE expires_at < $1 AND NOT archived`

	res, err := s.db.ExecContext(ctx, q, now)
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep sessions: %w", err)
	}
	return int(rows), nil
}
