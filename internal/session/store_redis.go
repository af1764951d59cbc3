package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	id "lifeshield/pkg/domain"
	"lifeshield/pkg/platform/sentinel"
)

const sessionKeyPrefix = "ls:session:"

// Redis is a session store for multi-instance deployments. Sessions are
// stored as JSON with the key TTL tracking the session TTL, so Redis itself
// handles archival; Sweep is a no-op here.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func sessionKey(sessionID id.SessionID) string {
	return sessionKeyPrefix + sessionID.String()
}

func (s *Redis) Create(ctx context.Context, sess *Session) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	ok, err := s.client.SetNX(ctx, sessionKey(sess.ID), payload, time.Until(sess.ExpiresAt)).Result()
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	if !ok {
		return fmt.Errorf("session %s: %w", sess.ID, sentinel.ErrConflict)
	}
	return nil
}

func (s *Redis) Get(ctx context.Context, sessionID id.SessionID) (*Session, error) {
	payload, err := s.client.Get(ctx, sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("session %s: %w", sessionID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if sess.Expired(time.Now().UTC()) {
		return nil, fmt.Errorf("session %s: %w", sessionID, sentinel.ErrExpired)
	}
	return &sess, nil
}

// Update persists the session under optimistic concurrency. The key is
// watched so a concurrent writer aborts the transaction; the stored version
// must match the caller's copy.
func (s *Redis) Update(ctx context.Context, sess *Session) error {
	key := sessionKey(sess.ID)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		payload, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("session %s: %w", sess.ID, sentinel.ErrNotFound)
		}
		if err != nil {
			return err
		}

		var current Session
		if err := json.Unmarshal(payload, &current); err != nil {
			return fmt.Errorf("decode session: %w", err)
		}
		if current.Version != sess.Version {
			return fmt.Errorf("session %s version %d, got %d: %w",
				sess.ID, current.Version, sess.Version, sentinel.ErrConflict)
		}

		next := sess.Clone()
		next.Version++
		out, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("marshal session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, time.Until(next.ExpiresAt))
			return nil
		})
		if err == nil {
			sess.Version = next.Version
		}
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return fmt.Errorf("session %s: %w", sess.ID, sentinel.ErrConflict)
	}
	return err
}

// Sweep is a no-op: key TTLs expire sessions server-side.
func (s *Redis) Sweep(context.Context, time.Time) (int, error) {
	return 0, nil
}
