// Package session stores transient upload-session state in Redis. Sessions
// ride on key TTLs, so abandoned uploads disappear without a dedicated
// completion-path sweep.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clipshare-gateway/internal/models"
)

const (
	sessionKeyPrefix = "upload:session:"
	chunkKeyPrefix   = "upload:chunks:"

	statsCompletedKey = "stats:uploads:completed"
	statsBytesKey     = "stats:uploads:bytes"
)

var ErrSessionNotFound = Error("upload session not found")

type Error string

func (e Error) Error() string {
	return string(e)
}

type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func sessionKey(uploadID string) string {
	return sessionKeyPrefix + uploadID
}

func chunkKey(uploadID string) string {
	return chunkKeyPrefix + uploadID
}

// CreateSession persists a new session under the store TTL.
func (s *Store) CreateSession(ctx context.Context, sess *models.UploadSession) error {
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	if err := s.rdb.Set(ctx, sessionKey(sess.UploadID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("store session: %w", err)
	}
	return nil
}

// GetSession loads a session with its current received-chunk count.
func (s *Store) GetSession(ctx context.Context, uploadID string) (*models.UploadSession, error) {
	payload, err := s.rdb.Get(ctx, sessionKey(uploadID)).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var sess models.UploadSession
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("unmarshal session: %w", err)
	}

	count, err := s.rdb.SCard(ctx, chunkKey(uploadID)).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("load chunk count: %w", err)
	}
	sess.UploadedChunks = int(count)

	return &sess, nil
}

// RecordChunk marks one chunk index as received and returns the number of
// distinct indices stored so far. Indices live in a set, so a retransmitted
// chunk never inflates the count. The set shares the session TTL so both
// expire together.
func (s *Store) RecordChunk(ctx context.Context, uploadID string, index int) (int, error) {
	added, err := s.rdb.SAdd(ctx, chunkKey(uploadID), index).Result()
	if err != nil {
		return 0, fmt.Errorf("record chunk: %w", err)
	}
	if added > 0 {
		if err := s.rdb.Expire(ctx, chunkKey(uploadID), s.ttl).Err(); err != nil {
			return 0, fmt.Errorf("expire chunk set: %w", err)
		}
	}

	count, err := s.rdb.SCard(ctx, chunkKey(uploadID)).Result()
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return int(count), nil
}

// UpdateStatistics bumps the aggregate upload counters. Callers treat
// failures as non-fatal; this is observability, not correctness.
func (s *Store) UpdateStatistics(ctx context.Context, sess *models.UploadSession, filesize int64) error {
	pipe := s.rdb.Pipeline()
	pipe.Incr(ctx, statsCompletedKey)
	pipe.IncrBy(ctx, statsBytesKey, filesize)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update upload statistics: %w", err)
	}
	return nil
}

// Statistics reads the aggregate upload counters.
func (s *Store) Statistics(ctx context.Context) (completed int64, bytes int64, err error) {
	completed, err = s.rdb.Get(ctx, statsCompletedKey).Int64()
	if err == redis.Nil {
		completed, err = 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("read completed counter: %w", err)
	}

	bytes, err = s.rdb.Get(ctx, statsBytesKey).Int64()
	if err == redis.Nil {
		bytes, err = 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("read bytes counter: %w", err)
	}

	return completed, bytes, nil
}

// DeleteSession removes the session row and its chunk set.
func (s *Store) DeleteSession(ctx context.Context, uploadID string) error {
	if err := s.rdb.Del(ctx, sessionKey(uploadID), chunkKey(uploadID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
