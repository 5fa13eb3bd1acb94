package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/crm-import/internal/domain"
	"github.com/ignite/crm-import/internal/pkg/distlock"
	"github.com/ignite/crm-import/internal/pkg/logger"
)

const (
	defaultLockTTL = 30 * time.Second
	lockInterval   = 20 * time.Millisecond
)

// RedisStore keeps sessions in Redis. Every key expires after ttl of
// inactivity.
type RedisStore struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	lockTTL time.Duration
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client *redis.Client, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = "import"
	}
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl, lockTTL: defaultLockTTL}
}

func (r *RedisStore) key(kind, id string) string {
	return fmt.Sprintf("%s:%s:%s", r.prefix, kind, id)
}

// Save writes s and refreshes the expiry of all of its keys.
func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.key("session", s.ID), data, r.ttl)
	pipe.Expire(ctx, r.key("file", s.ID), r.ttl)
	pipe.Expire(ctx, r.key("progress", s.ID), r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("saving session %s: %w", s.ID, err)
	}
	return nil
}

// Load reads a session.
func (r *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	data, err := r.client.Get(ctx, r.key("session", id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding session %s: %w", id, err)
	}
	return &s, nil
}

// Delete removes the session, its file and its progress.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	err := r.client.Del(ctx, r.key("session", id), r.key("file", id), r.key("progress", id)).Err()
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", id, err)
	}
	return nil
}

// SaveFile stores the raw CSV text of a session.
func (r *RedisStore) SaveFile(ctx context.Context, id, text string) error {
	if err := r.client.Set(ctx, r.key("file", id), text, r.ttl).Err(); err != nil {
		return fmt.Errorf("saving file of session %s: %w", id, err)
	}
	return nil
}

// LoadFile reads the raw CSV text of a session.
func (r *RedisStore) LoadFile(ctx context.Context, id string) (string, error) {
	text, err := r.client.Get(ctx, r.key("file", id)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoFile
	}
	if err != nil {
		return "", fmt.Errorf("loading file of session %s: %w", id, err)
	}
	return text, nil
}

// SaveProgress stores the latest upload progress.
func (r *RedisStore) SaveProgress(ctx context.Context, id string, p domain.UploadProgress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshaling progress: %w", err)
	}
	if err := r.client.Set(ctx, r.key("progress", id), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("saving progress of session %s: %w", id, err)
	}
	return nil
}

// LoadProgress returns the stored progress, or an idle progress when no
// upload has started.
func (r *RedisStore) LoadProgress(ctx context.Context, id string) (domain.UploadProgress, error) {
	data, err := r.client.Get(ctx, r.key("progress", id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.UploadProgress{State: domain.UploadIdle}, nil
	}
	if err != nil {
		return domain.UploadProgress{}, fmt.Errorf("loading progress of session %s: %w", id, err)
	}

	var p domain.UploadProgress
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.UploadProgress{}, fmt.Errorf("decoding progress of session %s: %w", id, err)
	}
	return p, nil
}

// Lock takes the distributed session lock, polling until ctx ends. The
// lock is extended every third of its TTL until the returned func runs.
func (r *RedisStore) Lock(ctx context.Context, id string) (func(), error) {
	l := distlock.NewRedisLock(r.client, r.key("session", id), r.lockTTL)
	if err := distlock.Wait(ctx, l, lockInterval); err != nil {
		if errors.Is(err, distlock.ErrNotAcquired) || ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrLocked, err)
		}
		return nil, err
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(r.lockTTL / 3)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if err := l.Extend(context.Background(), r.lockTTL); err != nil {
					logger.Warn("session lock extend failed", "session_id", id, "error", err.Error())
					return
				}
			}
		}
	}()

	return func() {
		close(stop)
		<-done
		// The caller's context may already be done.
		if err := l.Release(context.Background()); err != nil {
			logger.Warn("session lock release failed", "session_id", id, "error", err.Error())
		}
	}, nil
}
