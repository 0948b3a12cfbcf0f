// Package sessionreporedis persists the session record as a sealed value in Redis, for headless
// deployments that share one session between processes.
package sessionreporedis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/jrsteele09/go-blog-client/internal/errors"
	"github.com/jrsteele09/go-blog-client/internal/sealer"
	"github.com/jrsteele09/go-blog-client/session"
	"github.com/redis/go-redis/v9"
)

var _ session.Repo = (*RedisSessionRepo)(nil)

type RedisSessionRepo struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
	sealer *sealer.Sealer
}

// NewRedisSessionRepo stores the record under "<prefix>:<record>". A zero ttl keeps the key forever.
func NewRedisSessionRepo(client redis.UniversalClient, prefix, record string, ttl time.Duration, s *sealer.Sealer) *RedisSessionRepo {
	return &RedisSessionRepo{
		client: client,
		key:    prefix + ":" + record,
		ttl:    ttl,
		sealer: s,
	}
}

func (r *RedisSessionRepo) Key() string {
	return r.key
}

func (r *RedisSessionRepo) Load(ctx context.Context) (*session.Session, error) {
	sealed, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	plain, err := r.sealer.Open(sealed)
	if err != nil {
		return nil, err
	}

	var s session.Session
	if err := json.Unmarshal(plain, &s); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrCorrupt, "invalid session json")
	}
	return &s, nil
}

func (r *RedisSessionRepo) Save(ctx context.Context, s *session.Session) error {
	plain, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	sealed, err := r.sealer.Seal(plain)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key, sealed, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (r *RedisSessionRepo) Delete(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis delete session: %w", err)
	}
	return nil
}
