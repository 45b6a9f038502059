// Package locksvc serializes concurrent approvals of the same onboarding request.
// The database unique constraints stay the real guard; locks only spare the losing caller a rollback.
package locksvc

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-onboarding/core/approval"
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

type RedisLocker struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
	onErr  func(err error)
}

var _ approval.Locker = (*RedisLocker)(nil)

// NewRedisLocker returns a Locker shared by every API instance.
// Keys expire after ttl, in case the holder dies before unlocking.
func NewRedisLocker(client *redis.Client, ttl time.Duration, onErr func(err error)) *RedisLocker {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisLocker{client: client, ttl: ttl, prefix: "masomo:lock:", onErr: onErr}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	key = l.prefix + key
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "locking %s", key)
	}
	if !ok {
		return nil, approval.ErrLocked
	}
	return func() {
		// the caller's context may be done already
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && l.onErr != nil {
			l.onErr(errors.Wrapf(err, "unlocking %s", key))
		}
	}, nil
}

// LocalLocker only serializes approvals within the current process.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

var _ approval.Locker = (*LocalLocker)(nil)

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

func (l *LocalLocker) Lock(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.held[key]; ok {
		return nil, approval.ErrLocked
	}
	l.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}
