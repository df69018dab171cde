package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// A character's money, inventory and equipment are always touched inside
// one database transaction holding the character row lock. The Redis lock
// on top keeps requests for the same character from queueing on that row
// lock across service instances: only the holder opens a transaction.
//
// Acquire: SET key token NX PX ttl. Release: compare-and-delete in Lua so
// a holder whose lock already expired cannot delete its successor's lock.

var ErrLockFailed = errors.New("failed to acquire distributed lock")

const unlockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

// DistributedLock is a single Redis mutex.
type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string // holder token, checked on release
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock makes one non-blocking attempt.
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock retries TryLock until it succeeds, ctx ends, or maxRetries is spent.
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

// Unlock releases the lock if it is still held by this token.
func (l *DistributedLock) Unlock(ctx context.Context) error {
	return l.client.Eval(ctx, unlockScript, []string{l.key}, l.value).Err()
}

// CharacterKey is the Redis key guarding one character.
func CharacterKey(characterID int64) string {
	return fmt.Sprintf("itemsim:lock:character:%d", characterID)
}

// CharacterLocker hands out per-character locks backed by one client.
type CharacterLocker struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
	maxRetries    int
}

func NewCharacterLocker(client *redis.Client, ttl, retryInterval time.Duration, maxRetries int) *CharacterLocker {
	return &CharacterLocker{
		client:        client,
		ttl:           ttl,
		retryInterval: retryInterval,
		maxRetries:    maxRetries,
	}
}

// LockCharacter blocks until the character's lock is held by token and
// returns the matching release function.
func (l *CharacterLocker) LockCharacter(ctx context.Context, characterID int64, token string) (func(), error) {
	dl := NewDistributedLock(l.client, CharacterKey(characterID), token, l.ttl)
	if err := dl.Lock(ctx, l.retryInterval, l.maxRetries); err != nil {
		return nil, err
	}
	return func() {
		// the request context may already be cancelled; release regardless
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = dl.Unlock(ctx)
	}, nil
}
