package lock

import (
	"context"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"crm_backend/platform/config"
)

const (
	defaultKeyPrefix    = "crm:lock:"
	defaultPollInterval = 25 * time.Millisecond
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lock taken over by another holder is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker backed by SET NX PX on a shared Redis.
type RedisLocker struct {
	client       redis.UniversalClient
	prefix       string
	ttl          time.Duration
	wait         time.Duration
	pollInterval time.Duration
}

// RedisOption customises a RedisLocker.
type RedisOption func(*RedisLocker)

// WithKeyPrefix overrides the default key prefix.
func WithKeyPrefix(prefix string) RedisOption {
	return func(l *RedisLocker) { l.prefix = prefix }
}

// WithPollInterval overrides how often a contended lock is retried.
func WithPollInterval(d time.Duration) RedisOption {
	return func(l *RedisLocker) {
		if d > 0 {
			l.pollInterval = d
		}
	}
}

// NewRedisLocker creates a RedisLocker. ttl bounds how long a crashed holder
// can block others; wait bounds how long Acquire retries.
func NewRedisLocker(client redis.UniversalClient, ttl, wait time.Duration, opts ...RedisOption) *RedisLocker {
	l := &RedisLocker{
		client:       client,
		prefix:       defaultKeyPrefix,
		ttl:          ttl,
		wait:         wait,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewRedisClient builds a go-redis client from a redis:// or rediss:// URL.
func NewRedisClient(cfg config.LockConfig) (*redis.Client, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	if cfg.GetRedisTLSInsecure() {
		if opt.TLSConfig != nil {
			opt.TLSConfig = opt.TLSConfig.Clone()
			opt.TLSConfig.InsecureSkipVerify = true
		} else {
			opt.TLSConfig = &tls.Config{InsecureSkipVerify: true}
		}
	}

	return redis.NewClient(opt), nil
}

// Acquire polls SET NX until it wins, the wait budget elapses, or ctx is done.
func (l *RedisLocker) Acquire(ctx context.Context, key string) (Unlock, error) {
	token, err := newToken()
	if err != nil {
		return nil, err
	}

	fullKey := l.prefix + key
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		if !time.Now().Before(deadline) {
			return nil, ErrNotAcquired
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.pollInterval):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Release on a fresh context: the caller's may already be cancelled.
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = releaseScript.Run(releaseCtx, l.client, []string{fullKey}, token).Err()
		})
	}, nil
}

func newToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
