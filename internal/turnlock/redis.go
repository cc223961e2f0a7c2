// README: Redis-backed Locker (SET NX PX with a token, refreshed while held, compare-and-delete release).
package turnlock

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix          = "tripmate:turn:"
	defaultTTL         = 2 * time.Minute
	defaultRetryPeriod = 50 * time.Millisecond
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var refreshScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

type RedisLocker struct {
	rdb     *redis.Client
	ttl     time.Duration
	retry   time.Duration
	refresh time.Duration
	logger  *slog.Logger
}

// NewRedisLocker returns a Locker whose holds expire after ttl unless the
// holder is alive. A live holder extends its key every ttl/3, so a turn may
// run longer than ttl while a crashed process frees the session within ttl.
func NewRedisLocker(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLocker{
		rdb:     rdb,
		ttl:     ttl,
		retry:   defaultRetryPeriod,
		refresh: ttl / 3,
		logger:  logger.With("component", "turnlock"),
	}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := keyPrefix + key
	token := uuid.New().String()

	ticker := time.NewTicker(l.retry)
	defer ticker.Stop()
	for {
		ok, err := l.rdb.SetNX(ctx, redisKey, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, errors.Join(ErrLockTimeout, ctxErr)
			}
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrLockTimeout, ctx.Err())
		case <-ticker.C:
		}
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(redisKey, token, stop, done)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			// release must not depend on the caller's (possibly finished) context
			rctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, l.rdb, []string{redisKey}, token).Err(); err != nil {
				l.logger.Warn("failed to release turn lock", "key", key, "error", err)
			}
		})
	}, nil
}

// keepAlive extends the key while it still holds token. It stops on stop or
// once the key has been lost.
func (l *RedisLocker) keepAlive(redisKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(l.refresh)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), l.refresh)
		n, err := refreshScript.Run(ctx, l.rdb, []string{redisKey}, token, l.ttl.Milliseconds()).Int()
		cancel()
		switch {
		case err != nil:
			l.logger.Warn("failed to refresh turn lock", "key", redisKey, "error", err)
		case n == 0:
			l.logger.Error("turn lock lost before release", "key", redisKey)
			return
		}
	}
}
