package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/workforce-scheduling/backend/internal/domain"
)

// ErrNotAcquired 表示锁已被其他请求持有
var ErrNotAcquired = fmt.Errorf("%w: 操作正在进行中，请稍后重试", domain.ErrConflict)

// 只有持有者才能释放锁，防止锁过期后误删其他请求的锁
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	client *redis.Client
	prefix string
}

func NewRedisLocker(client *redis.Client, prefix string) *RedisLocker {
	return &RedisLocker{
		client: client,
		prefix: prefix,
	}
}

// Acquire 尝试获取 key 对应的锁，锁在 ttl 后自动过期。
// 返回的 release 可以重复调用。
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	fullKey := l.prefix + key
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, fullKey, token, ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	var once sync.Once
	release := func() {
		once.Do(func() { l.release(fullKey, token) })
	}

	return release, nil
}

func (l *RedisLocker) release(fullKey, token string) {
	// 请求的 ctx 可能已经被取消，释放锁使用独立的 ctx
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		slog.Error("无法释放锁", "key", fullKey, "error", err)
	}
}
