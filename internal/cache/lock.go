package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/invite-center/internal/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	defaultLockTTL      = 15 * time.Second
	defaultLockRetryGap = 50 * time.Millisecond
)

// ErrLockTimeout 等待分布式锁超时
var ErrLockTimeout = errors.New("redis lock wait timeout")

var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

var renewLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisKeyLocker 基于 SET NX PX 的跨进程按键锁
type RedisKeyLocker struct {
	client   *redis.Client
	ttl      time.Duration
	retryGap time.Duration
	maxWait  time.Duration
}

// NewRedisKeyLocker 创建分布式按键锁，ttl 为单次租约，持有期间按 ttl/3 续期
func NewRedisKeyLocker(client *redis.Client, ttl, maxWait time.Duration) *RedisKeyLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if maxWait <= 0 {
		maxWait = ttl
	}
	return &RedisKeyLocker{
		client:   client,
		ttl:      ttl,
		retryGap: defaultLockRetryGap,
		maxWait:  maxWait,
	}
}

// Lock 获取锁，返回的 unlock 只释放自己持有的锁
func (l *RedisKeyLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l == nil || l.client == nil {
		return nil, errors.New("redis lock client not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	lockKey := buildKey("lock:" + key)
	token := uuid.NewString()
	deadline := time.Now().Add(l.maxWait)

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, ErrLockTimeout
		}
		timer := time.NewTimer(l.retryGap)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	stop := make(chan struct{})
	renewed := make(chan struct{})
	go l.keepAlive(lockKey, token, stop, renewed)

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-renewed
			releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = releaseLockScript.Run(releaseCtx, l.client, []string{lockKey}, token).Err()
		})
	}, nil
}

// keepAlive 持有期间续期租约，续期失败说明锁已丢失
func (l *RedisKeyLocker) keepAlive(lockKey, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(lockRenewInterval(l.ttl))
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		renewCtx, cancel := context.WithTimeout(context.Background(), l.ttl/2)
		kept, err := renewLockScript.Run(renewCtx, l.client, []string{lockKey}, token, l.ttl.Milliseconds()).Int64()
		cancel()
		if err != nil {
			logger.Warnw("redis_lock_renew_failed", "key", lockKey, "error", err)
			continue
		}
		if kept == 0 {
			logger.Warnw("redis_lock_lost", "key", lockKey)
			return
		}
	}
}

func lockRenewInterval(ttl time.Duration) time.Duration {
	interval := ttl / 3
	if interval < 10*time.Millisecond {
		interval = 10 * time.Millisecond
	}
	return interval
}
