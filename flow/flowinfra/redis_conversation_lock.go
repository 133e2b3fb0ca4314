package flowinfra

import (
	"context"
	"time"

	"github.com/Abraxas-365/craftable/logx"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/xkayo32/pytake-flow/flow"
	"github.com/xkayo32/pytake-flow/pkg/kernel"
)

const (
	lockPrefix     = "pytake:conv_lock:"
	defaultLockTTL = 30 * time.Second
)

// release sólo si el lock sigue siendo nuestro
var releaseScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// RedisConversationLock serializa los ticks por conversación entre procesos:
// SET NX con TTL, y release verificando el dueño. Un mensaje que llega
// mientras otro tick corre se rechaza con CONVERSATION_LOCKED; WhatsApp
// reintenta el webhook.
type RedisConversationLock struct {
	redis *redis.Client
	ttl   time.Duration
}

var _ flow.ConversationLocker = (*RedisConversationLock)(nil)

func NewRedisConversationLock(redisClient *redis.Client, ttl time.Duration) *RedisConversationLock {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisConversationLock{redis: redisClient, ttl: ttl}
}

func (l *RedisConversationLock) Acquire(ctx context.Context, id kernel.ConversationID) (func(), error) {
	key := lockPrefix + id.String()
	owner := uuid.New().String()

	acquired, err := l.redis.SetNX(ctx, key, owner, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, flow.ErrConversationLocked().WithDetail("conversation_id", id.String())
	}

	release := func() {
		// contexto propio: el release debe correr aunque el tick haya expirado
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := releaseScript.Run(releaseCtx, l.redis, []string{key}, owner).Err(); err != nil && err != redis.Nil {
			logx.Error("failed to release conversation lock %s: %v", id.String(), err)
		}
	}

	return release, nil
}
