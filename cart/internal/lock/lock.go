package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/skatehub/ecommerce/cart/internal/common/otel"
	inErrors "github.com/skatehub/ecommerce/internal/common/errors"
	"github.com/skatehub/ecommerce/internal/log"
)

const keyCartMutex = "cart:mutex:%s"

// releaseScript deletes the lock key only when it still holds our token, so a
// lock that expired and was re-acquired by another request is never released
// by the original holder.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// UserLock serializes cart mutations per user. Two concurrent mutations for
// the same user take turns; mutations for different users do not contend.
type UserLock struct {
	client *redis.Client
	ttl    time.Duration
	retry  time.Duration
}

func NewUserLock(client *redis.Client) UserLock {
	return UserLock{
		client: client,
		ttl:    10 * time.Second,
		retry:  50 * time.Millisecond,
	}
}

// Acquire blocks until the per-user lock is held or the context is done. The
// returned function releases the lock.
func (l UserLock) Acquire(c context.Context, userId string) (func(context.Context) error, error) {
	c, span := otel.Tracer.Start(c, "UserLock Acquire")
	defer span.End()

	key := fmt.Sprintf(keyCartMutex, userId)
	token := uuid.NewString()

	logger := zerolog.Ctx(c).
		With().
		Str(log.KeyTag, "UserLock Acquire").
		Str(log.KeyLockKey, key).
		Logger()

	for {
		ok, err := l.client.SetNX(c, key, token, l.ttl).Result()
		if err != nil {
			err = fmt.Errorf("failed acquiring lock key=%s with error=%w", key, err)
			inErrors.HandleError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-c.Done():
			err = fmt.Errorf("failed acquiring lock key=%s with error=%w", key, c.Err())
			inErrors.HandleError(err, span)
			logger.Error().Err(err).Msg(err.Error())
			return nil, err
		case <-time.After(l.retry):
		}
	}

	release := func(rc context.Context) error {
		err := releaseScript.Run(rc, l.client, []string{key}, token).Err()
		if err != nil {
			return fmt.Errorf("failed releasing lock key=%s with error=%w", key, err)
		}
		return nil
	}
	return release, nil
}
