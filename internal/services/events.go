package services

import (
	"context"
	"fmt"
	"os"
	"time"

	rabbit "kasuwa/internal/infra/rabbitmq"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Str("component", "services").Logger()

// publish is best effort: the state change it reports is already committed.
func publish(ctx context.Context, pub rabbit.PublisherInterface, routingKey string, evt any) {
	if pub == nil {
		return
	}
	if err := pub.Publish(ctx, routingKey, evt); err != nil {
		logger.Error().Err(err).Msgf("Failed to publish %s event", routingKey)
	}
}

func productCacheKey(id uint) string {
	return fmt.Sprintf("product:%d", id)
}

func invalidateProducts(ctx context.Context, rdb *redis.Client, ids ...uint) {
	if rdb == nil || len(ids) == 0 {
		return
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, productCacheKey(id))
	}
	if err := rdb.Del(ctx, keys...).Err(); err != nil {
		logger.Warn().Err(err).Msg("Failed to invalidate product cache")
	}
}

func utcNow() time.Time {
	return time.Now().UTC()
}
