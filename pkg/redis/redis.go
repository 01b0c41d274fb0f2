package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/dmills/storefront-backend/config"
	"github.com/dmills/storefront-backend/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// invalidationChannel carries product invalidation fanout between server
// instances. Each instance subscribes and re-broadcasts to its own
// websocket clients.
const invalidationChannel = "storefront:invalidations"

var client *redis.Client

// Init initializes Redis connection
func Init(cfg *config.RedisConfig) error {
	logger.Info("Initializing Redis connection", map[string]interface{}{
		"host": cfg.Host,
		"port": cfg.Port,
		"db":   cfg.DB,
	})

	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", err, map[string]interface{}{
			"host": cfg.Host,
			"port": cfg.Port,
		})
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Redis connection established successfully", nil)
	return nil
}

// GetClient returns the Redis client instance
func GetClient() *redis.Client {
	return client
}

// Close closes the Redis connection
func Close() error {
	if client != nil {
		logger.Info("Closing Redis connection", nil)
		return client.Close()
	}
	return nil
}

// PublishInvalidation publishes a product slug to the cross-instance
// invalidation channel.
func PublishInvalidation(ctx context.Context, slug string) error {
	if client == nil {
		return nil
	}

	if err := client.Publish(ctx, invalidationChannel, slug).Err(); err != nil {
		logger.Error("Failed to publish invalidation", err, map[string]interface{}{
			"slug": slug,
		})
		return err
	}

	logger.Debug("Invalidation published", map[string]interface{}{
		"slug": slug,
	})
	return nil
}

// SubscribeInvalidations subscribes to the invalidation channel and invokes
// handler for each received product slug. Blocks until ctx is cancelled.
func SubscribeInvalidations(ctx context.Context, handler func(slug string)) error {
	if client == nil {
		return fmt.Errorf("redis client not initialized")
	}

	sub := client.Subscribe(ctx, invalidationChannel)
	defer sub.Close()

	logger.Info("Subscribed to invalidation channel", map[string]interface{}{
		"channel": invalidationChannel,
	})

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			handler(msg.Payload)
		}
	}
}
