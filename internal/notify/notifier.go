package notify

import (
	"context"
	"time"

	"github.com/dmills/storefront-backend/internal/websocket"
	"github.com/dmills/storefront-backend/pkg/redis"
)

// InvalidationNotifier fans product invalidations out to this instance's
// websocket clients and, through Redis pub/sub, to every other instance.
type InvalidationNotifier struct {
	hub         *websocket.Hub
	publish     bool
	publishWait time.Duration
}

func NewInvalidationNotifier(hub *websocket.Hub, publishToRedis bool) *InvalidationNotifier {
	return &InvalidationNotifier{
		hub:         hub,
		publish:     publishToRedis,
		publishWait: 2 * time.Second,
	}
}

// ProductChanged broadcasts locally and publishes for other instances.
// Publishing is fire and forget: a cart write never fails because the
// notification fabric is down.
func (n *InvalidationNotifier) ProductChanged(slug string) {
	n.hub.BroadcastInvalidation(slug)

	if !n.publish {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), n.publishWait)
		defer cancel()
		_ = redis.PublishInvalidation(ctx, slug)
	}()
}
