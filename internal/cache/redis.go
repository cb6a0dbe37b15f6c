package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient creates a Redis client with connection pooling.
func NewRedisClient(rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("cache: parse redis url: %w", err)
	}

	opts.PoolSize = 50
	opts.MinIdleConns = 5
	opts.MaxRetries = 3

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("cache: redis ping: %w", err)
	}

	return client, nil
}

// Cache wraps the non-authoritative Redis side state: listing view counters
// and the webhook dedupe fast path. Order/escrow status never lives here;
// Postgres stays the source of truth.
type Cache struct {
	client *redis.Client
}

func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

const (
	viewCountKeyPrefix   = "listing:views:"
	webhookSeenPrefix    = "provider_event:"
	webhookSeenRetention = 72 * time.Hour
)

// IncrementViews bumps the view counter for a listing and returns the new
// total of pending (unflushed) views.
func (c *Cache) IncrementViews(ctx context.Context, listingID uuid.UUID) (int64, error) {
	return c.client.Incr(ctx, viewCountKeyPrefix+listingID.String()).Result()
}

// PendingViews reads the unflushed view count for a listing. Missing key
// means zero.
func (c *Cache) PendingViews(ctx context.Context, listingID uuid.UUID) (int64, error) {
	n, err := c.client.Get(ctx, viewCountKeyPrefix+listingID.String()).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// DrainViews atomically reads and resets the view counter so the caller can
// persist the delta.
func (c *Cache) DrainViews(ctx context.Context, listingID uuid.UUID) (int64, error) {
	n, err := c.client.GetDel(ctx, viewCountKeyPrefix+listingID.String()).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}

// MarkWebhookSeen records a provider event id and reports whether it was
// already seen. This is only a fast path: the authoritative idempotency
// guard is the conditional status transition in Postgres.
func (c *Cache) MarkWebhookSeen(ctx context.Context, eventID string) (alreadySeen bool, err error) {
	set, err := c.client.SetNX(ctx, webhookSeenPrefix+eventID, 1, webhookSeenRetention).Result()
	if err != nil {
		return false, err
	}
	return !set, nil
}
