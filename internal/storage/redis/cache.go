package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	probeTTL          = 5 * time.Minute
	dashboardStatsTTL = 30 * time.Second
)

// ErrCacheMiss is returned when a key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

type Client struct {
	*redis.Client
}

// NewClient returns nil when redisURL is empty; a nil *Client is a valid,
// always-missing cache.
func NewClient(redisURL string) *Client {
	if redisURL == "" {
		return nil
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		opt = &redis.Options{
			Addr: redisURL,
		}
	}

	return &Client{redis.NewClient(opt)}
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.Client.Ping(ctx).Err()
}

func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return c.Client.Close()
}

func (c *Client) SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if c == nil {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.Set(ctx, key, data, expiration).Err()
}

func (c *Client) GetJSON(ctx context.Context, key string, dest interface{}) error {
	if c == nil {
		return ErrCacheMiss
	}

	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return err
	}

	return json.Unmarshal(data, dest)
}

func (c *Client) CacheProbe(ctx context.Context, clientID string, probe interface{}) error {
	return c.SetJSON(ctx, probeKey(clientID), probe, probeTTL)
}

func (c *Client) GetCachedProbe(ctx context.Context, clientID string, dest interface{}) error {
	return c.GetJSON(ctx, probeKey(clientID), dest)
}

func (c *Client) CacheDashboardStats(ctx context.Context, userID string, stats interface{}) error {
	return c.SetJSON(ctx, dashboardStatsKey(userID), stats, dashboardStatsTTL)
}

func (c *Client) GetCachedDashboardStats(ctx context.Context, userID string, dest interface{}) error {
	return c.GetJSON(ctx, dashboardStatsKey(userID), dest)
}

// InvalidateDashboard drops cached dashboard figures after data changes.
func (c *Client) InvalidateDashboard(ctx context.Context, userID string) error {
	if c == nil {
		return nil
	}
	return c.Del(ctx, dashboardStatsKey(userID)).Err()
}

func probeKey(clientID string) string {
	return fmt.Sprintf("client:probe:%s", clientID)
}

func dashboardStatsKey(userID string) string {
	return fmt.Sprintf("dashboard:stats:%s", userID)
}
