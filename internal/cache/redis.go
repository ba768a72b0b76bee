package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"storefront-bff/internal/models"
	"storefront-bff/internal/validation"
)

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("cache miss")

type Client struct {
	rdb *redis.Client
}

func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		return nil, err
	}

	return &Client{rdb: rdb}, nil
}

// IsRateLimited counts a hit for key in a fixed window. Redis errors let
// the request through.
func (c *Client) IsRateLimited(ctx context.Context, key string, maxRequests int, window time.Duration) bool {
	if maxRequests <= 0 {
		return false
	}
	key = "ratelimit:" + key

	pipe := c.rdb.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	_, err := pipe.Exec(ctx)

	if err != nil {
		return false
	}

	return incr.Val() > int64(maxRequests)
}

func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return b, err
}

func (c *Client) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, data, ttl).Err()
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func ProductsKey(q models.ProductQuery) string {
	return fmt.Sprintf("products:%s:%s:%d:%d", q.Category, hash(q.Search), q.Page, q.PageSize)
}

func ProductKey(id string) string {
	return "product:" + id
}

func CEPKey(cep string) string {
	return "cep:" + validation.OnlyDigits(cep)
}

// FreightKey identifies a quote by destination and box.
func FreightKey(req models.FreightQuoteRequest) string {
	return fmt.Sprintf("freight:%s:%s:%dx%dx%d:%.3f:%s",
		validation.OnlyDigits(req.OriginCEP),
		validation.OnlyDigits(req.DestinationCEP),
		req.Height, req.Width, req.Length,
		req.Weight,
		req.DeclaredValue.StringFixed(2),
	)
}

func hash(s string) string {
	if s == "" {
		return "-"
	}
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}
