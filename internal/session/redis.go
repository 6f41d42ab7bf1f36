package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const resetNamespace = "pwreset"

// RedisMarkers stores markers as expiring keys so every app instance sees them.
type RedisMarkers struct {
	client redis.UniversalClient
}

var _ ResetMarkers = (*RedisMarkers)(nil)

// NewRedisMarkers wraps an existing client.
func NewRedisMarkers(client redis.UniversalClient) *RedisMarkers {
	return &RedisMarkers{client: client}
}

// NewRedisClient builds a single-node or cluster client depending on addrs.
func NewRedisClient(addrs []string, password string) redis.UniversalClient {
	if len(addrs) > 1 {
		return redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    addrs,
			Password: password,
		})
	}
	return redis.NewClient(&redis.Options{
		Addr:     addrs[0],
		Password: password,
		DB:       0,
	})
}

func key(token string) string {
	return resetNamespace + ":" + token
}

func (r *RedisMarkers) Create(ctx context.Context, userID int64, ttl time.Duration) (string, error) {
	token := newToken()
	if err := r.client.Set(ctx, key(token), strconv.FormatInt(userID, 10), ttl).Err(); err != nil {
		return "", fmt.Errorf("store reset marker: %w", err)
	}
	return token, nil
}

func (r *RedisMarkers) Lookup(ctx context.Context, token string) (int64, error) {
	return decodeMarker(r.client.Get(ctx, key(token)).Result())
}

// Consume uses GETDEL so concurrent callers cannot both read the marker.
func (r *RedisMarkers) Consume(ctx context.Context, token string) (int64, error) {
	return decodeMarker(r.client.GetDel(ctx, key(token)).Result())
}

func decodeMarker(val string, err error) (int64, error) {
	if errors.Is(err, redis.Nil) {
		return 0, ErrMarkerNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("load reset marker: %w", err)
	}
	userID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("decode reset marker: %w", err)
	}
	return userID, nil
}
