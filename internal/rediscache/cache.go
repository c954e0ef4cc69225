// Package rediscache is a Redis-backed distance cache. Each grid point is a
// hash keyed by port id holding the distance in km.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"agriport/internal/database"
	"agriport/internal/models"
)

const scanCount = 500

// Options configures a Cache
type Options struct {
	KeyPrefix string
	TTL       time.Duration // zero means no expiry
	Logger    *zap.Logger
}

// Cache implements database.DistanceCacheRepository for one grid key
type Cache struct {
	client  redis.Cmdable
	prefix  string
	gridKey string
	ttl     time.Duration
	logger  *zap.Logger
}

var _ database.DistanceCacheRepository = (*Cache)(nil)

// NewClient opens a Redis client and verifies it with PING
func NewClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// New creates a cache for gridKey on client
func New(client redis.Cmdable, gridKey string, opts Options) *Cache {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "agriport"
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Cache{
		client:  client,
		prefix:  opts.KeyPrefix,
		gridKey: gridKey,
		ttl:     opts.TTL,
		logger:  opts.Logger,
	}
}

func (c *Cache) key(gridPointID int64) string {
	return fmt.Sprintf("%s:dist:%s:%d", c.prefix, c.gridKey, gridPointID)
}

func (c *Cache) GetBatch(ctx context.Context, gridPointIDs, portIDs []int64) (map[models.PairKey]float64, error) {
	result := make(map[models.PairKey]float64)
	if len(gridPointIDs) == 0 || len(portIDs) == 0 {
		return result, nil
	}

	fields := make([]string, len(portIDs))
	for j, id := range portIDs {
		fields[j] = strconv.FormatInt(id, 10)
	}

	cmds := make([]*redis.SliceCmd, len(gridPointIDs))
	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, gp := range gridPointIDs {
			cmds[i] = pipe.HMGet(ctx, c.key(gp), fields...)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read distances: %w", err)
	}

	for i, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("failed to read distances for grid point %d: %w", gridPointIDs[i], err)
		}
		for j, v := range vals {
			s, ok := v.(string)
			if !ok || j >= len(portIDs) {
				continue
			}
			km, err := strconv.ParseFloat(s, 64)
			if err != nil {
				c.logger.Warn("[REDIS] Ignoring malformed cached distance",
					zap.String("key", c.key(gridPointIDs[i])), zap.String("field", fields[j]), zap.String("value", s))
				continue
			}
			result[models.PairKey{GridPointID: gridPointIDs[i], PortID: portIDs[j]}] = km
		}
	}

	return result, nil
}

func (c *Cache) SetBatch(ctx context.Context, records []models.DistanceRecord) error {
	var order []int64
	values := make(map[int64][]interface{})
	for _, rec := range records {
		km, ok := rec.DistanceKm.Get()
		if !ok {
			continue
		}
		if _, seen := values[rec.GridPointID]; !seen {
			order = append(order, rec.GridPointID)
		}
		values[rec.GridPointID] = append(values[rec.GridPointID],
			strconv.FormatInt(rec.PortID, 10), strconv.FormatFloat(km, 'f', -1, 64))
	}
	if len(order) == 0 {
		return nil
	}

	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, gp := range order {
			key := c.key(gp)
			pipe.HSet(ctx, key, values[gp]...)
			if c.ttl > 0 {
				pipe.Expire(ctx, key, c.ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write distances: %w", err)
	}
	return nil
}

// Clear deletes every cached distance of the grid key
func (c *Cache) Clear(ctx context.Context) error {
	pattern := fmt.Sprintf("%s:dist:%s:*", c.prefix, c.gridKey)

	var cursor uint64
	deleted := 0
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, scanCount).Result()
		if err != nil {
			return fmt.Errorf("failed to scan distance keys: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("failed to delete distance keys: %w", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	c.logger.Info("[REDIS] Distance cache cleared", zap.String("grid_key", c.gridKey), zap.Int("keys", deleted))
	return nil
}
