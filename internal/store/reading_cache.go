package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrCacheMiss 缓存未命中
var ErrCacheMiss = errors.New("reading not cached")

// LatestReading 最近一次分类结果（缓存于 Redis，供 /api/predict 快速读取）
type LatestReading struct {
	UserID      int64     `json:"user_id"`
	Timestamp   time.Time `json:"timestamp"`
	GSR         float64   `json:"gsr"`
	HeartRate   float64   `json:"heart_rate"`
	Temperature float64   `json:"temperature"`
	StressLevel int       `json:"stress_level"`
}

// ReadingCache 最近读数缓存管理器
type ReadingCache struct {
	redisClient *redis.Client
	keyPrefix   string
	ttl         time.Duration
	logger      *zap.Logger
}

// NewReadingCache 创建读数缓存
func NewReadingCache(redisClient *redis.Client, logger *zap.Logger) *ReadingCache {
	return &ReadingCache{
		redisClient: redisClient,
		keyPrefix:   "auticare:user:",
		ttl:         10 * time.Minute,
		logger:      logger,
	}
}

func (c *ReadingCache) key(userID int64) string {
	return fmt.Sprintf("%s%d:latest", c.keyPrefix, userID)
}

// SetLatest 写入最近读数（带 TTL）
func (c *ReadingCache) SetLatest(ctx context.Context, reading *LatestReading) error {
	jsonData, err := json.Marshal(reading)
	if err != nil {
		return fmt.Errorf("failed to marshal reading: %w", err)
	}

	if err := c.redisClient.Set(ctx, c.key(reading.UserID), jsonData, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache reading: %w", err)
	}

	return nil
}

// GetLatest 读取最近读数
func (c *ReadingCache) GetLatest(ctx context.Context, userID int64) (*LatestReading, error) {
	val, err := c.redisClient.Get(ctx, c.key(userID)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("failed to get cached reading: %w", err)
	}

	var reading LatestReading
	if err := json.Unmarshal([]byte(val), &reading); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached reading: %w", err)
	}

	return &reading, nil
}

// Invalidate 删除用户的缓存读数
func (c *ReadingCache) Invalidate(ctx context.Context, userID int64) error {
	if err := c.redisClient.Del(ctx, c.key(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate cached reading: %w", err)
	}
	return nil
}
