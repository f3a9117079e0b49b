package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"voucly/internal/models"

	"github.com/redis/go-redis/v9"
)

// CacheService wraps the redis client with JSON encoding and the key scheme
// used across read paths. Cached reads may be stale; every state-changing
// service invalidates the keys it touches.
type CacheService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCacheService(client *redis.Client, defaultTTL time.Duration) *CacheService {
	return &CacheService{
		client: client,
		ttl:    defaultTTL,
	}
}

// Base operations
func (s *CacheService) Set(ctx context.Context, key string, value interface{}) error {
	return s.SetWithTTL(ctx, key, value, s.ttl)
}

func (s *CacheService) SetWithTTL(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		return false, fmt.Errorf("failed to get cache value: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache value: %w", err)
	}
	return true, nil
}

func (s *CacheService) Delete(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

func (s *CacheService) FlushAll(ctx context.Context) error {
	return s.client.FlushAll(ctx).Err()
}

func (s *CacheService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *CacheService) Close() error {
	return s.client.Close()
}

// Key generation
func (s *CacheService) GenerateKey(entityType, keyType string, value interface{}) string {
	return fmt.Sprintf("%s:%s:%v", entityType, keyType, value)
}

// Voucher caching
func (s *CacheService) CacheVoucher(ctx context.Context, v *models.Voucher) error {
	return s.Set(ctx, s.GenerateKey("voucher", "code", v.Code), v)
}

func (s *CacheService) GetVoucher(ctx context.Context, code string) (*models.Voucher, error) {
	var v models.Voucher
	found, err := s.Get(ctx, s.GenerateKey("voucher", "code", code), &v)
	if err != nil || !found {
		return nil, err
	}
	return &v, nil
}

func (s *CacheService) InvalidateVoucher(ctx context.Context, code string) error {
	return s.Delete(ctx, s.GenerateKey("voucher", "code", code))
}

// Pending-operation list caching. The list is a stale-tolerant read path;
// writers invalidate it after every accepted state change.
const pendingOperationsKey = "operations:pending"

func (s *CacheService) CachePendingOperations(ctx context.Context, ops []models.Operation) error {
	return s.SetWithTTL(ctx, pendingOperationsKey, ops, 30*time.Second)
}

func (s *CacheService) GetPendingOperations(ctx context.Context) ([]models.Operation, bool, error) {
	var ops []models.Operation
	found, err := s.Get(ctx, pendingOperationsKey, &ops)
	return ops, found, err
}

func (s *CacheService) InvalidatePendingOperations(ctx context.Context) error {
	return s.Delete(ctx, pendingOperationsKey)
}

// Stats snapshot caching
const operationStatsKey = "operations:stats"

func (s *CacheService) CacheOperationStats(ctx context.Context, stats interface{}) error {
	return s.SetWithTTL(ctx, operationStatsKey, stats, 30*time.Second)
}

func (s *CacheService) GetOperationStats(ctx context.Context, dest interface{}) (bool, error) {
	return s.Get(ctx, operationStatsKey, dest)
}
