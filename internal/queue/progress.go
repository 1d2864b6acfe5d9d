package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// progressTTL 进度键的过期时间
// 进度是建议性的,过期丢失不影响任务状态
const progressTTL = 24 * time.Hour

// RedisProgressStore 基于 Redis 的进度存储
type RedisProgressStore struct {
	client *redis.Client
}

// NewRedisProgressStore 创建 Redis 进度存储
func NewRedisProgressStore(addr, password string, db int) *RedisProgressStore {
	return &RedisProgressStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

// Ping 探测 Redis 连通性
func (s *RedisProgressStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close 关闭连接
func (s *RedisProgressStore) Close() error {
	return s.client.Close()
}

func progressKey(taskID string) string {
	return fmt.Sprintf("task:progress:%s", taskID)
}

// Set 写入任务进度
func (s *RedisProgressStore) Set(ctx context.Context, taskID string, progress int) error {
	return s.client.Set(ctx, progressKey(taskID), progress, progressTTL).Err()
}

// Get 读取任务进度
func (s *RedisProgressStore) Get(ctx context.Context, taskID string) (int, bool, error) {
	value, err := s.client.Get(ctx, progressKey(taskID)).Int()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return value, true, nil
}

// Clear 清除任务进度
func (s *RedisProgressStore) Clear(ctx context.Context, taskID string) error {
	return s.client.Del(ctx, progressKey(taskID)).Err()
}

// MemoryProgressStore 进程内进度存储
// Redis 未启用时的替代实现,语义与 Redis 版一致
type MemoryProgressStore struct {
	mu       sync.RWMutex
	progress map[string]int
}

// NewMemoryProgressStore 创建进程内进度存储
func NewMemoryProgressStore() *MemoryProgressStore {
	return &MemoryProgressStore{progress: make(map[string]int)}
}

// Set 写入任务进度
func (s *MemoryProgressStore) Set(ctx context.Context, taskID string, progress int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress[taskID] = progress
	return nil
}

// Get 读取任务进度
func (s *MemoryProgressStore) Get(ctx context.Context, taskID string) (int, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.progress[taskID]
	return value, ok, nil
}

// Clear 清除任务进度
func (s *MemoryProgressStore) Clear(ctx context.Context, taskID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.progress, taskID)
	return nil
}
