package waybill

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/tournevent/shipgate/pkg/shipper"
)

// Backlog stores unconsumed waybills per carrier. Pop is destructive.
type Backlog interface {
	Push(ctx context.Context, carrier string, wbs []shipper.Waybill) error
	Pop(ctx context.Context, carrier string, n int) ([]shipper.Waybill, error)
	Len(ctx context.Context, carrier string) (int, error)
}

// MemoryBacklog keeps waybills in process memory.
type MemoryBacklog struct {
	mu    sync.Mutex
	lists map[string][]shipper.Waybill
}

// NewMemoryBacklog creates an empty in-memory backlog.
func NewMemoryBacklog() *MemoryBacklog {
	return &MemoryBacklog{lists: make(map[string][]shipper.Waybill)}
}

func (m *MemoryBacklog) Push(_ context.Context, carrier string, wbs []shipper.Waybill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists[carrier] = append(m.lists[carrier], wbs...)
	return nil
}

func (m *MemoryBacklog) Pop(_ context.Context, carrier string, n int) ([]shipper.Waybill, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := m.lists[carrier]
	if n > len(list) {
		n = len(list)
	}
	out := make([]shipper.Waybill, n)
	copy(out, list[:n])
	m.lists[carrier] = list[n:]
	return out, nil
}

func (m *MemoryBacklog) Len(_ context.Context, carrier string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lists[carrier]), nil
}

// RedisBacklog keeps one Redis list per carrier so several gateway processes
// draw from the same reserve. LPOP with a count hands each number to exactly
// one caller.
type RedisBacklog struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisBacklog creates a Redis-backed backlog with keys prefix+carrier.
func NewRedisBacklog(client redis.UniversalClient, prefix string) *RedisBacklog {
	if prefix == "" {
		prefix = "shipgate:waybills:"
	}
	return &RedisBacklog{client: client, prefix: prefix}
}

func (r *RedisBacklog) key(carrier string) string {
	return r.prefix + carrier
}

func (r *RedisBacklog) Push(ctx context.Context, carrier string, wbs []shipper.Waybill) error {
	if len(wbs) == 0 {
		return nil
	}
	values := make([]any, len(wbs))
	for i, wb := range wbs {
		values[i] = wb.Number
	}
	if err := r.client.RPush(ctx, r.key(carrier), values...).Err(); err != nil {
		return fmt.Errorf("redis rpush %s: %w", carrier, err)
	}
	return nil
}

func (r *RedisBacklog) Pop(ctx context.Context, carrier string, n int) ([]shipper.Waybill, error) {
	numbers, err := r.client.LPopCount(ctx, r.key(carrier), n).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis lpop %s: %w", carrier, err)
	}
	out := make([]shipper.Waybill, len(numbers))
	for i, num := range numbers {
		out[i] = shipper.Waybill{Number: num, Carrier: carrier}
	}
	return out, nil
}

func (r *RedisBacklog) Len(ctx context.Context, carrier string) (int, error) {
	n, err := r.client.LLen(ctx, r.key(carrier)).Result()
	if err != nil {
		return 0, fmt.Errorf("redis llen %s: %w", carrier, err)
	}
	return int(n), nil
}

var (
	_ Backlog = (*MemoryBacklog)(nil)
	_ Backlog = (*RedisBacklog)(nil)
)
