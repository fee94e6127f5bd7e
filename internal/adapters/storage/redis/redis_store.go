// Package redis disponibiliza o CounterStore compartilhado baseado em Redis.
//
// É o ponto de extensão para operação multi-instância: cada réplica
// conversa com o mesmo conjunto de ZSETs, e a decisão check-and-record é
// atômica via script Lua (poda, conta e registra em um único passo).
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/JeanGrijp/admission-control/internal/core/domain"
	"github.com/JeanGrijp/admission-control/internal/core/ports"
)

type Store struct {
	client *redis.Client
	prefix string
}

var _ ports.CounterStore = (*Store)(nil)

type Config struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// checkScript poda a janela, decide e registra atomicamente.
// Retorna {admitido, contagem corrente, score da entrada mais antiga}.
var checkScript = redis.NewScript(`
local key = KEYS[1]
local window_start = tonumber(ARGV[1])
local now = tonumber(ARGV[2])
local max = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
local current = redis.call('ZCARD', key)

local oldest = now
local first = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if first[2] then
  oldest = tonumber(first[2])
end

if current >= max then
  return {0, current, oldest}
end

local seq = redis.call('INCR', key .. ':seq')
redis.call('ZADD', key, now, now .. '-' .. seq)
redis.call('PEXPIRE', key, ttl)
redis.call('PEXPIRE', key .. ':seq', ttl)

if current == 0 then
  oldest = now
end
return {1, current + 1, oldest}
`)

func New(cfg Config) (*Store, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "admission"
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Store{client: client, prefix: cfg.Prefix}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) CheckAndRecord(ctx context.Context, cat domain.Category, key string, policy domain.LimitPolicy, now time.Time) (domain.Decision, error) {
	k := s.counterKey(cat, key)
	nowMs := now.UnixMilli()
	windowStart := nowMs - policy.Window.Milliseconds()

	// TTL com folga de uma janela extra para não expirar entradas vivas
	// entre checagens espaçadas.
	ttl := 2 * policy.Window.Milliseconds()

	raw, err := checkScript.Run(ctx, s.client, []string{k}, windowStart, nowMs, policy.Max, ttl).Int64Slice()
	if err != nil {
		return domain.Decision{}, fmt.Errorf("check script: %w", err)
	}
	if len(raw) != 3 {
		return domain.Decision{}, fmt.Errorf("check script returned %d values, want 3", len(raw))
	}

	allowed := raw[0] == 1
	current := int(raw[1])
	oldestMs := raw[2]

	decision := domain.Decision{
		Allowed:   allowed,
		Category:  cat,
		Key:       key,
		Policy:    policy,
		Current:   current,
		ResetTime: time.UnixMilli(oldestMs).Add(policy.Window),
	}
	if allowed {
		decision.Remaining = policy.Max - current
	}
	return decision, nil
}

func (s *Store) RemoveNewest(ctx context.Context, cat domain.Category, key string) error {
	if err := s.client.ZPopMax(ctx, s.counterKey(cat, key), 1).Err(); err != nil {
		return fmt.Errorf("zpopmax: %w", err)
	}
	return nil
}

func (s *Store) History(ctx context.Context, cat domain.Category, key string, since, now time.Time) ([]time.Time, error) {
	members, err := s.client.ZRangeByScoreWithScores(ctx, s.counterKey(cat, key), &redis.ZRangeBy{
		Min: "(" + strconv.FormatInt(since.UnixMilli(), 10),
		Max: strconv.FormatInt(now.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("zrangebyscore: %w", err)
	}

	out := make([]time.Time, 0, len(members))
	for _, m := range members {
		out = append(out, time.UnixMilli(int64(m.Score)))
	}
	return out, nil
}

func (s *Store) Status(ctx context.Context, cat domain.Category, key string, policy domain.LimitPolicy, now time.Time) (domain.Status, error) {
	k := s.counterKey(cat, key)
	windowStart := now.Add(-policy.Window)
	minScore := "(" + strconv.FormatInt(windowStart.UnixMilli(), 10)

	current, err := s.client.ZCount(ctx, k, minScore, "+inf").Result()
	if err != nil {
		return domain.Status{}, fmt.Errorf("zcount: %w", err)
	}

	reset := now
	first, err := s.client.ZRangeByScoreWithScores(ctx, k, &redis.ZRangeBy{
		Min: minScore, Max: "+inf", Count: 1,
	}).Result()
	if err != nil {
		return domain.Status{}, fmt.Errorf("zrangebyscore: %w", err)
	}
	if len(first) > 0 {
		reset = time.UnixMilli(int64(first[0].Score)).Add(policy.Window)
	}

	remaining := policy.Max - int(current)
	if remaining < 0 {
		remaining = 0
	}
	return domain.Status{
		Limit:     policy.Max,
		Current:   int(current),
		Remaining: remaining,
		ResetTime: reset,
	}, nil
}

func (s *Store) Reset(ctx context.Context, cats ...domain.Category) error {
	patterns := []string{s.prefix + ":*"}
	if len(cats) > 0 {
		patterns = patterns[:0]
		for _, cat := range cats {
			patterns = append(patterns, s.prefix+":"+cat.String()+":*")
		}
	}

	for _, pattern := range patterns {
		var cursor uint64
		for {
			keys, next, err := s.client.Scan(ctx, cursor, pattern, 100).Result()
			if err != nil {
				return fmt.Errorf("scan %s: %w", pattern, err)
			}
			if len(keys) > 0 {
				if err := s.client.Del(ctx, keys...).Err(); err != nil {
					return fmt.Errorf("del: %w", err)
				}
			}
			cursor = next
			if cursor == 0 {
				break
			}
		}
	}
	return nil
}

func (s *Store) counterKey(cat domain.Category, key string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, cat, key)
}
