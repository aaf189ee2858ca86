package xtrigger

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// RedisStore 基于 Redis 有序集合的存储。
//
// 认领使用 WATCH + ZRANGEBYSCORE LIMIT 0 1 + MULTI/ZREM/EXEC：
// EXEC 因 key 被修改而放弃时 go-redis 返回 redis.TxFailedErr，视为竞争失败。
// 支持单机、Sentinel 和集群客户端（集合只涉及一个 key，不跨槽）。
type RedisStore struct {
	client redis.UniversalClient

	// beforeCommit 在读取与 EXEC 之间调用，测试用来制造竞争
	beforeCommit func(ctx context.Context, key string)
}

// NewRedisStore 包装已有客户端，客户端生命周期由调用方管理。
func NewRedisStore(client redis.UniversalClient) (*RedisStore, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	return &RedisStore{client: client}, nil
}

// Client 返回底层客户端。
func (s *RedisStore) Client() redis.UniversalClient {
	return s.client
}

func (s *RedisStore) Add(ctx context.Context, key, taskID string, score int64) error {
	if err := s.client.ZAdd(ctx, key, redis.Z{Score: float64(score), Member: taskID}).Err(); err != nil {
		return fmt.Errorf("redis zadd: %w", err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, key, taskID string) error {
	if err := s.client.ZRem(ctx, key, taskID).Err(); err != nil {
		return fmt.Errorf("redis zrem: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (s *RedisStore) ClaimDue(ctx context.Context, key string, maxScore int64) (Claim, error) {
	var claim Claim
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		due, err := tx.ZRangeByScoreWithScores(ctx, key, &redis.ZRangeBy{
			Min:   "-inf",
			Max:   strconv.FormatInt(maxScore, 10),
			Count: 1,
		}).Result()
		if err != nil {
			return fmt.Errorf("redis zrangebyscore: %w", err)
		}
		if len(due) == 0 {
			claim = Claim{Outcome: ClaimNone}
			return nil
		}

		taskID, ok := due[0].Member.(string)
		if !ok {
			taskID = fmt.Sprint(due[0].Member)
		}
		claim = Claim{TaskID: taskID, Score: int64(due[0].Score)}

		if s.beforeCommit != nil {
			s.beforeCommit(ctx, key)
		}
		if _, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRem(ctx, key, taskID)
			return nil
		}); err != nil {
			return err
		}
		claim.Outcome = ClaimAcquired
		return nil
	}, key)

	switch {
	case errors.Is(err, redis.TxFailedErr):
		claim.Outcome = ClaimRaced
		return claim, nil
	case err != nil:
		return Claim{}, fmt.Errorf("redis claim: %w", err)
	}
	return claim, nil
}

func (s *RedisStore) Entries(ctx context.Context, key string) ([]Entry, error) {
	zs, err := s.client.ZRangeWithScores(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis zrange: %w", err)
	}
	entries := make([]Entry, 0, len(zs))
	for _, z := range zs {
		id, ok := z.Member.(string)
		if !ok {
			id = fmt.Sprint(z.Member)
		}
		entries = append(entries, newEntry(id, int64(z.Score)))
	}
	return entries, nil
}

// Ping 探测 Redis 连通性。
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

var (
	_ Store  = (*RedisStore)(nil)
	_ Pinger = (*RedisStore)(nil)
)
