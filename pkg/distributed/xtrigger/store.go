package xtrigger

import (
	"context"
	"time"
)

// Store 协调存储。
//
// 每个 key 对应一个有序任务集合：成员为任务 ID，分值为触发时间（Unix 毫秒）。
// 同一任务 ID 至多一个条目，重复 Add 覆盖分值。
//
// 实现必须保证 ClaimDue 的原子性：在乐观监视下读取最早到期的一个任务，
// 然后在事务中删除它；监视期间集合被修改则放弃提交并返回 ClaimRaced。
// 任意多个并发调用者针对同一任务最多只有一个得到 ClaimAcquired。
type Store interface {
	// Add 写入或覆盖任务的触发分值。
	Add(ctx context.Context, key, taskID string, score int64) error

	// Remove 删除任务，不存在时不报错。
	Remove(ctx context.Context, key, taskID string) error

	// Clear 删除整个集合。
	Clear(ctx context.Context, key string) error

	// ClaimDue 认领一个分值 <= maxScore 的最早任务。
	// 返回的 error 仅表示存储不可达，竞争失败通过 Claim.Outcome 表达。
	ClaimDue(ctx context.Context, key string, maxScore int64) (Claim, error)

	// Entries 按触发顺序返回集合中的全部任务。
	Entries(ctx context.Context, key string) ([]Entry, error)
}

// Pinger 可选接口，健康检查时用于探测存储连通性。
type Pinger interface {
	Ping(ctx context.Context) error
}

// ClaimOutcome 一次认领的结果。
type ClaimOutcome int

const (
	// ClaimNone 没有到期任务。
	ClaimNone ClaimOutcome = iota
	// ClaimAcquired 本实例成功删除了任务，应触发监听器。
	ClaimAcquired
	// ClaimRaced 提交时集合已被修改，本轮放弃。
	ClaimRaced
)

func (o ClaimOutcome) String() string {
	switch o {
	case ClaimNone:
		return "none"
	case ClaimAcquired:
		return "acquired"
	case ClaimRaced:
		return "raced"
	default:
		return "unknown"
	}
}

// Claim ClaimDue 的结果，TaskID 在 ClaimNone 时为空。
type Claim struct {
	TaskID  string
	Score   int64
	Outcome ClaimOutcome
}

// Entry 集合中的一个待触发任务。
type Entry struct {
	TaskID    string
	TriggerAt time.Time
}

func newEntry(taskID string, score int64) Entry {
	return Entry{TaskID: taskID, TriggerAt: timeOf(score)}
}
