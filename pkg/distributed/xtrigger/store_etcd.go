package xtrigger

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// maxCASAttempts Add/Remove 在 CAS 冲突时的最大尝试次数。
const maxCASAttempts = 16

var errTooManyConflicts = errors.New("too many concurrent modifications")

// EtcdStore 基于 etcd 的存储。
//
// 每个集合在 etcd 中有两组键：
//
//	<ns>/task/<taskID>              -> 分值
//	<ns>/due/<有序分值>/<taskID>      -> taskID
//
// ns 是转义后的集合键，不含 "/"，因此 "a" 的前缀不会覆盖 "a/due" 等嵌套名称的键。
// 有序分值为 20 位十进制，按字典序排列即按触发时间排列，同分按任务 ID 排列。
// 认领时取 due 区间内第一个键，再用事务比较其 ModRevision 后删除两个键；
// 比较失败（Succeeded=false）即竞争失败。
type EtcdStore struct {
	kv etcdKV
}

// NewEtcdStore 包装已有客户端，也可传入 clientv3.KV（如 namespace.NewKV 的结果）。
func NewEtcdStore(kv clientv3.KV) (*EtcdStore, error) {
	if kv == nil {
		return nil, ErrNilClient
	}
	return &EtcdStore{kv: kv}, nil
}

// namespaceOf 把集合键转义为单个路径段。
func namespaceOf(key string) string {
	return url.PathEscape(key)
}

func taskPrefix(key string) string {
	return namespaceOf(key) + "/task/"
}

func taskKey(key, taskID string) string {
	return taskPrefix(key) + taskID
}

func duePrefix(key string) string {
	return namespaceOf(key) + "/due/"
}

func dueKey(key string, score int64, taskID string) string {
	return duePrefix(key) + sortableScore(score) + "/" + taskID
}

// sortableScore 翻转符号位后定宽输出，使负数排在正数之前。
func sortableScore(score int64) string {
	return fmt.Sprintf("%020d", uint64(score)^(1<<63))
}

func parseSortableScore(s string) (int64, error) {
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return int64(u ^ (1 << 63)), nil
}

// parseDueKey 从 due 键解析分值和任务 ID，任务 ID 可以包含 "/"。
func parseDueKey(key, k string) (string, int64, error) {
	rest := strings.TrimPrefix(k, duePrefix(key))
	score, id, ok := strings.Cut(rest, "/")
	if !ok {
		return "", 0, fmt.Errorf("malformed due key %q", k)
	}
	n, err := parseSortableScore(score)
	if err != nil {
		return "", 0, fmt.Errorf("malformed due key %q: %w", k, err)
	}
	return id, n, nil
}

func (s *EtcdStore) Add(ctx context.Context, key, taskID string, score int64) error {
	tk := taskKey(key, taskID)
	newDue := dueKey(key, score, taskID)
	value := strconv.FormatInt(score, 10)

	return s.casLoop(ctx, "add", tk, func(cur *currentTask) (clientv3.Cmp, []clientv3.Op) {
		ops := []clientv3.Op{clientv3.OpPut(tk, value), clientv3.OpPut(newDue, taskID)}
		if !cur.exists {
			return clientv3.Compare(clientv3.CreateRevision(tk), "=", 0), ops
		}
		if old := dueKey(key, cur.score, taskID); old != newDue {
			ops = append(ops, clientv3.OpDelete(old))
		}
		return clientv3.Compare(clientv3.ModRevision(tk), "=", cur.modRevision), ops
	})
}

func (s *EtcdStore) Remove(ctx context.Context, key, taskID string) error {
	tk := taskKey(key, taskID)
	return s.casLoop(ctx, "remove", tk, func(cur *currentTask) (clientv3.Cmp, []clientv3.Op) {
		if !cur.exists {
			return clientv3.Cmp{}, nil
		}
		return clientv3.Compare(clientv3.ModRevision(tk), "=", cur.modRevision),
			[]clientv3.Op{clientv3.OpDelete(tk), clientv3.OpDelete(dueKey(key, cur.score, taskID))}
	})
}

type currentTask struct {
	exists      bool
	score       int64
	modRevision int64
}

// casLoop 读取任务键后按 plan 构造条件事务提交，冲突时重新读取。
// plan 返回空 ops 表示无需写入。
func (s *EtcdStore) casLoop(ctx context.Context, op, tk string,
	plan func(cur *currentTask) (clientv3.Cmp, []clientv3.Op)) error {
	for range maxCASAttempts {
		resp, err := s.kv.Get(ctx, tk)
		if err != nil {
			return fmt.Errorf("etcd %s get: %w", op, err)
		}
		cur := &currentTask{}
		if len(resp.Kvs) > 0 {
			kv := resp.Kvs[0]
			score, err := strconv.ParseInt(string(kv.Value), 10, 64)
			if err != nil {
				return fmt.Errorf("etcd %s: malformed score at %q: %w", op, tk, err)
			}
			cur = &currentTask{exists: true, score: score, modRevision: kv.ModRevision}
		}

		cmp, ops := plan(cur)
		if len(ops) == 0 {
			return nil
		}
		txn, err := s.kv.Txn(ctx).If(cmp).Then(ops...).Commit()
		if err != nil {
			return fmt.Errorf("etcd %s txn: %w", op, err)
		}
		if txn.Succeeded {
			return nil
		}
	}
	return fmt.Errorf("etcd %s %q: %w", op, tk, errTooManyConflicts)
}

// Clear 在一个事务中删除两组键。
func (s *EtcdStore) Clear(ctx context.Context, key string) error {
	_, err := s.kv.Txn(ctx).Then(
		clientv3.OpDelete(taskPrefix(key), clientv3.WithPrefix()),
		clientv3.OpDelete(duePrefix(key), clientv3.WithPrefix()),
	).Commit()
	if err != nil {
		return fmt.Errorf("etcd clear: %w", err)
	}
	return nil
}

func (s *EtcdStore) ClaimDue(ctx context.Context, key string, maxScore int64) (Claim, error) {
	// 区间上界取 "<maxScore>0"："0" 大于分隔符 "/"，恰好覆盖分值等于 maxScore 的所有键
	end := duePrefix(key) + sortableScore(maxScore) + "0"
	resp, err := s.kv.Get(ctx, duePrefix(key), clientv3.WithRange(end), clientv3.WithLimit(1))
	if err != nil {
		return Claim{}, fmt.Errorf("etcd claim get: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return Claim{Outcome: ClaimNone}, nil
	}

	kv := resp.Kvs[0]
	due := string(kv.Key)
	taskID, score, err := parseDueKey(key, due)
	if err != nil {
		return Claim{}, fmt.Errorf("etcd claim: %w", err)
	}
	claim := Claim{TaskID: taskID, Score: score}

	txn, err := s.kv.Txn(ctx).
		If(clientv3.Compare(clientv3.ModRevision(due), "=", kv.ModRevision)).
		Then(clientv3.OpDelete(due), clientv3.OpDelete(taskKey(key, taskID))).
		Commit()
	if err != nil {
		return Claim{}, fmt.Errorf("etcd claim txn: %w", err)
	}
	if !txn.Succeeded {
		claim.Outcome = ClaimRaced
		return claim, nil
	}
	claim.Outcome = ClaimAcquired
	return claim, nil
}

func (s *EtcdStore) Entries(ctx context.Context, key string) ([]Entry, error) {
	resp, err := s.kv.Get(ctx, duePrefix(key), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("etcd entries: %w", err)
	}
	entries := make([]Entry, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		id, score, err := parseDueKey(key, string(kv.Key))
		if err != nil {
			return nil, fmt.Errorf("etcd entries: %w", err)
		}
		entries = append(entries, newEntry(id, score))
	}
	return entries, nil
}

// Ping 用只计数的读请求探测连通性。
func (s *EtcdStore) Ping(ctx context.Context) error {
	if _, err := s.kv.Get(ctx, "xtrigger-ping", clientv3.WithCountOnly()); err != nil {
		return fmt.Errorf("etcd ping: %w", err)
	}
	return nil
}

var (
	_ Store  = (*EtcdStore)(nil)
	_ Pinger = (*EtcdStore)(nil)
)
