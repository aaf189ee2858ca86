package xtrigger

import (
	"cmp"
	"context"
	"slices"
	"sync"
)

// MemoryStore 进程内存储，用于测试和单进程部署。
//
// 认领与其他后端遵循同一乐观协议：读取时记下集合版本，
// 提交时版本变化（集合被任何写操作修改过）则返回 ClaimRaced。
type MemoryStore struct {
	mu   sync.Mutex
	sets map[string]*memorySet

	// beforeCommit 在读取与提交之间调用，测试用来制造竞争
	beforeCommit func(key string)
}

type memorySet struct {
	scores  map[string]int64
	version uint64
}

// NewMemoryStore 创建空的进程内存储。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sets: make(map[string]*memorySet)}
}

func (m *MemoryStore) set(key string) *memorySet {
	s, ok := m.sets[key]
	if !ok {
		s = &memorySet{scores: make(map[string]int64)}
		m.sets[key] = s
	}
	return s
}

func (m *MemoryStore) Add(ctx context.Context, key, taskID string, score int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.set(key)
	s.scores[taskID] = score
	s.version++
	return nil
}

func (m *MemoryStore) Remove(ctx context.Context, key, taskID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sets[key]; ok {
		if _, exists := s.scores[taskID]; exists {
			delete(s.scores, taskID)
			s.version++
		}
	}
	return nil
}

func (m *MemoryStore) Clear(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sets[key]; ok {
		clear(s.scores)
		s.version++
	}
	return nil
}

func (m *MemoryStore) ClaimDue(ctx context.Context, key string, maxScore int64) (Claim, error) {
	if err := ctx.Err(); err != nil {
		return Claim{}, err
	}

	m.mu.Lock()
	s, ok := m.sets[key]
	if !ok {
		m.mu.Unlock()
		return Claim{Outcome: ClaimNone}, nil
	}
	first, found := earliest(s.scores)
	watched := s.version
	m.mu.Unlock()

	if !found || first.score > maxScore {
		return Claim{Outcome: ClaimNone}, nil
	}
	if m.beforeCommit != nil {
		m.beforeCommit(key)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if s.version != watched {
		return Claim{TaskID: first.id, Score: first.score, Outcome: ClaimRaced}, nil
	}
	delete(s.scores, first.id)
	s.version++
	return Claim{TaskID: first.id, Score: first.score, Outcome: ClaimAcquired}, nil
}

func (m *MemoryStore) Entries(ctx context.Context, key string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sets[key]
	if !ok {
		return nil, nil
	}
	members := sortedMembers(s.scores)
	entries := make([]Entry, 0, len(members))
	for _, mb := range members {
		entries = append(entries, newEntry(mb.id, mb.score))
	}
	return entries, nil
}

// Ping 总是成功。
func (m *MemoryStore) Ping(context.Context) error { return nil }

type member struct {
	id    string
	score int64
}

// compareMembers 分值升序，同分按任务 ID 字典序，与 Redis 有序集合一致。
func compareMembers(a, b member) int {
	if c := cmp.Compare(a.score, b.score); c != 0 {
		return c
	}
	return cmp.Compare(a.id, b.id)
}

func earliest(scores map[string]int64) (member, bool) {
	var (
		best  member
		found bool
	)
	for id, score := range scores {
		m := member{id: id, score: score}
		if !found || compareMembers(m, best) < 0 {
			best, found = m, true
		}
	}
	return best, found
}

func sortedMembers(scores map[string]int64) []member {
	out := make([]member, 0, len(scores))
	for id, score := range scores {
		out = append(out, member{id: id, score: score})
	}
	slices.SortFunc(out, compareMembers)
	return out
}

var (
	_ Store  = (*MemoryStore)(nil)
	_ Pinger = (*MemoryStore)(nil)
)
