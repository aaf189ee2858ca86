package xtrigger

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"sync"

	pb "go.etcd.io/etcd/api/v3/etcdserverpb"
	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// fakeEtcd 进程内的 etcdKV 实现，支持区间读取、limit 以及
// 基于 ModRevision/CreateRevision/Version 相等比较的事务。
type fakeEtcd struct {
	mu   sync.Mutex
	rev  int64
	data map[string]*mvccpb.KeyValue

	// beforeCommit 下一次事务提交前调用一次
	beforeCommit func()
	// failWith 非 nil 时所有操作返回该错误
	failWith error
}

func newFakeEtcd() *fakeEtcd {
	return &fakeEtcd{data: make(map[string]*mvccpb.KeyValue)}
}

func (f *fakeEtcd) Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}

	op := clientv3.OpGet(key, opts...)
	kvs := f.rangeLocked(op.KeyBytes(), op.RangeBytes())
	resp := &clientv3.GetResponse{Count: int64(len(kvs))}
	if op.IsCountOnly() {
		return resp, nil
	}
	if limit := op.Limit(); limit > 0 && int64(len(kvs)) > limit {
		kvs = kvs[:limit]
		resp.More = true
	}
	for _, kv := range kvs {
		cp := *kv
		resp.Kvs = append(resp.Kvs, &cp)
	}
	return resp, nil
}

func (f *fakeEtcd) Txn(ctx context.Context) clientv3.Txn {
	return &fakeTxn{f: f, ctx: ctx}
}

// rangeLocked end 为空时只匹配 key 本身。
func (f *fakeEtcd) rangeLocked(key, end []byte) []*mvccpb.KeyValue {
	var out []*mvccpb.KeyValue
	if len(end) == 0 {
		if kv, ok := f.data[string(key)]; ok {
			out = append(out, kv)
		}
		return out
	}
	for k, kv := range f.data {
		if bytes.Compare([]byte(k), key) >= 0 && bytes.Compare([]byte(k), end) < 0 {
			out = append(out, kv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].Key, out[j].Key) < 0 })
	return out
}

func (f *fakeEtcd) compareLocked(c clientv3.Cmp) bool {
	var actual int64
	kv := f.data[string(c.Key)]
	switch c.Target {
	case pb.Compare_MOD:
		if kv != nil {
			actual = kv.ModRevision
		}
		return c.Result == pb.Compare_EQUAL && actual == c.TargetUnion.(*pb.Compare_ModRevision).ModRevision
	case pb.Compare_CREATE:
		if kv != nil {
			actual = kv.CreateRevision
		}
		return c.Result == pb.Compare_EQUAL && actual == c.TargetUnion.(*pb.Compare_CreateRevision).CreateRevision
	case pb.Compare_VERSION:
		if kv != nil {
			actual = kv.Version
		}
		return c.Result == pb.Compare_EQUAL && actual == c.TargetUnion.(*pb.Compare_Version).Version
	default:
		return false
	}
}

func (f *fakeEtcd) applyLocked(op clientv3.Op) {
	switch {
	case op.IsPut():
		k := string(op.KeyBytes())
		kv, ok := f.data[k]
		if !ok {
			kv = &mvccpb.KeyValue{Key: op.KeyBytes(), CreateRevision: f.rev}
			f.data[k] = kv
		}
		kv.Value = op.ValueBytes()
		kv.ModRevision = f.rev
		kv.Version++
	case op.IsDelete():
		for _, kv := range f.rangeLocked(op.KeyBytes(), op.RangeBytes()) {
			delete(f.data, string(kv.Key))
		}
	}
}

func (f *fakeEtcd) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.data))
	for k := range f.data {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type fakeTxn struct {
	f         *fakeEtcd
	ctx       context.Context
	cmps      []clientv3.Cmp
	thenOps   []clientv3.Op
	elseOps   []clientv3.Op
	commitErr error
}

func (t *fakeTxn) If(cs ...clientv3.Cmp) clientv3.Txn {
	t.cmps = append(t.cmps, cs...)
	return t
}

func (t *fakeTxn) Then(ops ...clientv3.Op) clientv3.Txn {
	t.thenOps = append(t.thenOps, ops...)
	return t
}

func (t *fakeTxn) Else(ops ...clientv3.Op) clientv3.Txn {
	t.elseOps = append(t.elseOps, ops...)
	return t
}

func (t *fakeTxn) Commit() (*clientv3.TxnResponse, error) {
	if t.commitErr != nil {
		return nil, t.commitErr
	}
	if t.f == nil {
		return nil, errors.New("fake txn without backing store")
	}
	if err := t.ctx.Err(); err != nil {
		return nil, err
	}

	t.f.mu.Lock()
	hook := t.f.beforeCommit
	t.f.beforeCommit = nil
	t.f.mu.Unlock()
	if hook != nil {
		hook()
	}

	t.f.mu.Lock()
	defer t.f.mu.Unlock()
	if t.f.failWith != nil {
		return nil, t.f.failWith
	}
	ok := true
	for _, c := range t.cmps {
		if !t.f.compareLocked(c) {
			ok = false
			break
		}
	}
	ops := t.thenOps
	if !ok {
		ops = t.elseOps
	}
	t.f.rev++
	for _, op := range ops {
		t.f.applyLocked(op)
	}
	return &clientv3.TxnResponse{Succeeded: ok}, nil
}
