package xtrigger

import (
	"context"

	clientv3 "go.etcd.io/etcd/client/v3"
)

//go:generate mockgen -source=etcd_interface.go -destination=etcd_mock_test.go -package=xtrigger

// etcdKV EtcdStore 用到的 etcd 操作，方法签名与 clientv3.KV 一致。
type etcdKV interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Txn(ctx context.Context) clientv3.Txn
}

var _ etcdKV = (*clientv3.Client)(nil)
