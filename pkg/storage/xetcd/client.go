package xetcd

import (
	"fmt"
	"sync/atomic"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.etcd.io/etcd/client/v3/namespace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

// Client etcd 客户端封装，并发安全。
type Client struct {
	raw    *clientv3.Client
	kv     clientv3.KV
	config *Config
	closed atomic.Bool
}

// NewClient 创建 etcd 客户端。连接是惰性的，首次请求才会真正拨号，
// 需要尽早发现连接问题时由调用方自行探测。
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, ErrNilConfig
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	cfg := config.applyDefaults()

	// keepalive 只通过 DialOptions 设置，PermitWithoutStream 只有这里能控制
	raw, err := clientv3.New(clientv3.Config{
		Endpoints:        cfg.Endpoints,
		DialTimeout:      cfg.DialTimeout,
		Username:         cfg.Username,
		Password:         cfg.Password,
		RejectOldCluster: cfg.RejectOldCluster,
		DialOptions: []grpc.DialOption{
			grpc.WithKeepaliveParams(keepalive.ClientParameters{
				Time:                cfg.DialKeepAliveTime,
				Timeout:             cfg.DialKeepAliveTimeout,
				PermitWithoutStream: cfg.PermitWithoutStream,
			}),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("xetcd: create client: %w", err)
	}

	var kv clientv3.KV = raw.KV
	if prefix := cfg.namespacePrefix(); prefix != "" {
		kv = namespace.NewKV(raw.KV, prefix)
	}
	return &Client{raw: raw, kv: kv, config: cfg}, nil
}

// KV 返回带命名空间前缀的 KV 视图。
func (c *Client) KV() clientv3.KV {
	return c.kv
}

// RawClient 返回原生客户端，不带命名空间。
func (c *Client) RawClient() *clientv3.Client {
	return c.raw
}

// Close 关闭连接，重复调用返回 nil。
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	if c.raw != nil {
		return c.raw.Close()
	}
	return nil
}
