package xetcd

import (
	"fmt"
	"strings"
	"time"
)

// Config etcd 客户端配置，字段带 koanf 标签，可直接从 xconf 反序列化。
type Config struct {
	// Endpoints etcd 服务端点列表，必填。
	Endpoints []string `koanf:"endpoints"`

	// Username 用户名，启用认证时需要配置。
	Username string `koanf:"username"`

	// Password 密码，启用认证时需要配置。
	Password string `koanf:"password"`

	// Namespace 键前缀。非空时所有读写都落在该前缀下，
	// 多个环境可以共用一个集群。
	Namespace string `koanf:"namespace"`

	// DialTimeout 连接超时，零值时使用 5 秒。
	DialTimeout time.Duration `koanf:"dialTimeout"`

	// DialKeepAliveTime gRPC keepalive 探测间隔，零值时使用 10 秒。
	DialKeepAliveTime time.Duration `koanf:"dialKeepAliveTime"`

	// DialKeepAliveTimeout gRPC keepalive 超时，零值时使用 3 秒。
	DialKeepAliveTimeout time.Duration `koanf:"dialKeepAliveTimeout"`

	// RejectOldCluster 拒绝版本过低的集群。
	// 零值为 false，DefaultConfig 返回 true。
	RejectOldCluster bool `koanf:"rejectOldCluster"`

	// PermitWithoutStream 没有活跃 RPC 流时也发送 keepalive。
	// 调度器两次轮询之间连接是空闲的，DefaultConfig 返回 true。
	PermitWithoutStream bool `koanf:"permitWithoutStream"`
}

const (
	defaultDialTimeout          = 5 * time.Second
	defaultDialKeepAliveTime    = 10 * time.Second
	defaultDialKeepAliveTimeout = 3 * time.Second
)

// DefaultConfig 返回带推荐默认值的配置，调用方再覆盖 Endpoints 等字段。
func DefaultConfig() *Config {
	return &Config{
		DialTimeout:          defaultDialTimeout,
		DialKeepAliveTime:    defaultDialKeepAliveTime,
		DialKeepAliveTimeout: defaultDialKeepAliveTimeout,
		RejectOldCluster:     true,
		PermitWithoutStream:  true,
	}
}

// Validate 检查端点列表非空且每个端点都是 host:port 形式。
func (c *Config) Validate() error {
	if len(c.Endpoints) == 0 {
		return ErrNoEndpoints
	}
	for i, ep := range c.Endpoints {
		if ep == "" {
			return fmt.Errorf("%w: endpoint[%d] is empty", ErrInvalidEndpoint, i)
		}
		// IPv6 形如 [::1]:2379，同样包含冒号
		if !strings.Contains(ep, ":") {
			return fmt.Errorf("%w: endpoint[%d]=%q missing port", ErrInvalidEndpoint, i, ep)
		}
	}
	return nil
}

// applyDefaults 返回补齐默认值的副本，不修改原配置。
func (c *Config) applyDefaults() *Config {
	cfg := *c
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = defaultDialTimeout
	}
	if cfg.DialKeepAliveTime == 0 {
		cfg.DialKeepAliveTime = defaultDialKeepAliveTime
	}
	if cfg.DialKeepAliveTimeout == 0 {
		cfg.DialKeepAliveTimeout = defaultDialKeepAliveTimeout
	}
	return &cfg
}

// namespacePrefix 规范化命名空间，保证以 "/" 结尾，空串表示不加前缀。
func (c *Config) namespacePrefix() string {
	if c.Namespace == "" {
		return ""
	}
	return strings.TrimSuffix(c.Namespace, "/") + "/"
}
