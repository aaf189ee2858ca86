package xetcd

import "errors"

// 错误定义。
var (
	// ErrNilConfig 配置为空。
	ErrNilConfig = errors.New("xetcd: config is nil")

	// ErrNoEndpoints 未配置 etcd 端点。
	ErrNoEndpoints = errors.New("xetcd: no endpoints configured")

	// ErrInvalidEndpoint endpoint 格式无效，应为 "host:port"。
	ErrInvalidEndpoint = errors.New("xetcd: invalid endpoint format, expected host:port")
)
