// Package storage 提供存储客户端相关的子包。
//
// 子包列表：
//   - xetcd: etcd 客户端工厂，负责 keepalive 参数和命名空间前缀
//
// Redis 直接使用 go-redis 的 UniversalClient。
package storage
