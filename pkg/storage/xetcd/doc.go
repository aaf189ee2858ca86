// Package xetcd 按配置创建 etcd 客户端。
//
// 负责 keepalive 参数、默认值和命名空间前缀，调度相关的读写由
// xtrigger.EtcdStore 完成：
//
//	cfg := xetcd.DefaultConfig()
//	cfg.Endpoints = []string{"etcd-0:2379", "etcd-1:2379"}
//	cfg.Namespace = "/prod"
//	client, err := xetcd.NewClient(cfg)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	store, err := xtrigger.NewEtcdStore(client.KV())
package xetcd
