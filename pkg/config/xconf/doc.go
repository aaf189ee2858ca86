// Package xconf 是基于 koanf 的最小化配置加载器。
//
// 支持从 YAML/JSON 文件或字节数据加载配置，按 koanf 标签反序列化到结构体，
// 并可通过 fsnotify 监视文件变更后自动重载。
//
// 不负责配置治理（默认值、必选校验、环境变量覆盖），这些由调用方完成，
// 例如 xtriggerctl 在 Unmarshal 之后再用命令行参数覆盖。
//
// Reload 解析成功后原子替换内部 koanf 实例，失败时保留旧配置。
// 从字节数据创建的 Config 不支持 Reload 和 Watch。
package xconf
