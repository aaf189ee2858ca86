// Package xlog 基于 log/slog 的结构化日志库。
//
// # 核心功能
//
//   - Builder 模式配置（输出目标、级别、格式、文件轮转）
//   - 强制 context 传递的 [Logger] 接口，方法只接受 slog.Attr
//   - 动态级别调整（运行时热更新，派生 logger 共享级别）
//   - 全局 Logger 便利函数
//
// # 创建 Logger
//
//	logger, cleanup, err := xlog.New().
//	    SetLevelString("debug").
//	    SetFormat("json").
//	    SetRotation("/var/log/app.log", xlog.RotationConfig{MaxSizeMB: 100}).
//	    Build()
//	if err != nil {
//	    return err
//	}
//	defer cleanup()
//
// Builder 采用 first-error-wins：遇到第一个配置错误后，Build 返回该错误。
//
// # 全局 Logger
//
// [Default] 惰性创建 stderr/Info/text 的 Logger，[SetDefault] 可替换。
// 服务端推荐依赖注入，全局 Logger 适用于命令行工具等简单场景。
//
// # 便捷属性
//
// [Err]、[Duration]、[Component]、[TaskID]、[Count]。
package xlog
