// Package distributed 提供多实例协调相关的子包。
//
// 子包列表：
//   - xtrigger: 基于共享存储的延时任务触发器，同一任务在所有实例中最多触发一次
package distributed
