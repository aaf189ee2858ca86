// Package xtrigger 提供基于共享存储的分布式任务触发调度器，保证至多一次触发。
//
// 多个独立进程使用同名调度器连接同一个存储即组成一个集群。客户端登记
// 任务 ID 和触发时间；到期后，集群中恰好一个正在运行的实例调用 Listener。
// 不需要中心锁服务，互斥完全依赖存储的乐观事务。
//
// # 快速开始
//
//	store, _ := xtrigger.NewRedisStore(redisClient)
//	sched, _ := xtrigger.New(store, xtrigger.ListenerFunc(
//	    func(ctx context.Context, taskID string) error {
//	        return sendReminder(ctx, taskID)
//	    }),
//	    xtrigger.WithName("reminders"),
//	    xtrigger.WithPollingDelay(time.Second),
//	)
//	_ = sched.ScheduleAt(ctx, "order-42", time.Now().Add(time.Hour))
//	_ = sched.Start()
//	defer sched.Stop(context.Background())
//
// # 认领协议
//
// 每轮轮询：
//  1. 乐观监视集合（Redis WATCH；etcd 记录索引键的 ModRevision；内存实现记录版本号）
//  2. 读取分值不大于当前时间的最早一个任务，没有则结束本轮
//  3. 在事务中删除该任务并提交
//  4. 提交成功则调用 Listener；提交失败说明其他实例抢先，记为竞争，本轮结束
//
// 任务在调用 Listener 之前已被删除，Listener 失败或进程崩溃都不会重试，
// 这就是至多一次的代价。
//
// # 轮询与失败策略
//
//   - 触发了任务：立即进入下一轮，连续消化积压
//   - 没有到期任务或竞争失败：休眠 PollingDelay
//   - 存储不可达：连续失败计数加一，达到 MaxRetriesOnConnectionFailure 后循环永久停止，
//     Status 变为 StatusStoppedByRetryExhaustion，Err 返回 ErrRetryExhausted；
//     未达到上限时按 FailureBackoff 休眠
//
// 任意一次成功的存储交互都会把连续失败计数清零。
// Stop 只在迭代边界生效，不会打断正在进行的存储调用或 Listener。
//
// # 存储实现
//
//   - RedisStore：go-redis 有序集合，分值为触发时间的 Unix 毫秒
//   - EtcdStore：etcd 键空间模拟有序集合，认领用 Txn 比较 ModRevision
//   - MemoryStore：进程内实现，用于测试和单进程部署
//
// # 可观测性
//
// 日志使用 xlog；Stats 提供累计计数；WithMeterProvider 开启 OpenTelemetry 指标；
// 每次触发在 WithTracerProvider 提供的 Tracer 下生成一个 span；
// NewHealthChecker 汇总循环状态和失败率。
package xtrigger
