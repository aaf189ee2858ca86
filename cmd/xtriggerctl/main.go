// xtriggerctl 是 xtrigger 调度器的命令行工具。
//
// 用法:
//
//	xtriggerctl [全局选项] <命令> [命令参数]
//
// 全局选项:
//
//	-c, --config          配置文件路径（yaml/json）
//	    --backend         存储后端 redis|etcd|memory (默认: redis)
//	    --redis-addr      Redis 地址，可重复
//	    --etcd-endpoints  etcd endpoint，可重复
//	    --name            调度器名称 (默认: scheduler)
//	    --log-level       日志级别 debug|info|warn|error
//
// 命令:
//
//	schedule [id]   安排任务（--at、--in、--cron 三选一），省略 id 时自动生成
//	run-now <id>    安排任务立即触发
//	unschedule <id> 取消任务
//	clear           清空调度器下的全部任务
//	list            按触发顺序列出待触发任务
//	serve           运行轮询循环，打印每个触发的任务
//
// 退出码:
//
//	0: 成功
//	1: 运行失败（存储不可达、serve 因连续连接失败退出等）
//	2: 参数错误
//
// 示例:
//
//	xtriggerctl schedule order-42 --in 30m
//	xtriggerctl --backend etcd --etcd-endpoints 10.0.0.1:2379 list
//	xtriggerctl -c /etc/xtrigger.yaml serve
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
)

// 版本信息，通过 -ldflags "-X main.Version=..." 注入。
var (
	Version   = "0.1.0-dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(run(context.Background(), os.Args, os.Stdout, os.Stderr))
}

func createApp() *cli.Command {
	app := &cli.Command{
		Name:    "xtriggerctl",
		Usage:   "分布式至多一次任务触发调度器命令行工具",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildTime),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "配置文件路径（yaml/json）",
				Sources: cli.EnvVars("XTRIGGER_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "backend",
				Usage:   "存储后端 redis|etcd|memory",
				Value:   backendRedis,
				Sources: cli.EnvVars("XTRIGGER_BACKEND"),
			},
			&cli.StringSliceFlag{
				Name:    "redis-addr",
				Usage:   "Redis 地址",
				Sources: cli.EnvVars("XTRIGGER_REDIS_ADDR"),
			},
			&cli.StringSliceFlag{
				Name:    "etcd-endpoints",
				Usage:   "etcd endpoint",
				Sources: cli.EnvVars("XTRIGGER_ETCD_ENDPOINTS"),
			},
			&cli.StringFlag{
				Name:  "name",
				Usage: "调度器名称，同名实例共享任务集合",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "日志级别 debug|info|warn|error",
			},
			&cli.IntFlag{
				Name:  "connect-attempts",
				Usage: "启动时连接存储的尝试次数",
			},
		},
		Commands: createCommands(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() > 0 {
				return newUsageError(fmt.Sprintf("未知命令 %q", cmd.Args().First()))
			}
			return cli.ShowRootCommandHelp(cmd)
		},
		// 退出码由 run 统一映射，不让 urfave/cli 直接调用 os.Exit
		ExitErrHandler: func(context.Context, *cli.Command, error) {},
	}
	setUsageErrorHandler(app)
	return app
}

// setUsageErrorHandler 参数解析错误统一转换为 usageError。
func setUsageErrorHandler(cmd *cli.Command) {
	cmd.OnUsageError = func(_ context.Context, _ *cli.Command, err error, _ bool) error {
		return newUsageError(err.Error())
	}
	for _, sub := range cmd.Commands {
		setUsageErrorHandler(sub)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	app := createApp()
	app.Writer = stdout
	app.ErrWriter = stderr

	if err := app.Run(ctx, args); err != nil {
		var usageErr *usageError
		if errors.As(err, &usageErr) {
			fmt.Fprintf(stderr, "参数错误: %v\n", usageErr)
			return 2
		}
		fmt.Fprintf(stderr, "错误: %v\n", err)
		return 1
	}
	return 0
}
