package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/omeyang/xtrigger/pkg/config/xconf"
	"github.com/omeyang/xtrigger/pkg/distributed/xtrigger"
	"github.com/omeyang/xtrigger/pkg/lifecycle/xrun"
	"github.com/omeyang/xtrigger/pkg/observability/xlog"
)

// usageError 参数错误，退出码 2。
type usageError struct {
	msg string
}

func newUsageError(msg string) *usageError { return &usageError{msg: msg} }

func (e *usageError) Error() string { return e.msg }

func createCommands() []*cli.Command {
	return []*cli.Command{
		createScheduleCommand(),
		createRunNowCommand(),
		createUnscheduleCommand(),
		createClearCommand(),
		createListCommand(),
		createServeCommand(),
	}
}

func createScheduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "schedule",
		Usage:     "安排任务在指定时间触发，已存在则覆盖",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "at", Usage: "触发时间（RFC3339）"},
			&cli.DurationFlag{Name: "in", Usage: "从现在起的延迟"},
			&cli.StringFlag{Name: "cron", Usage: "标准 cron 表达式，只安排下一次激活"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withScheduler(ctx, cmd, func(ctx context.Context, s *xtrigger.Scheduler) error {
				return cmdSchedule(ctx, cmd, s)
			})
		},
	}
}

func createRunNowCommand() *cli.Command {
	return &cli.Command{
		Name:      "run-now",
		Usage:     "安排任务在下一个轮询周期触发",
		ArgsUsage: "<id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := requireTaskID(cmd)
			if err != nil {
				return err
			}
			return withScheduler(ctx, cmd, func(ctx context.Context, s *xtrigger.Scheduler) error {
				if err := s.RunNow(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.Root().Writer, "scheduled %s now\n", id)
				return nil
			})
		},
	}
}

func createUnscheduleCommand() *cli.Command {
	return &cli.Command{
		Name:      "unschedule",
		Usage:     "取消任务，不存在时也成功",
		ArgsUsage: "<id>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id, err := requireTaskID(cmd)
			if err != nil {
				return err
			}
			return withScheduler(ctx, cmd, func(ctx context.Context, s *xtrigger.Scheduler) error {
				if err := s.Unschedule(ctx, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.Root().Writer, "unscheduled %s\n", id)
				return nil
			})
		},
	}
}

func createClearCommand() *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "清空调度器下的全部任务（影响所有同名实例）",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withScheduler(ctx, cmd, func(ctx context.Context, s *xtrigger.Scheduler) error {
				if err := s.UnscheduleAll(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.Root().Writer, "cleared %s\n", s.Key())
				return nil
			})
		},
	}
}

func createListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "按触发顺序列出待触发任务",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withScheduler(ctx, cmd, func(ctx context.Context, s *xtrigger.Scheduler) error {
				entries, err := s.Pending(ctx)
				if err != nil {
					return err
				}
				printEntries(cmd.Root().Writer, entries)
				return nil
			})
		},
	}
}

func createServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "运行轮询循环直到收到退出信号，连续连接失败达到上限时以非零码退出",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return cmdServe(ctx, cmd)
		},
	}
}

func requireTaskID(cmd *cli.Command) (string, error) {
	if cmd.NArg() != 1 || cmd.Args().First() == "" {
		return "", newUsageError(fmt.Sprintf("%s 需要且只需要一个任务 ID", cmd.Name))
	}
	return cmd.Args().First(), nil
}

// withScheduler 为单次命令准备日志、存储和调度器，fn 返回后释放存储客户端。
func withScheduler(ctx context.Context, cmd *cli.Command, fn func(ctx context.Context, s *xtrigger.Scheduler) error) (err error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLog, err := cfg.buildLogger(cmd)
	if err != nil {
		return newUsageError(err.Error())
	}
	defer func() { err = errors.Join(err, closeLog()) }()

	store, closeStore, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeStore()) }()

	s, err := xtrigger.New(store, xtrigger.ListenerFunc(discardTrigger), cfg.schedulerOptions(logger)...)
	if err != nil {
		return err
	}
	return fn(ctx, s)
}

// discardTrigger 单次命令不启动轮询循环，监听器不会被调用。
func discardTrigger(context.Context, string) error { return nil }

func cmdSchedule(ctx context.Context, cmd *cli.Command, s *xtrigger.Scheduler) error {
	if cmd.NArg() > 1 {
		return newUsageError("schedule 最多接受一个任务 ID")
	}
	id := cmd.Args().First()
	if id == "" {
		id = uuid.NewString()
	}

	set := 0
	for _, name := range []string{"at", "in", "cron"} {
		if cmd.IsSet(name) {
			set++
		}
	}
	if set != 1 {
		return newUsageError("schedule 需要且只能指定 --at、--in、--cron 之一")
	}

	var (
		at  time.Time
		err error
	)
	switch {
	case cmd.IsSet("at"):
		at, err = time.Parse(time.RFC3339, cmd.String("at"))
		if err != nil {
			return newUsageError(fmt.Sprintf("--at 需要 RFC3339 时间: %v", err))
		}
		err = s.ScheduleAt(ctx, id, at)
	case cmd.IsSet("in"):
		at = time.Now().Add(cmd.Duration("in"))
		err = s.ScheduleAt(ctx, id, at)
	default:
		at, err = s.ScheduleCron(ctx, id, cmd.String("cron"))
	}
	if xtrigger.IsInvalidArgument(err) {
		return newUsageError(err.Error())
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.Root().Writer, "scheduled %s at %s\n", id, at.Format(time.RFC3339Nano))
	return nil
}

func printEntries(w io.Writer, entries []xtrigger.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "no pending tasks")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\n", e.TriggerAt.Format(time.RFC3339Nano), e.TaskID)
	}
}

// cmdServe 调度器与配置监视器在同一个 xrun 组中运行，任一失败整体退出。
func cmdServe(ctx context.Context, cmd *cli.Command) (err error) {
	cfg, src, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLog, err := cfg.buildLogger(cmd)
	if err != nil {
		return newUsageError(err.Error())
	}
	defer func() { err = errors.Join(err, closeLog()) }()

	store, closeStore, err := openStore(ctx, cfg.Store, logger)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, closeStore()) }()

	out := cmd.Root().Writer
	listener := xtrigger.ListenerFunc(func(ctx context.Context, taskID string) error {
		logger.Info(ctx, "task triggered", xlog.TaskID(taskID))
		fmt.Fprintf(out, "triggered %s\n", taskID)
		return nil
	})
	s, err := xtrigger.New(store, listener, cfg.schedulerOptions(logger)...)
	if err != nil {
		return err
	}

	services := []xrun.Service{xrun.Named("scheduler", s)}
	if src != nil {
		w, err := xconf.Watch(src, func(c xconf.Config, err error) {
			applyReload(ctx, logger, c, err)
		})
		if err != nil {
			return err
		}
		services = append(services, xrun.Named("config-watcher", w))
	}

	fmt.Fprintf(out, "serving %s on %s backend\n", s.Key(), cfg.Store.Backend)
	return xrun.RunServices(ctx, []xrun.Option{xrun.WithLogger(logger), xrun.WithName("xtriggerctl")}, services...)
}

// applyReload 只有日志级别支持热更新，其余配置需要重启。
func applyReload(ctx context.Context, logger xlog.LoggerWithLevel, c xconf.Config, err error) {
	if err != nil {
		logger.Warn(ctx, "config reload failed", xlog.Err(err))
		return
	}
	var next LogConfig
	if err := c.Unmarshal("log", &next); err != nil {
		logger.Warn(ctx, "config reload failed", xlog.Err(err))
		return
	}
	if next.Level == "" {
		return
	}
	level, err := xlog.ParseLevel(next.Level)
	if err != nil {
		logger.Warn(ctx, "ignoring invalid log level", xlog.Err(err))
		return
	}
	if level != logger.GetLevel() {
		logger.SetLevel(level)
		logger.Info(ctx, "log level changed", slog.String("level", level.String()))
	}
}
