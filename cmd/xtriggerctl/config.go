package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"

	"github.com/omeyang/xtrigger/pkg/config/xconf"
	"github.com/omeyang/xtrigger/pkg/distributed/xtrigger"
	"github.com/omeyang/xtrigger/pkg/observability/xlog"
	"github.com/omeyang/xtrigger/pkg/resilience/xretry"
	"github.com/omeyang/xtrigger/pkg/storage/xetcd"
)

// 存储后端。
const (
	backendRedis  = "redis"
	backendEtcd   = "etcd"
	backendMemory = "memory"
)

// AppConfig 配置文件结构，命令行参数覆盖文件中的同名项。
type AppConfig struct {
	Scheduler SchedulerConfig `koanf:"scheduler"`
	Store     StoreConfig     `koanf:"store"`
	Log       LogConfig       `koanf:"log"`
}

// SchedulerConfig 对应 xtrigger 的选项，零值表示使用库默认值。
type SchedulerConfig struct {
	Name           string        `koanf:"name"`
	KeyPrefix      string        `koanf:"keyPrefix"`
	PollingDelay   time.Duration `koanf:"pollingDelay"`
	MaxRetries     int           `koanf:"maxRetries"`
	StoreTimeout   time.Duration `koanf:"storeTimeout"`
	FailureBackoff BackoffConfig `koanf:"failureBackoff"`
}

// BackoffConfig InitialDelay 非零时连接失败后按指数退避休眠，否则固定休眠 PollingDelay。
type BackoffConfig struct {
	InitialDelay time.Duration `koanf:"initialDelay"`
	MaxDelay     time.Duration `koanf:"maxDelay"`
	Multiplier   float64       `koanf:"multiplier"`
}

type StoreConfig struct {
	Backend string `koanf:"backend"`
	// ConnectAttempts 启动时连接存储的尝试次数
	ConnectAttempts int          `koanf:"connectAttempts"`
	Redis           RedisConfig  `koanf:"redis"`
	Etcd            xetcd.Config `koanf:"etcd"`
}

// RedisConfig 多个地址或设置 MasterName 时分别使用集群或 Sentinel 客户端。
type RedisConfig struct {
	Addrs      []string `koanf:"addrs"`
	MasterName string   `koanf:"masterName"`
	Username   string   `koanf:"username"`
	Password   string   `koanf:"password"`
	DB         int      `koanf:"db"`
}

type LogConfig struct {
	Level    string              `koanf:"level"`
	Format   string              `koanf:"format"`
	File     string              `koanf:"file"`
	Rotation xlog.RotationConfig `koanf:"rotation"`
}

func defaultConfig() *AppConfig {
	etcd := xetcd.DefaultConfig()
	etcd.Endpoints = []string{"127.0.0.1:2379"}
	return &AppConfig{
		Scheduler: SchedulerConfig{Name: xtrigger.DefaultName},
		Store: StoreConfig{
			Backend:         backendRedis,
			ConnectAttempts: 3,
			Redis:           RedisConfig{Addrs: []string{"127.0.0.1:6379"}},
			Etcd:            *etcd,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// loadConfig 读取 --config 指定的文件（可选），再应用显式设置的全局参数。
// 返回的 xconf.Config 在未指定文件时为 nil。
func loadConfig(cmd *cli.Command) (*AppConfig, xconf.Config, error) {
	cfg := defaultConfig()

	var src xconf.Config
	if path := cmd.String("config"); path != "" {
		c, err := xconf.New(path)
		if err != nil {
			return nil, nil, err
		}
		if err := c.Unmarshal("", cfg); err != nil {
			return nil, nil, err
		}
		src = c
	}

	if cmd.IsSet("backend") {
		cfg.Store.Backend = cmd.String("backend")
	}
	if cmd.IsSet("redis-addr") {
		cfg.Store.Redis.Addrs = cmd.StringSlice("redis-addr")
	}
	if cmd.IsSet("etcd-endpoints") {
		cfg.Store.Etcd.Endpoints = cmd.StringSlice("etcd-endpoints")
	}
	if cmd.IsSet("name") {
		cfg.Scheduler.Name = cmd.String("name")
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}
	if cmd.IsSet("connect-attempts") {
		cfg.Store.ConnectAttempts = int(cmd.Int("connect-attempts"))
	}

	if err := cfg.validate(); err != nil {
		return nil, nil, err
	}
	return cfg, src, nil
}

func (c *AppConfig) validate() error {
	switch c.Store.Backend {
	case backendRedis:
		if len(c.Store.Redis.Addrs) == 0 {
			return newUsageError("redis 后端至少需要一个地址")
		}
	case backendEtcd:
		if err := c.Store.Etcd.Validate(); err != nil {
			return newUsageError(err.Error())
		}
	case backendMemory:
	default:
		return newUsageError(fmt.Sprintf("未知的存储后端 %q（可选 redis、etcd、memory）", c.Store.Backend))
	}
	if _, err := xlog.ParseLevel(c.Log.Level); err != nil {
		return newUsageError(err.Error())
	}
	return nil
}

// schedulerOptions 零值配置项不生成选项，保持库默认值。
func (c *AppConfig) schedulerOptions(logger xlog.Logger) []xtrigger.Option {
	s := c.Scheduler
	opts := []xtrigger.Option{
		xtrigger.WithName(s.Name),
		xtrigger.WithLogger(logger),
		xtrigger.WithPollingDelay(s.PollingDelay),
		xtrigger.WithMaxRetriesOnConnectionFailure(s.MaxRetries),
		xtrigger.WithStoreTimeout(s.StoreTimeout),
	}
	if s.KeyPrefix != "" {
		opts = append(opts, xtrigger.WithKeyPrefix(s.KeyPrefix))
	}
	if b := s.FailureBackoff; b.InitialDelay > 0 {
		opts = append(opts, xtrigger.WithFailureBackoff(xretry.NewExponentialBackoff(
			xretry.WithInitialDelay(b.InitialDelay),
			xretry.WithMaxDelay(b.MaxDelay),
			xretry.WithMultiplier(b.Multiplier),
		)))
	}
	return opts
}

// buildLogger 配置了 File 时写入轮转文件，否则写 stderr。
func (c *AppConfig) buildLogger(cmd *cli.Command) (xlog.LoggerWithLevel, func() error, error) {
	b := xlog.New().
		SetOutput(cmd.Root().ErrWriter).
		SetLevelString(c.Log.Level).
		SetFormat(c.Log.Format)
	if c.Log.File != "" {
		b.SetRotation(c.Log.File, c.Log.Rotation)
	}
	return b.Build()
}

// openStore 按后端创建存储并确认连通，连接失败按 ConnectAttempts 重试。
// 返回的 closer 释放客户端。
func openStore(ctx context.Context, cfg StoreConfig, logger xlog.Logger) (xtrigger.Store, func() error, error) {
	noop := func() error { return nil }

	var (
		store  xtrigger.Store
		closer func() error
	)
	switch cfg.Backend {
	case backendMemory:
		return xtrigger.NewMemoryStore(), noop, nil

	case backendRedis:
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:      cfg.Redis.Addrs,
			MasterName: cfg.Redis.MasterName,
			Username:   cfg.Redis.Username,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
		})
		s, err := xtrigger.NewRedisStore(client)
		if err != nil {
			return nil, nil, errors.Join(err, client.Close())
		}
		store, closer = s, client.Close

	case backendEtcd:
		client, err := xetcd.NewClient(&cfg.Etcd)
		if err != nil {
			return nil, nil, err
		}
		s, err := xtrigger.NewEtcdStore(client.KV())
		if err != nil {
			return nil, nil, errors.Join(err, client.Close())
		}
		store, closer = s, client.Close

	default:
		return nil, nil, newUsageError(fmt.Sprintf("未知的存储后端 %q", cfg.Backend))
	}

	pinger, ok := store.(xtrigger.Pinger)
	if !ok {
		return store, closer, nil
	}
	retryer := xretry.NewRetryer(
		xretry.WithRetryPolicy(xretry.NewFixedRetry(cfg.ConnectAttempts)),
		xretry.WithBackoffPolicy(xretry.NewExponentialBackoff(
			xretry.WithInitialDelay(200*time.Millisecond),
			xretry.WithMaxDelay(5*time.Second),
		)),
		xretry.WithOnRetry(func(attempt int, err error) {
			logger.Warn(ctx, fmt.Sprintf("store not reachable (attempt %d/%d)", attempt, cfg.ConnectAttempts),
				xlog.Err(err))
		}),
	)
	if err := retryer.Do(ctx, pinger.Ping); err != nil {
		return nil, nil, errors.Join(fmt.Errorf("connect %s store: %w", cfg.Backend, err), closer())
	}
	return store, closer, nil
}
