package xtrigger_test

import (
	"context"
	"fmt"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/omeyang/xtrigger/pkg/distributed/xtrigger"
	"github.com/omeyang/xtrigger/pkg/observability/xlog"
)

func Example() {
	store := xtrigger.NewMemoryStore()

	done := make(chan string, 1)
	listener := xtrigger.ListenerFunc(func(ctx context.Context, taskID string) error {
		done <- taskID
		return nil
	})

	sched, err := xtrigger.New(store, listener,
		xtrigger.WithName("orders"),
		xtrigger.WithPollingDelay(20*time.Millisecond),
		xtrigger.WithLogger(xlog.Discard()),
	)
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	if err := sched.ScheduleAt(ctx, "order-42-expire", time.Now().Add(30*time.Millisecond)); err != nil {
		panic(err)
	}
	if err := sched.Start(); err != nil {
		panic(err)
	}
	fmt.Println("triggered:", <-done)

	if err := sched.Stop(ctx); err != nil {
		panic(err)
	}
	fmt.Println("status:", sched.Status())

	// Output:
	// triggered: order-42-expire
	// status: stopped
}

func ExampleNewRedisStore() {
	mr, err := miniredis.Run()
	if err != nil {
		panic(err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	store, err := xtrigger.NewRedisStore(client)
	if err != nil {
		panic(err)
	}
	sched, err := xtrigger.New(store, xtrigger.ListenerFunc(func(context.Context, string) error { return nil }),
		xtrigger.WithLogger(xlog.Discard()))
	if err != nil {
		panic(err)
	}

	ctx := context.Background()
	at := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	_ = sched.ScheduleAt(ctx, "report", at)
	_ = sched.ScheduleAt(ctx, "cleanup", at.Add(-time.Hour))

	pending, _ := sched.Pending(ctx)
	for _, e := range pending {
		fmt.Println(e.TaskID, e.TriggerAt.UTC().Format(time.RFC3339))
	}
	fmt.Println("key:", sched.Key())

	// Output:
	// cleanup 2029-12-31T23:00:00Z
	// report 2030-01-01T00:00:00Z
	// key: redis-scheduler.scheduler
}

func ExampleScheduler_ScheduleCron() {
	sched, err := xtrigger.New(xtrigger.NewMemoryStore(),
		xtrigger.ListenerFunc(func(ctx context.Context, taskID string) error {
			// 周期任务在触发后自行安排下一次
			return nil
		}),
		xtrigger.WithLogger(xlog.Discard()),
	)
	if err != nil {
		panic(err)
	}

	next, err := sched.ScheduleCron(context.Background(), "nightly-report", "0 2 * * *")
	if err != nil {
		panic(err)
	}
	fmt.Println(next.Hour(), next.Minute())

	// Output:
	// 2 0
}
