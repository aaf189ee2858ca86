package xtrigger

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock 时间源。
// 生产环境使用 clockwork.NewRealClock()，测试注入 clockwork.FakeClock 手动推进时间。
type Clock = clockwork.Clock

// scoreOf 触发时间在有序集合中的分值：Unix 毫秒。
func scoreOf(t time.Time) int64 {
	return t.UnixMilli()
}

// timeOf scoreOf 的逆运算。
func timeOf(score int64) time.Time {
	return time.UnixMilli(score)
}
