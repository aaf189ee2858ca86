package xtrigger

// Status 轮询循环状态。
type Status int32

const (
	// StatusIdle 从未启动。
	StatusIdle Status = iota
	// StatusRunning 正在轮询。
	StatusRunning
	// StatusStoppedByRequest 因 Stop 或 Run 的 ctx 结束而退出。
	StatusStoppedByRequest
	// StatusStoppedByRetryExhaustion 连续连接失败达到上限后永久退出，
	// 存储恢复也不会自动重启，需要重新 Start。
	StatusStoppedByRetryExhaustion
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusStoppedByRequest:
		return "stopped"
	case StatusStoppedByRetryExhaustion:
		return "retry_exhausted"
	default:
		return "unknown"
	}
}

// Terminal 是否为终止状态。
func (s Status) Terminal() bool {
	return s == StatusStoppedByRequest || s == StatusStoppedByRetryExhaustion
}
