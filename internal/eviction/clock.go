package eviction

import "time"

// Clock 抽象定时能力，测试中替换为可手动推进的虚拟时钟。
type Clock interface {
	Now() time.Time
	// AfterFunc 在 d 之后调用 f，不提供取消。
	AfterFunc(d time.Duration, f func())
}

type realClock struct{}

// RealClock 基于 time.AfterFunc，回调运行在独立 goroutine 上。
func RealClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, f)
}
