package reconcile

import "time"

// Clock 抽象时间便于测试。
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock 默认时钟。
var SystemClock Clock = realClock{}
