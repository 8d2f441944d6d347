package logic

import (
	"time"
)

// Clock 时间源，测试时可注入固定时钟
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}
