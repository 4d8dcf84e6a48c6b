package timer

import (
	"sync/atomic"
	"time"
)

// 内置粗粒度滴答。邻居老化只比较滴答差,系统时间跳变不会造成整表误老化。
var _tick int64 = 0
var _started int32 = 0

// StartTicker 启动每秒一跳的滴答源,重复调用只会启动一个。
func StartTicker() {
	if !atomic.CompareAndSwapInt32(&_started, 0, 1) {
		return
	}

	c := time.NewTicker(time.Second)
	go func() {
		for {
			<-c.C
			atomic.AddInt64(&_tick, 1)
		}
	}()
}

// Tick 返回当前滴答数,启动前恒为0。
func Tick() int64 {
	return atomic.LoadInt64(&_tick)
}
