package engine

import (
	"sync"
	"time"
)

// SystemClock fires callbacks from a time.Ticker on its own goroutine.
type SystemClock struct{}

// Every implements Clock.
func (SystemClock) Every(period time.Duration, fn func()) func() {
	ticker := time.NewTicker(period)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				select {
				case <-done:
					return
				default:
				}
				fn()
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}
