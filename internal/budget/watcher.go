package budget

import (
	"sync"
	"time"

	"github.com/envelhq/envel/internal/model"
)

// DefaultWatchInterval is the coarse poll interval for day-change
// detection.
const DefaultWatchInterval = 30 * time.Second

// WatchDayChange polls the wall clock and invokes fn with the new date
// exactly once per local calendar-day rollover. The returned stop function
// tears the watcher down and is safe to call more than once.
func WatchDayChange(interval time.Duration, fn func(model.Date)) (stop func()) {
	return watchDayChange(interval, time.Now, fn)
}

func watchDayChange(interval time.Duration, now func() time.Time, fn func(model.Date)) func() {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}

	done := make(chan struct{})
	var once sync.Once

	go func() {
		last := model.DateOf(now())
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if d := model.DateOf(now()); d != last {
					last = d
					fn(d)
				}
			}
		}
	}()

	return func() {
		once.Do(func() { close(done) })
	}
}
