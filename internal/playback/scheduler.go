package playback

import "time"

// Timer is a pending scheduled task.
type Timer interface {
	Stop() bool
}

// Scheduler runs fn once after d. Implementations may call fn on any goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
}

type systemScheduler struct{}

func (systemScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// SystemScheduler schedules ticks on the runtime timer.
var SystemScheduler Scheduler = systemScheduler{}
