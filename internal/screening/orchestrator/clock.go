package orchestrator

import "time"

// Clock is the time source the workflow sleeps on. Tests swap in a clock
// that fires immediately so a full poll budget runs without waiting.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

func (RealClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
