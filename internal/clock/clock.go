// Package clock abstracts wall clock reads and one-shot timers so the refresh cycle can be driven
// by a manual clock in tests.
package clock

import "time"

type Timer interface {
	// Stop prevents the timer from firing. It reports false if the timer already fired or was stopped.
	Stop() bool
}

type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Real returns the system clock.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
