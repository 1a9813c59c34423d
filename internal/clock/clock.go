package clock

import "time"

// Timer is a handle to a pending deferred callback.
type Timer interface {
	// Stop cancels the callback. It reports whether the call stopped a
	// pending timer (false if it already fired or was stopped).
	Stop() bool
}

// Clock provides the current time and deferred callback scheduling.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Dispatcher hands a closure to the goroutine that owns domain state. The
// terminal host posts closures into the bubbletea program; tests run them
// inline.
type Dispatcher func(func())

// Inline runs fn on the calling goroutine.
func Inline(fn func()) {
	if fn != nil {
		fn()
	}
}

type realClock struct{}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	if d < 0 {
		d = 0
	}
	return time.AfterFunc(d, f)
}
