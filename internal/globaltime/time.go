// Package globaltime routes every timestamp through a swappable clock so
// tests can pin audit times without sleeping.
package globaltime

import (
	"sync"
	"time"
)

var (
	mu    sync.RWMutex
	clock func() time.Time = time.Now
)

// Now returns the current time from the active clock.
func Now() time.Time {
	mu.RLock()
	defer mu.RUnlock()
	return clock()
}

// UTC is Now normalized to UTC; database writes use this form.
func UTC() time.Time {
	return Now().UTC()
}

// Freeze pins the clock to a fixed instant until Reset is called.
func Freeze(at time.Time) {
	mu.Lock()
	defer mu.Unlock()
	clock = func() time.Time { return at }
}

// Reset restores the wall clock.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	clock = time.Now
}
