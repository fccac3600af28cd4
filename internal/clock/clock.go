// Package clock provides the injectable time source used by the session
// and stats services so tests can control "now" deterministically.
package clock

import "github.com/benbjohnson/clock"

// Clock is the time source consumed by services. Production code uses the
// real clock; tests substitute a mock and advance it explicitly.
type Clock = clock.Clock

// Mock is a controllable clock for tests. Use Set to pin "now" and Add to
// simulate elapsed time.
type Mock = clock.Mock

// New returns the real wall clock.
func New() Clock {
	return clock.New()
}

// NewMock returns a mock clock pinned at the Unix epoch.
func NewMock() *Mock {
	return clock.NewMock()
}
