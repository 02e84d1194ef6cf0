// Package clock is the agent time source; lease expiry and timestamps go
// through Now so tests can move time.
package clock

import "time"

// NowFunc returns current time. Override in tests for determinism.
var NowFunc = time.Now

// Now returns NowFunc().
func Now() time.Time { return NowFunc() }
