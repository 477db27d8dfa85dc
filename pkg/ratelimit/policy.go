// Package ratelimit provides an exact sliding-window rate limiter keyed by
// (identifier, action). Admission is decided against the set of admitted
// attempts within the trailing window, so there is no fixed-bucket boundary
// double-counting.
package ratelimit

import "time"

// Action class names with dedicated default policies.
const (
	ActionLogin    = "login"
	ActionRegister = "register"
	ActionAPI      = "api"
	ActionAPIWrite = "api_write"
)

// Policy bounds one action class: at most MaxAttempts admitted attempts in
// any trailing Window.
type Policy struct {
	MaxAttempts int
	Window      time.Duration
}

// DefaultPolicies returns the built-in action policy table. Unknown actions
// fall back to the ActionAPI policy.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		ActionLogin:    {MaxAttempts: 5, Window: 5 * time.Minute},
		ActionRegister: {MaxAttempts: 3, Window: 10 * time.Minute},
		ActionAPI:      {MaxAttempts: 100, Window: time.Minute},
		ActionAPIWrite: {MaxAttempts: 30, Window: time.Minute},
	}
}
