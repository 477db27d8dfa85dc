package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/leadfoundry/leadfoundry/pkg/clock"
)

// Decision is the outcome of an admission check.
type Decision struct {
	// Allowed reports whether the attempt was admitted.
	Allowed bool

	// Remaining is the number of further attempts the caller may make in
	// the current window. Meaningful only when Allowed.
	Remaining int

	// RetryAfterSeconds is how long until the oldest retained attempt
	// leaves the window, floored to whole seconds, never negative.
	// Meaningful only when not Allowed.
	RetryAfterSeconds int
}

// windowKey identifies one attempt window.
type windowKey struct {
	identifier string
	action     string
}

// Limiter is a sliding-window rate limiter. It is safe for concurrent use;
// a single mutex covers each lookup-trim-append sequence so no caller
// observes a half-updated window.
type Limiter struct {
	mu       sync.Mutex
	attempts map[windowKey][]time.Time

	policies map[string]Policy
	fallback Policy
	widest   time.Duration
	clk      clock.Clock

	cancel context.CancelFunc
	done   chan struct{}
}

// NewLimiter creates a Limiter with the given policy table. Nil policies
// falls back to DefaultPolicies; a table without an ActionAPI entry gets the
// default one, since it doubles as the unknown-action fallback. Policies
// with MaxAttempts below one are clamped to one. A nil clk falls back to
// the system clock.
func NewLimiter(policies map[string]Policy, clk clock.Clock) *Limiter {
	if policies == nil {
		policies = DefaultPolicies()
	}
	if _, ok := policies[ActionAPI]; !ok {
		policies[ActionAPI] = DefaultPolicies()[ActionAPI]
	}
	for action, p := range policies {
		// A window that admits nothing has no oldest attempt to compute
		// a retry hint from. Clamp so misconfigured tables degrade to
		// the tightest valid policy instead of panicking on first use.
		if p.MaxAttempts < 1 {
			p.MaxAttempts = 1
			policies[action] = p
		}
	}
	if clk == nil {
		clk = clock.System{}
	}

	widest := time.Duration(0)
	for _, p := range policies {
		if p.Window > widest {
			widest = p.Window
		}
	}

	return &Limiter{
		attempts: make(map[windowKey][]time.Time),
		policies: policies,
		fallback: policies[ActionAPI],
		widest:   widest,
		clk:      clk,
	}
}

// PolicyFor returns the policy applied to action, falling back to the
// ActionAPI policy for unrecognized actions.
func (l *Limiter) PolicyFor(action string) Policy {
	if p, ok := l.policies[action]; ok {
		return p
	}
	return l.fallback
}

// trim returns the attempts still inside the window at now. A timestamp
// exactly window old is expired: retention is strict now - ts < window.
func trim(attempts []time.Time, now time.Time, window time.Duration) []time.Time {
	kept := attempts[:0]
	for _, ts := range attempts {
		if now.Sub(ts) < window {
			kept = append(kept, ts)
		}
	}
	return kept
}

// oldest returns the earliest timestamp in attempts, which must be non-empty.
func oldest(attempts []time.Time) time.Time {
	min := attempts[0]
	for _, ts := range attempts[1:] {
		if ts.Before(min) {
			min = ts
		}
	}
	return min
}

// retrySeconds computes how long until the oldest retained attempt leaves the
// window, floored to whole seconds, never negative.
func retrySeconds(oldestTS, now time.Time, window time.Duration) int {
	remaining := window - now.Sub(oldestTS)
	if remaining < 0 {
		return 0
	}
	return int(remaining / time.Second)
}

// Allow decides admission for one attempt by identifier against the policy
// for action. The stored window is trimmed on every call, admitted or not;
// only admitted attempts are recorded, so rejected calls do not extend the
// window.
func (l *Limiter) Allow(identifier, action string) Decision {
	pol := l.PolicyFor(action)
	now := l.clk.Now()
	key := windowKey{identifier: identifier, action: action}

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := trim(l.attempts[key], now, pol.Window)

	if len(kept) >= pol.MaxAttempts {
		l.attempts[key] = kept
		return Decision{
			RetryAfterSeconds: retrySeconds(oldest(kept), now, pol.Window),
		}
	}

	kept = append(kept, now)
	l.attempts[key] = kept
	return Decision{
		Allowed:   true,
		Remaining: pol.MaxAttempts - len(kept),
	}
}

// RetryAfter reports the current backoff for (identifier, action) without
// recording an attempt. It returns 0 when no attempts remain in the window.
func (l *Limiter) RetryAfter(identifier, action string) int {
	pol := l.PolicyFor(action)
	now := l.clk.Now()
	key := windowKey{identifier: identifier, action: action}

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := trim(l.attempts[key], now, pol.Window)
	if len(kept) == 0 {
		delete(l.attempts, key)
		return 0
	}
	l.attempts[key] = kept
	return retrySeconds(oldest(kept), now, pol.Window)
}

// Reset clears the window for one (identifier, action) pair, e.g. after a
// successful login.
func (l *Limiter) Reset(identifier, action string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, windowKey{identifier: identifier, action: action})
}

// ResetAll clears every action window recorded for identifier.
func (l *Limiter) ResetAll(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key := range l.attempts {
		if key.identifier == identifier {
			delete(l.attempts, key)
		}
	}
}

// Sweep trims every key to the widest configured window and drops keys left
// with no attempts, bounding memory independent of traffic mix. It returns
// the number of keys removed.
func (l *Limiter) Sweep() int {
	now := l.clk.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, attempts := range l.attempts {
		kept := trim(attempts, now, l.widest)
		if len(kept) == 0 {
			delete(l.attempts, key)
			removed++
			continue
		}
		l.attempts[key] = kept
	}
	return removed
}

// Keys returns the number of windows currently held, stale or not.
func (l *Limiter) Keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.attempts)
}

// StartSweepRoutine starts a background goroutine that periodically sweeps
// stale windows. The goroutine is stopped when Close is called.
func (l *Limiter) StartSweepRoutine(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})

	go func() {
		defer close(l.done)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = l.Sweep()
			}
		}
	}()
}

// Close stops the sweep goroutine and waits for it to exit.
// It is safe to call Close even if StartSweepRoutine was never called.
func (l *Limiter) Close() error {
	if l.cancel != nil {
		l.cancel()
		<-l.done
	}
	return nil
}
