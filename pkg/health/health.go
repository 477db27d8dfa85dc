// Package health exposes the process lifecycle to orchestrators. A Checker
// moves Starting -> Ready -> Draining, and the probe handlers translate the
// current state into the 200/503 answers a load balancer acts on.
package health

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
)

// State is one point in the process lifecycle.
type State int32

const (
	// Starting covers initialization: config, stores, migrations.
	Starting State = iota
	// Ready means the listener is accepting and should receive traffic.
	Ready
	// Draining means shutdown has begun and the process should leave
	// rotation while in-flight requests finish.
	Draining
)

// String returns the lowercase state name used in probe bodies.
func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Draining:
		return "draining"
	default:
		return "starting"
	}
}

// Checker holds the process state. It is safe for concurrent use.
type Checker struct {
	state atomic.Int32
}

// NewChecker creates a Checker in the Starting state.
func NewChecker() *Checker {
	return &Checker{}
}

// Set moves the checker to s. Transitions are not validated; the process
// lifecycle owns the ordering.
func (c *Checker) Set(s State) {
	c.state.Store(int32(s))
}

// SetReady moves to Ready.
func (c *Checker) SetReady() { c.Set(Ready) }

// SetDraining moves to Draining.
func (c *Checker) SetDraining() { c.Set(Draining) }

// Current returns the state at this instant.
func (c *Checker) Current() State {
	return State(c.state.Load())
}

// IsReady reports whether the process should receive traffic.
func (c *Checker) IsReady() bool {
	return c.Current() == Ready
}

type probeBody struct {
	Status string `json:"status"`
}

// LivenessHandler answers 200 whenever the process can serve at all, in any
// state. Wire it to /healthz so a hung process gets restarted but a merely
// draining one does not.
func (*Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeProbe(w, http.StatusOK, "ok")
	}
}

// ReadinessHandler answers 200 only in the Ready state, 503 otherwise, with
// the state name in the body. Wire it to /readyz.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		state := c.Current()
		code := http.StatusServiceUnavailable
		if state == Ready {
			code = http.StatusOK
		}
		writeProbe(w, code, state.String())
	}
}

func writeProbe(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(probeBody{Status: status})
}
