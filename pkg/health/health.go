// Package health implements liveness and readiness probes for the API
// server, in the shape Kubernetes expects.
//
// Registered checks run in background goroutines on a fixed interval; the
// HTTP endpoints only report the last observed state and never execute a
// check inline. Consecutive-failure and consecutive-success thresholds keep
// a single slow database ping from flapping the pod out of rotation.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// CheckFunc probes one dependency. A nil return means healthy.
type CheckFunc func(ctx context.Context) error

// Thresholds before a probe changes state. Three consecutive failures mark
// it down, a single success brings it back.
const (
	failsToUnhealthy = 3
	passesToHealthy  = 1
)

// probe is one registered check plus its runtime state.
//
// run is invoked from a single goroutine, so the consecutive counters are
// plain ints. healthy and lastErr are also read by HTTP handlers and use
// atomics.
type probe struct {
	name    string
	timeout time.Duration
	check   CheckFunc

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	fails  int
	passes int
}

func newProbe(name string, timeout time.Duration, check CheckFunc) *probe {
	p := &probe{name: name, timeout: timeout, check: check}
	// Optimistic start: a probe is healthy until it fails the threshold.
	p.healthy.Store(true)
	return p
}

func (p *probe) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.check(ctx)
	p.lastErr.Store(&err)

	if err != nil {
		p.passes = 0
		if p.fails++; p.fails >= failsToUnhealthy {
			p.healthy.Store(false)
		}
		return
	}
	p.fails = 0
	if p.passes++; p.passes >= passesToHealthy {
		p.healthy.Store(true)
	}
}

// failure returns the message to report for an unhealthy probe.
func (p *probe) failure() string {
	if ep := p.lastErr.Load(); ep != nil && *ep != nil {
		return (*ep).Error()
	}
	return "check is unhealthy"
}

// loop re-runs the probe until ctx is cancelled. The first run happens
// immediately so the state is populated before the first scrape.
func (p *probe) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	p.run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.run(ctx)
		}
	}
}

// Health tracks liveness and readiness probes for one service.
type Health struct {
	ready atomic.Bool

	// mu guards the probe slices and cancel. Registration happens before
	// Start; handlers copy the slice under RLock and read probe state
	// through atomics afterwards.
	mu        sync.RWMutex
	liveness  []*probe
	readiness []*probe
	cancel    context.CancelFunc
}

// New returns a Health in the not-ready state. Call SetReady(true) once
// startup has finished.
func New() *Health {
	return &Health{}
}

// AddLivenessCheck registers a probe for /livez. Liveness failures mean the
// process itself is wedged (goroutine leak, runaway GC) and should be
// restarted.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newProbe(name, timeout, check))
}

// AddReadinessCheck registers a probe for /readyz. Readiness failures mean a
// dependency such as Postgres is unavailable and traffic should be routed
// elsewhere until it recovers.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newProbe(name, timeout, check))
}

// Start launches one goroutine per registered probe, each re-running its
// check at the given interval. Register all probes before calling Start.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)

	h.mu.Lock()
	h.cancel = cancel
	probes := make([]*probe, 0, len(h.liveness)+len(h.readiness))
	probes = append(probes, h.liveness...)
	probes = append(probes, h.readiness...)
	h.mu.Unlock()

	for _, p := range probes {
		go p.loop(ctx, interval)
	}
}

// Stop cancels the probe goroutines. Safe to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
}

// SetReady flips the manual readiness gate. The server sets it to true after
// initialization and back to false at the start of graceful shutdown so the
// load balancer drains it before connections are closed.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the gate is open and every readiness probe passes.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}

	h.mu.RLock()
	probes := h.readiness
	h.mu.RUnlock()

	for _, p := range probes {
		if !p.healthy.Load() {
			return false
		}
	}
	return true
}

func (h *Health) snapshot(readiness bool) []*probe {
	h.mu.RLock()
	defer h.mu.RUnlock()
	src := h.liveness
	if readiness {
		src = h.readiness
	}
	out := make([]*probe, len(src))
	copy(out, src)
	return out
}

// LiveEndpoint serves /livez: 200 when all liveness probes pass, 503 with
// per-probe failure messages otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, failures(h.snapshot(false)))
}

// ReadyEndpoint serves /readyz: 200 when the service is marked ready and all
// readiness probes pass, 503 otherwise.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	fails := failures(h.snapshot(true))
	if !h.ready.Load() {
		fails["ready"] = "service has not been marked ready"
	}
	writeStatus(w, fails)
}

func failures(probes []*probe) map[string]string {
	fails := make(map[string]string)
	for _, p := range probes {
		if !p.healthy.Load() {
			fails[p.name] = p.failure()
		}
	}
	return fails
}

type statusResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func writeStatus(w http.ResponseWriter, fails map[string]string) {
	resp := statusResponse{Status: "ok"}
	code := http.StatusOK
	if len(fails) > 0 {
		resp = statusResponse{Status: "unhealthy", Checks: fails}
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
