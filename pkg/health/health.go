// Package health serves the gateway's liveness and readiness probes.
//
// /healthz always answers 200. /readyz runs every registered [Checker]
// concurrently and answers 503 when a required check fails. Optional checks
// only downgrade the overall status to "degraded". Because the AI check
// costs a real completion, reports can be cached for a short TTL and
// concurrent probes share a single evaluation.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultCheckTimeout bounds a single check when [Checker.Timeout] is zero.
const DefaultCheckTimeout = 5 * time.Second

// Overall and per-check status values.
const (
	StatusOK       = "ok"
	StatusDegraded = "degraded"
	StatusFail     = "fail"
)

// Checker probes one dependency.
type Checker struct {
	// Name keys the check in the report, e.g. "ai" or "vectorstore".
	Name string

	// Check returns nil when the dependency is usable. It must honour ctx.
	Check func(ctx context.Context) error

	// Optional checks never make the gateway unready.
	Optional bool

	// Timeout overrides [DefaultCheckTimeout].
	Timeout time.Duration
}

// CheckResult is the outcome of one check.
type CheckResult struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Report is the /readyz response body.
type Report struct {
	Status    string                 `json:"status"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
	CheckedAt time.Time              `json:"checked_at"`
}

// Handler serves the probe endpoints. It is safe for concurrent use.
type Handler struct {
	checkers []Checker
	ttl      time.Duration
	now      func() time.Time

	group singleflight.Group
	mu    sync.Mutex
	last  *Report
}

// Option configures a [Handler].
type Option func(*Handler)

// WithCacheTTL reuses a readiness report for d. Zero disables caching.
func WithCacheTTL(d time.Duration) Option {
	return func(h *Handler) { h.ttl = d }
}

// New returns a handler evaluating checkers on /readyz.
func New(checkers []Checker, opts ...Option) *Handler {
	h := &Handler{
		checkers: append([]Checker(nil), checkers...),
		now:      time.Now,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Register mounts /healthz and /readyz on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.Healthz)
	r.Get("/readyz", h.Readyz)
}

// Healthz reports that the process is alive.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": StatusOK})
}

// Readyz writes the current [Report]; 503 when its status is [StatusFail].
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	rep := h.Evaluate(r.Context())
	code := http.StatusOK
	if rep.Status == StatusFail {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, rep)
}

// Evaluate returns a cached report when it is younger than the TTL and runs
// the checks otherwise. Concurrent callers share one run.
func (h *Handler) Evaluate(ctx context.Context) Report {
	if rep, ok := h.cached(); ok {
		return rep
	}
	v, _, _ := h.group.Do("readyz", func() (any, error) {
		// The run outlives a caller that gives up, so it must not inherit
		// that caller's cancellation.
		rep := h.run(context.WithoutCancel(ctx))
		if h.ttl > 0 {
			h.mu.Lock()
			h.last = &rep
			h.mu.Unlock()
		}
		return rep, nil
	})
	return v.(Report)
}

func (h *Handler) cached() (Report, bool) {
	if h.ttl <= 0 {
		return Report{}, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.last == nil || h.now().Sub(h.last.CheckedAt) >= h.ttl {
		return Report{}, false
	}
	return *h.last, true
}

func (h *Handler) run(ctx context.Context) Report {
	var (
		mu  sync.Mutex
		rep = Report{
			Status:    StatusOK,
			Checks:    make(map[string]CheckResult, len(h.checkers)),
			CheckedAt: h.now(),
		}
	)

	var g errgroup.Group
	for _, c := range h.checkers {
		g.Go(func() error {
			timeout := c.Timeout
			if timeout <= 0 {
				timeout = DefaultCheckTimeout
			}
			cctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			err := c.Check(cctx)
			res := CheckResult{Status: StatusOK, LatencyMS: time.Since(start).Milliseconds()}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Error = err.Error()
				res.Status = StatusFail
				switch {
				case !c.Optional:
					rep.Status = StatusFail
				case rep.Status == StatusOK:
					rep.Status = StatusDegraded
				}
				if c.Optional {
					res.Status = StatusDegraded
				}
			}
			rep.Checks[c.Name] = res
			return nil
		})
	}
	_ = g.Wait()
	return rep
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
