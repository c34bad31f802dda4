// Package health serves the liveness and readiness endpoints.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const defaultCheckTimeout = 500 * time.Millisecond

var draining atomic.Bool

// SetReady flips the process-wide readiness flag. The API clears it when a
// shutdown begins so load balancers stop routing new traffic.
func SetReady(v bool) {
	draining.Store(!v)
}

// Check is one readiness dependency: a name for the report and a ping bounded
// by Timeout.
type Check struct {
	Name    string
	Timeout time.Duration
	Ping    func(ctx context.Context) error
}

func (c Check) run(ctx context.Context) error {
	if c.Ping == nil {
		return errors.New(c.Name + " not configured")
	}
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Ping(ctx)
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checks []Check
}

// Live answers as long as the process serves HTTP.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready pings every dependency in parallel and answers 200 only when all of
// them respond. The body maps each check name to "ok" or its error.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if draining.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	if len(h.Checks) == 0 {
		http.Error(w, "dependencies unavailable", http.StatusServiceUnavailable)
		return
	}

	results := make([]error, len(h.Checks))
	var wg sync.WaitGroup
	for i, c := range h.Checks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.run(r.Context())
		}()
	}
	wg.Wait()

	code := http.StatusOK
	report := make(map[string]string, len(h.Checks))
	for i, c := range h.Checks {
		if results[i] != nil {
			report[c.Name] = results[i].Error()
			code = http.StatusServiceUnavailable
			continue
		}
		report[c.Name] = "ok"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(report)
}
