// Package health aggregates readiness of the store and the model providers a run depends on.
package health

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Status represents the aggregated health status.
type Status string

const (
	// Healthy indicates all components are operational.
	Healthy Status = "ok"
	// Degraded means the store is up but some provider is failing.
	Degraded Status = "degraded"
	// Unhealthy means the store is unreachable; no retriever can work.
	Unhealthy Status = "error"
)

// CheckResult represents an individual component health check outcome.
type CheckResult string

const (
	// CheckOK indicates a passing health check.
	CheckOK CheckResult = "ok"
	// CheckError indicates a failing health check.
	CheckError CheckResult = "error"
)

// DefaultTimeout bounds each component check.
const DefaultTimeout = 3 * time.Second

const storeCheck = "store"

// Report aggregates health check results.
type Report struct {
	Status Status                 `json:"status"`
	Checks map[string]CheckResult `json:"checks"`
}

// Service coordinates health checks.
type Service struct {
	store     Pinger
	providers map[string]Checker
	timeout   time.Duration
}

// New creates a Service. Nil providers are ignored, so optional stages can be passed as-is.
func New(store Pinger, providers map[string]Checker) *Service {
	ps := make(map[string]Checker, len(providers))
	for name, c := range providers {
		if c != nil {
			ps[name] = c
		}
	}
	return &Service{store: store, providers: ps, timeout: DefaultTimeout}
}

// Components lists the checked component names in a stable order.
func (s *Service) Components() []string {
	names := make([]string, 0, len(s.providers)+1)
	names = append(names, storeCheck)
	for n := range s.providers {
		names = append(names, n)
	}
	sort.Strings(names[1:])
	return names
}

// Check runs all checks concurrently, each under its own timeout.
func (s *Service) Check(ctx context.Context) Report {
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		checks = make(map[string]CheckResult, len(s.providers)+1)
	)
	run := func(name string, fn func(context.Context) error) {
		defer wg.Done()
		cctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		res := CheckOK
		if err := fn(cctx); err != nil {
			res = CheckError
		}
		mu.Lock()
		checks[name] = res
		mu.Unlock()
	}

	wg.Add(1 + len(s.providers))
	go run(storeCheck, s.store.Ping)
	for name, c := range s.providers {
		go run(name, c.HealthCheck)
	}
	wg.Wait()

	status := Healthy
	for _, v := range checks {
		if v == CheckError {
			status = Degraded
			break
		}
	}
	if checks[storeCheck] == CheckError {
		status = Unhealthy
	}
	return Report{Status: status, Checks: checks}
}
