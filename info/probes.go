package info

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"
)

type probePayload struct {
	Status  string   `json:"status"`
	Details []string `json:"details,omitempty"`
}

// MemoryStats is the memory section of the health payload, in bytes.
type MemoryStats struct {
	Alloc     uint64 `json:"alloc"`
	HeapInuse uint64 `json:"heapInuse"`
	Sys       uint64 `json:"sys"`
	NumGC     uint32 `json:"numGC"`
}

// OperatorCounts is the operator section of the health payload.
type OperatorCounts struct {
	Loaded     int `json:"loaded"`
	Categories int `json:"categories"`
	Endpoints  int `json:"endpoints"`
}

// HealthPayload is returned by the health endpoint.
type HealthPayload struct {
	Status      string         `json:"status"`
	Uptime      float64        `json:"uptime"`
	Timestamp   string         `json:"timestamp"`
	Version     string         `json:"version"`
	Environment string         `json:"environment"`
	Memory      MemoryStats    `json:"memory"`
	Goroutines  int            `json:"goroutines"`
	Operators   OperatorCounts `json:"operators"`
}

// GetHealth runs the liveness checks and reports process and operator
// counters.
func (ih *InfoHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	if err := ih.runChecks(r.Context(), ih.livenessChecks); err != nil {
		ih.HandleAPIError(w, r, http.StatusServiceUnavailable, err, "liveness probe failed")
		return
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	stats := ih.catalog.Stats()
	now := ih.now()

	ih.RespondWithData(w, r, http.StatusOK, HealthPayload{
		Status:      "healthy",
		Uptime:      now.Sub(ih.startedAt).Seconds(),
		Timestamp:   now.UTC().Format(time.RFC3339),
		Version:     ih.version,
		Environment: ih.environment,
		Memory: MemoryStats{
			Alloc:     mem.Alloc,
			HeapInuse: mem.HeapInuse,
			Sys:       mem.Sys,
			NumGC:     mem.NumGC,
		},
		Goroutines: runtime.NumGoroutine(),
		Operators: OperatorCounts{
			Loaded:     stats.TotalOperators,
			Categories: stats.TotalCategories,
			Endpoints:  stats.TotalEndpoints,
		},
	})
}

// GetReady runs the readiness checks.
func (ih *InfoHandler) GetReady(w http.ResponseWriter, r *http.Request) {
	if err := ih.runChecks(r.Context(), ih.readinessChecks); err != nil {
		ih.HandleAPIError(w, r, http.StatusServiceUnavailable, err, "readiness probe failed")
		return
	}
	ih.RespondWithData(w, r, http.StatusOK, probePayload{Status: "ready"})
}

func (ih *InfoHandler) runChecks(ctx context.Context, checks []ProbeFunc) error {
	if len(checks) == 0 {
		return nil
	}

	timeout := ih.probeTimeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	for idx, check := range checks {
		if check == nil {
			continue
		}

		if err := check(probeCtx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return fmt.Errorf("probe %d timed out after %s", idx+1, timeout)
			}
			if errors.Is(err, context.Canceled) {
				return fmt.Errorf("probe %d was cancelled", idx+1)
			}
			return fmt.Errorf("probe %d failed: %w", idx+1, err)
		}
	}

	return nil
}

func filterProbes(checks []ProbeFunc) []ProbeFunc {
	filtered := make([]ProbeFunc, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	return filtered
}
