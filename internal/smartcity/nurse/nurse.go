// Package nurse is the Smart City governance primitive for health: it
// samples host resource usage and runs registered dependency checkers.
// The Experience Edge's /healthz handler does not consult it.
package nurse

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Vitals is a single resource sample.
type Vitals struct {
	SampledAt   time.Time
	CPUPercent  float64
	MemPercent  float64
	MemUsedMB   uint64
}

// Checker reports whether a dependency this runtime relies on is healthy.
type Checker func(ctx context.Context) error

// Nurse samples host vitals on a timer and runs registered checkers on
// demand through CheckAll.
type Nurse struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	latest   Vitals
}

// New constructs a Nurse with no registered checkers.
func New() *Nurse {
	return &Nurse{checkers: make(map[string]Checker)}
}

// Register adds a named dependency checker.
func (n *Nurse) Register(name string, checker Checker) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.checkers[name] = checker
}

// Sample captures current host vitals and caches them for Latest.
func (n *Nurse) Sample(ctx context.Context) (Vitals, error) {
	v := Vitals{SampledAt: time.Now()}

	cpuPercents, err := cpu.PercentWithContext(ctx, 0, false)
	if err == nil && len(cpuPercents) > 0 {
		v.CPUPercent = cpuPercents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err == nil {
		v.MemPercent = vm.UsedPercent
		v.MemUsedMB = vm.Used / (1024 * 1024)
	}

	n.mu.Lock()
	n.latest = v
	n.mu.Unlock()
	return v, nil
}

// Latest returns the most recently sampled vitals without re-sampling.
func (n *Nurse) Latest() Vitals {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.latest
}

// Run samples vitals every interval until ctx is canceled.
func (n *Nurse) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = n.Sample(ctx)
		}
	}
}

// CheckAll runs every registered checker and returns the names of any that
// failed, along with their errors.
func (n *Nurse) CheckAll(ctx context.Context) map[string]error {
	n.mu.RLock()
	checkers := make(map[string]Checker, len(n.checkers))
	for name, c := range n.checkers {
		checkers[name] = c
	}
	n.mu.RUnlock()

	failures := make(map[string]error)
	for name, checker := range checkers {
		if err := checker(ctx); err != nil {
			failures[name] = err
		}
	}
	return failures
}
