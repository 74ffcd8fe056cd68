// Package dispatcher implements the per-tenant FIFO intent dispatcher: each
// tenant's intents execute strictly in submission order, while intents
// from different tenants may run concurrently up to a configured
// parallelism limit. Work is a cooperative goroutine-on-demand design: a
// tenant only occupies a worker slot while it has queued work, so an idle
// tenant costs nothing.
package dispatcher

import (
	"context"
	"sync"
	"time"

	core "github.com/cityos/runtime/internal/app/core/service"
	"github.com/cityos/runtime/internal/abstraction/wal"
	"github.com/cityos/runtime/internal/artifact"
	"github.com/cityos/runtime/internal/obs/metrics"
	"github.com/cityos/runtime/internal/runtime/execution"
	"github.com/cityos/runtime/internal/runtime/intent"
	"github.com/cityos/runtime/internal/runtimeerr"
	"github.com/cityos/runtime/internal/smartcity/steward"
	"github.com/cityos/runtime/internal/smartcity/tenancy"
	"github.com/cityos/runtime/internal/smartcity/trafficcop"
)

// Result is delivered to a submitter once an intent finishes executing.
type Result struct {
	Execution execution.Execution
	Artifacts []artifact.Artifact
	Err       error
}

// job is one queued unit of dispatch work.
type job struct {
	in     intent.Intent
	result chan Result
}

// tenantQueue is a single tenant's FIFO intent queue and whether a worker
// is currently draining it.
type tenantQueue struct {
	mu     sync.Mutex
	jobs   []job
	active bool
}

// Dispatcher routes intents to the registered DomainService for their kind,
// one tenant-queue at a time, with a pool of workerSlots bounding how many
// tenants may be draining concurrently.
type Dispatcher struct {
	services map[string]execution.DomainService
	wal      *wal.Log
	steward  *steward.Steward
	tenancy  *tenancy.Registry
	cop      *trafficcop.Cop

	slots chan struct{}

	mu       sync.Mutex
	tenants  map[string]*tenantQueue
	byIntent map[string]Result
}

// New constructs a Dispatcher. parallelism bounds how many tenant queues
// may be draining at once. queueSize is not used: each tenant's queue is
// capped at maxQueueDepth (4096) intents, beyond which Submit returns
// ErrDispatchQueueFull.
func New(services []execution.DomainService, walLog *wal.Log, stewardSvc *steward.Steward, tenancyReg *tenancy.Registry, cop *trafficcop.Cop, parallelism, queueSize int) *Dispatcher {
	if parallelism < 1 {
		parallelism = 1
	}
	registry := make(map[string]execution.DomainService, len(services))
	for _, svc := range services {
		registry[svc.Kind()] = svc
	}
	d := &Dispatcher{
		services: registry,
		wal:      walLog,
		steward:  stewardSvc,
		tenancy:  tenancyReg,
		cop:      cop,
		slots:    make(chan struct{}, parallelism),
		tenants:  make(map[string]*tenantQueue),
		byIntent: make(map[string]Result),
	}
	_ = queueSize
	return d
}

const maxQueueDepth = 4096

// intentKey identifies a previously dispatched intent for deduplication,
// scoped to the tenant since intent IDs are only unique per tenant.
func intentKey(tenantID, intentID string) string {
	return tenantID + "/" + intentID
}

// Submit admits in for execution, returning a channel that receives
// exactly one Result once the intent has run (or been rejected before
// running). Submit itself does not block on execution.
//
// Resubmitting an IntentID that has already reached a terminal result
// returns the cached Result instead of re-running the handler, so a
// caller that retries after a lost response (rather than a lost request)
// does not duplicate side effects or mint a second set of artifacts.
func (d *Dispatcher) Submit(ctx context.Context, in intent.Intent) (<-chan Result, error) {
	if err := d.tenancy.RequireActive(ctx, in.TenantID); err != nil {
		return nil, err
	}

	d.mu.Lock()
	if cached, ok := d.byIntent[intentKey(in.TenantID, in.IntentID)]; ok {
		d.mu.Unlock()
		results := make(chan Result, 1)
		results <- cached
		close(results)
		return results, nil
	}
	d.mu.Unlock()

	if !d.cop.Allow(in.TenantID) {
		return nil, runtimeerr.ErrDispatchQueueFull
	}
	if _, ok := d.services[in.Kind]; !ok {
		return nil, runtimeerr.NewIntentError(in.TenantID, in.IntentID, "dispatch", runtimeerr.ErrValidation)
	}

	results := make(chan Result, 1)

	d.mu.Lock()
	q, ok := d.tenants[in.TenantID]
	if !ok {
		q = &tenantQueue{}
		d.tenants[in.TenantID] = q
	}
	d.mu.Unlock()

	q.mu.Lock()
	if len(q.jobs) >= maxQueueDepth {
		q.mu.Unlock()
		return nil, runtimeerr.ErrDispatchQueueFull
	}
	q.jobs = append(q.jobs, job{in: in, result: results})
	needsWorker := !q.active
	if needsWorker {
		q.active = true
	}
	depth := len(q.jobs)
	q.mu.Unlock()
	metrics.SetDispatchQueueDepth(in.TenantID, depth)

	if needsWorker {
		go d.drain(in.TenantID, q)
	}
	return results, nil
}

// drain processes q's queue to completion, acquiring a worker slot before
// running each job so overall concurrency never exceeds the configured
// parallelism, and releasing the tenant's active flag once the queue runs
// dry so a later Submit spawns a fresh worker.
func (d *Dispatcher) drain(tenantID string, q *tenantQueue) {
	for {
		q.mu.Lock()
		if len(q.jobs) == 0 {
			q.active = false
			q.mu.Unlock()
			return
		}
		j := q.jobs[0]
		q.jobs = q.jobs[1:]
		depth := len(q.jobs)
		q.mu.Unlock()
		metrics.SetDispatchQueueDepth(tenantID, depth)

		start := time.Now()
		result := func() Result {
			d.slots <- struct{}{}
			defer func() { <-d.slots }()
			return d.run(j.in)
		}()
		metrics.RecordIntentExecution(j.in.Kind, time.Since(start), result.Err)

		d.mu.Lock()
		d.byIntent[intentKey(j.in.TenantID, j.in.IntentID)] = result
		d.mu.Unlock()

		j.result <- result
		close(j.result)
	}
}

func (d *Dispatcher) run(in intent.Intent) Result {
	ctx := context.Background()
	exec := execution.New(in)

	if _, err := d.wal.Append(ctx, in.TenantID, exec.ExecutionID, "execution.started", map[string]any{"intent_id": in.IntentID}); err != nil {
		exec.State = execution.StateFailed
		exec.ErrorReason = err.Error()
		return Result{Execution: exec, Err: err}
	}

	svc := d.services[in.Kind]
	execCtx := execution.Context{Execution: exec, WAL: d.wal, Steward: d.steward}

	var artifacts []artifact.Artifact
	var events []execution.Event
	err := core.Retry(ctx, core.DefaultRetryPolicy, func() error {
		var runErr error
		artifacts, events, runErr = svc.HandleIntent(ctx, execCtx, in)
		return runErr
	})

	for _, ev := range events {
		_, _ = d.wal.Append(ctx, in.TenantID, exec.ExecutionID, ev.Type, ev.Payload)
	}

	if err != nil {
		exec.State = execution.StateFailed
		exec.ErrorReason = err.Error()
		_, _ = d.wal.Append(ctx, in.TenantID, exec.ExecutionID, "execution.failed", map[string]any{"reason": err.Error()})
		return Result{Execution: exec, Err: runtimeerr.NewExecutionError(in.TenantID, exec.ExecutionID, in.Kind, err)}
	}

	exec.State = execution.StateSucceeded
	_, _ = d.wal.Append(ctx, in.TenantID, exec.ExecutionID, "execution.completed", map[string]any{"artifact_count": len(artifacts)})
	return Result{Execution: exec, Artifacts: artifacts}
}
