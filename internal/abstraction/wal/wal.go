// Package wal implements the Write-Ahead Log abstraction: a per-tenant,
// strictly monotonic sequence of events recording every state transition
// an execution makes, so a crashed runtime can replay a tenant's log to
// reconstruct exactly where each execution left off.
package wal

import (
	"context"
	"sync"
	"time"

	"github.com/cityos/runtime/internal/capability/rowstore"
	"github.com/cityos/runtime/internal/runtimeerr"
)

const table = "wal_events"

// Event is one entry in a tenant's write-ahead log.
type Event struct {
	TenantID    string
	SequenceNo  int64
	ExecutionID string
	EventType   string
	Payload     map[string]any
	RecordedAt  time.Time
}

// Log is the per-tenant WAL abstraction over the row store. It serializes
// appends per tenant so sequence numbers are assigned without gaps even
// under concurrent callers.
type Log struct {
	rows rowstore.Store

	mu       sync.Mutex
	head     map[string]int64
	recovered map[string]bool
}

// New constructs a Log over the given row store.
func New(rows rowstore.Store) *Log {
	return &Log{rows: rows, head: make(map[string]int64), recovered: make(map[string]bool)}
}

// recoverHeadLocked loads tenantID's current sequence head from the row
// store the first time the tenant is touched in this process, so a
// restarted runtime continues a tenant's sequence rather than restarting
// it at zero.
func (l *Log) recoverHeadLocked(ctx context.Context, tenantID string) error {
	if l.recovered[tenantID] {
		return nil
	}
	rows, err := l.rows.Query(ctx, tenantID, table, nil, 0)
	if err != nil {
		return runtimeerr.NewCapabilityError("rowstore", "Query", err)
	}
	var max int64
	for _, row := range rows {
		if seq := toInt64(row["sequence_no"]); seq > max {
			max = seq
		}
	}
	l.head[tenantID] = max
	l.recovered[tenantID] = true
	return nil
}

// Append records event for tenantID, assigning the next sequence number.
// The assigned sequence is returned so callers can correlate it with the
// execution's own state.
func (l *Log) Append(ctx context.Context, tenantID, executionID, eventType string, payload map[string]any) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.recoverHeadLocked(ctx, tenantID); err != nil {
		return 0, err
	}

	seq := l.head[tenantID] + 1

	event := Event{
		TenantID:    tenantID,
		SequenceNo:  seq,
		ExecutionID: executionID,
		EventType:   eventType,
		Payload:     payload,
		RecordedAt:  time.Now(),
	}

	if err := l.rows.Insert(ctx, tenantID, table, rowstore.Row{
		"sequence_no":  seq,
		"execution_id": executionID,
		"event_type":   eventType,
		"payload":      payload,
		"recorded_at":  event.RecordedAt,
	}); err != nil {
		return 0, runtimeerr.NewCapabilityError("rowstore", "Insert", err)
	}

	l.head[tenantID] = seq
	return seq, nil
}

// Replay returns every event recorded for tenantID with sequence number
// greater than afterSeq, in sequence order, used to resume an execution
// from the last durable checkpoint.
func (l *Log) Replay(ctx context.Context, tenantID string, afterSeq int64) ([]Event, error) {
	rows, err := l.rows.Query(ctx, tenantID, table, nil, 0)
	if err != nil {
		return nil, runtimeerr.NewCapabilityError("rowstore", "Query", err)
	}

	var events []Event
	for _, row := range rows {
		seq := toInt64(row["sequence_no"])
		if seq <= afterSeq {
			continue
		}
		e := Event{
			TenantID:    tenantID,
			SequenceNo:  seq,
			ExecutionID: str(row["execution_id"]),
			EventType:   str(row["event_type"]),
		}
		if payload, ok := row["payload"].(map[string]any); ok {
			e.Payload = payload
		}
		if ts, ok := row["recorded_at"].(time.Time); ok {
			e.RecordedAt = ts
		}
		events = append(events, e)
	}

	for i := 1; i < len(events); i++ {
		for j := i; j > 0 && events[j-1].SequenceNo > events[j].SequenceNo; j-- {
			events[j-1], events[j] = events[j], events[j-1]
		}
	}
	return events, nil
}

// Head returns the highest sequence number appended so far for tenantID.
func (l *Log) Head(ctx context.Context, tenantID string) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	_ = l.recoverHeadLocked(ctx, tenantID)
	return l.head[tenantID]
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
