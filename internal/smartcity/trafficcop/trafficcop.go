// Package trafficcop is the Smart City governance primitive for admission
// control: it gives every tenant its own token bucket so one tenant's
// burst cannot starve another tenant's FIFO dispatch queue.
package trafficcop

import (
	"sync"

	"golang.org/x/time/rate"
)

// Policy configures the per-tenant token bucket.
type Policy struct {
	RequestsPerSecond float64
	Burst             int
}

// DefaultPolicy matches the runtime's default RATE_LIMIT_* configuration.
func DefaultPolicy() Policy {
	return Policy{RequestsPerSecond: 100, Burst: 200}
}

// Cop admits or rejects intents per tenant according to Policy.
type Cop struct {
	mu       sync.Mutex
	policy   Policy
	limiters map[string]*rate.Limiter
}

// New constructs a Cop. A zero Policy falls back to DefaultPolicy.
func New(policy Policy) *Cop {
	if policy.RequestsPerSecond <= 0 {
		policy = DefaultPolicy()
	}
	if policy.Burst <= 0 {
		policy.Burst = int(policy.RequestsPerSecond * 2)
	}
	return &Cop{policy: policy, limiters: make(map[string]*rate.Limiter)}
}

func (c *Cop) limiterFor(tenantID string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[tenantID]
	if !ok {
		l = rate.NewLimiter(rate.Limit(c.policy.RequestsPerSecond), c.policy.Burst)
		c.limiters[tenantID] = l
	}
	return l
}

// Allow reports whether tenantID may submit another intent right now,
// consuming a token if so.
func (c *Cop) Allow(tenantID string) bool {
	return c.limiterFor(tenantID).Allow()
}

// Reset clears tenantID's bucket back to full burst capacity. Tenancy's
// Resume does not call it.
func (c *Cop) Reset(tenantID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.limiters, tenantID)
}
