package trafficcop

import "testing"

func TestAllowIsolatesTenantBuckets(t *testing.T) {
	cop := New(Policy{RequestsPerSecond: 1, Burst: 1})

	if !cop.Allow("tenant-a") {
		t.Fatal("expected first request to be allowed")
	}
	if cop.Allow("tenant-a") {
		t.Fatal("expected second immediate request to be throttled")
	}
	if !cop.Allow("tenant-b") {
		t.Fatal("expected a different tenant's bucket to be independent")
	}
}

func TestResetRefillsBucket(t *testing.T) {
	cop := New(Policy{RequestsPerSecond: 1, Burst: 1})
	cop.Allow("tenant-a")
	cop.Reset("tenant-a")
	if !cop.Allow("tenant-a") {
		t.Fatal("expected reset to refill the tenant's bucket")
	}
}
