// Package curator is the Smart City governance primitive for Artifact
// Plane hygiene: it applies a retention policy to obsolete artifact
// versions, reporting which have aged past the retention window. It does
// not archive or delete anything itself.
package curator

import (
	"context"
	"time"

	"github.com/cityos/runtime/internal/artifact"
)

// RetentionPolicy bounds how long an obsolete artifact version is kept
// before the curator considers it eligible for purge.
type RetentionPolicy struct {
	ObsoleteRetention time.Duration
}

// DefaultRetentionPolicy keeps obsolete versions for 30 days.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{ObsoleteRetention: 30 * 24 * time.Hour}
}

// Curator decides which artifact versions a tenant's registry should purge.
type Curator struct {
	registry *artifact.Registry
	policy   RetentionPolicy
}

// New constructs a Curator over registry, applying policy.
func New(registry *artifact.Registry, policy RetentionPolicy) *Curator {
	if policy.ObsoleteRetention <= 0 {
		policy = DefaultRetentionPolicy()
	}
	return &Curator{registry: registry, policy: policy}
}

// Expired returns every obsolete version of artifactID whose retention
// window has elapsed, oldest first.
func (c *Curator) Expired(ctx context.Context, tenantID, artifactID string) ([]artifact.Artifact, error) {
	versions, err := c.registry.List(ctx, tenantID, artifactID)
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-c.policy.ObsoleteRetention)
	var expired []artifact.Artifact
	for _, v := range versions {
		if v.Lifecycle == artifact.LifecycleObsolete && v.CreatedAt.Before(cutoff) {
			expired = append(expired, v)
		}
	}
	return expired, nil
}
