package content

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/cityos/runtime/internal/runtime/dispatcher"
	"github.com/cityos/runtime/internal/runtime/intent"
	"github.com/cityos/runtime/internal/smartcity/tenancy"
)

// Purger runs purge_expired_materializations on a schedule: for every
// known tenant it submits the intent through the dispatcher so the purge
// is WAL-logged like any other execution, rather than mutating state
// directly from a background timer. Cancelling the context passed to Run
// stops it waiting and submitting further tenants; a purge the dispatcher
// has already started runs to completion.
type Purger struct {
	dispatcher *dispatcher.Dispatcher
	tenants    *tenancy.Registry
	log        *logrus.Logger
}

// NewPurger constructs a Purger that submits purge_expired_materializations
// intents through d.
func NewPurger(d *dispatcher.Dispatcher, tenants *tenancy.Registry, log *logrus.Logger) *Purger {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Purger{dispatcher: d, tenants: tenants, log: log}
}

// Schedule registers the purge run against sched using spec (a standard
// five-field cron expression, e.g. "0 */6 * * *" for every six hours).
func (p *Purger) Schedule(sched *cron.Cron, spec string) (cron.EntryID, error) {
	return sched.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := p.Run(ctx); err != nil {
			p.log.WithError(err).Error("purge_expired_materializations run failed")
		}
	})
}

// Run submits a purge_expired_materializations intent for every active
// tenant and waits for each to complete before moving to the next.
func (p *Purger) Run(ctx context.Context) error {
	for _, t := range p.tenants.List() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if t.Status != tenancy.StatusActive {
			continue
		}
		if err := p.purgeTenant(ctx, t.TenantID); err != nil {
			p.log.WithError(err).WithField("tenant_id", t.TenantID).Error("purge failed for tenant")
		}
	}
	return nil
}

func (p *Purger) purgeTenant(ctx context.Context, tenantID string) error {
	in := intent.New(tenantID, "purge_expired_materializations", "system.purger", nil)

	resultCh, err := p.dispatcher.Submit(ctx, in)
	if err != nil {
		return fmt.Errorf("submit purge intent: %w", err)
	}

	select {
	case res := <-resultCh:
		if res.Err != nil {
			return res.Err
		}
		p.log.WithField("tenant_id", tenantID).Info("purge_expired_materializations completed")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
