package system

import (
	"context"

	"github.com/robfig/cron/v3"

	core "github.com/cityos/runtime/internal/app/core/service"
)

// CronService adapts a *cron.Cron scheduler to the Service lifecycle so the
// manager starts and stops it alongside every other component.
type CronService struct {
	name  string
	sched *cron.Cron
}

// NewCronService wraps sched under name for manager registration.
func NewCronService(name string, sched *cron.Cron) *CronService {
	return &CronService{name: name, sched: sched}
}

func (s *CronService) Name() string { return s.name }

func (s *CronService) Start(_ context.Context) error {
	s.sched.Start()
	return nil
}

func (s *CronService) Stop(ctx context.Context) error {
	stopCtx := s.sched.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *CronService) Descriptor() core.Descriptor {
	return core.Descriptor{Name: s.name, Domain: "scheduling", Layer: core.LayerEngine}
}
