package system

import "context"

// NoopService satisfies Service for components that do not require
// background processing of their own but still need a name slot in the
// Manager's start/stop ordering.
type NoopService struct {
	ServiceName string
}

func (n NoopService) Name() string { return n.ServiceName }

func (NoopService) Start(context.Context) error { return nil }

func (NoopService) Stop(context.Context) error { return nil }
