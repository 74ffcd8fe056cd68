package system

import "context"

// Lifecycle provides default no-op Start/Stop/Ready handling. Embed it into
// a service struct and override only the methods that need real behavior.
type Lifecycle struct{}

func (Lifecycle) Name() string { return "" }

func (Lifecycle) Start(ctx context.Context) error {
	_ = ctx
	return nil
}

func (Lifecycle) Stop(ctx context.Context) error {
	_ = ctx
	return nil
}

func (Lifecycle) Ready(ctx context.Context) error {
	_ = ctx
	return nil
}
