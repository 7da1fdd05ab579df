// Package ads orchestrates ad watch sessions across provider SDKs.
package ads

import (
	"context"
	"errors"
	"time"

	"github.com/prime-rewards/internal/types"
)

// ErrCallbackTimeout is returned when a callback-style provider never
// reports an outcome
var ErrCallbackTimeout = errors.New("ad provider callback timed out")

// Integration runs one ad view for a provider and blocks until a
// terminal outcome is known. Both provider styles are adapted into
// this single call so the orchestrator has one outcome path.
type Integration interface {
	Kind() types.IntegrationKind
	Run(ctx context.Context) error
}

// PromiseIntegration wraps providers whose SDK resolves or rejects a
// single show call. The call itself signals completion, so the
// orchestrator verifies the elapsed watch time afterwards.
type PromiseIntegration struct {
	show func(ctx context.Context) error
}

// NewPromiseIntegration creates a promise-style integration
func NewPromiseIntegration(show func(ctx context.Context) error) *PromiseIntegration {
	return &PromiseIntegration{show: show}
}

// Kind returns the integration kind
func (p *PromiseIntegration) Kind() types.IntegrationKind {
	return types.KindPromise
}

// Run executes the show call. No internal deadline is applied; a
// provider that never settles holds the watch lock until it does.
func (p *PromiseIntegration) Run(ctx context.Context) error {
	return p.show(ctx)
}

// CallbackIntegration wraps providers whose SDK reports the outcome
// through success/error callbacks. The callbacks are funneled into a
// channel so Run can block like the promise style does.
type CallbackIntegration struct {
	start func(onSuccess func(), onError func(error))
}

// NewCallbackIntegration creates a callback-style integration
func NewCallbackIntegration(start func(onSuccess func(), onError func(error))) *CallbackIntegration {
	return &CallbackIntegration{start: start}
}

// Kind returns the integration kind
func (c *CallbackIntegration) Kind() types.IntegrationKind {
	return types.KindCallback
}

// Run starts the provider and waits for the first callback or the
// context deadline. Late duplicate callbacks are dropped.
func (c *CallbackIntegration) Run(ctx context.Context) error {
	outcome := make(chan error, 1)

	deliver := func(err error) {
		select {
		case outcome <- err:
		default:
		}
	}

	c.start(
		func() { deliver(nil) },
		func(err error) { deliver(err) },
	)

	select {
	case err := <-outcome:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrCallbackTimeout
		}
		return ctx.Err()
	}
}

// callbackDeadline computes the outcome deadline for a callback-style
// provider: at least the configured floor, and always longer than the
// required watch time.
func callbackDeadline(floor, waitTime time.Duration) time.Duration {
	if d := waitTime + 5*time.Second; d > floor {
		return d
	}
	return floor
}
