package accounting

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// defaultBuildTimeout bounds a shared report build once it no longer follows
// any single request.
const defaultBuildTimeout = 30 * time.Second

// reportBuilds collapses concurrent identical report builds into one.
type reportBuilds struct {
	group   singleflight.Group
	timeout time.Duration
}

func newReportBuilds(timeout time.Duration) *reportBuilds {
	if timeout <= 0 {
		timeout = defaultBuildTimeout
	}
	return &reportBuilds{timeout: timeout}
}

// do runs fn once per key. The build is detached from the caller that
// started it, so a client going away only abandons its own wait.
func (b *reportBuilds) do(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error, bool) {
	resultChan := b.group.DoChan(key, func() (any, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), b.timeout)
		defer cancel()
		return fn(buildCtx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}
