package accounting

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReportBuildSurvivesLeaderCancel(t *testing.T) {
	builds := newReportBuilds(time.Second)
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	build := func(ctx context.Context) (any, error) {
		once.Do(func() { close(started) })
		select {
		case <-release:
			return "tb", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err, _ := builds.do(leaderCtx, "tb", build)
		leaderErr <- err
	}()
	<-started

	type outcome struct {
		val any
		err error
	}
	follower := make(chan outcome, 1)
	go func() {
		val, err, _ := builds.do(context.Background(), "tb", build)
		follower <- outcome{val, err}
	}()

	cancelLeader()
	require.ErrorIs(t, <-leaderErr, context.Canceled)
	close(release)

	got := <-follower
	require.NoError(t, got.err)
	require.Equal(t, "tb", got.val)
}

func TestReportBuildIsBoundedByTimeout(t *testing.T) {
	builds := newReportBuilds(20 * time.Millisecond)
	_, err, _ := builds.do(context.Background(), "slow", func(ctx context.Context) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
