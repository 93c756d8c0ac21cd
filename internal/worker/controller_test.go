package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestControllerShutdownReachesStopped(t *testing.T) {
	pool := NewPool(4)
	offsets := NewOffsetCoordinator(map[string]string{}, map[string]Committer{}, zap.NewNop())
	ctrl := NewController(nil, pool, offsets, zap.NewNop(), ControllerConfig{
		CommitInterval: time.Second,
		DrainDeadline:  50 * time.Millisecond,
		DrainPoll:      5 * time.Millisecond,
	})

	assert.Equal(t, StateRunning, ctrl.State())

	ctrl.Shutdown(context.Background())

	assert.Equal(t, StateStopped, ctrl.State())
	assert.False(t, pool.Accepting())
}

func TestControllerShutdownWaitsForInFlightWork(t *testing.T) {
	pool := NewPool(4)
	offsets := NewOffsetCoordinator(map[string]string{}, map[string]Committer{}, zap.NewNop())
	ctrl := NewController(nil, pool, offsets, zap.NewNop(), ControllerConfig{
		CommitInterval: time.Second,
		DrainDeadline:  time.Second,
		DrainPoll:      2 * time.Millisecond,
	})

	release := make(chan struct{})
	pool.Go(func() { <-release })

	done := make(chan struct{})
	go func() {
		ctrl.Shutdown(context.Background())
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("shutdown returned before in-flight task finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	<-done
	assert.Equal(t, StateStopped, ctrl.State())
}
