package application

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsRegisteredJobs(t *testing.T) {
	scheduler := NewScheduler(SchedulerConfig{RunTimeout: time.Second}, nil)
	var runs atomic.Int32
	scheduler.Register(Job{Name: "poll", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
		runs.Add(1)
		return nil
	}})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- scheduler.Run(ctx) }()

	require.Eventually(t, func() bool { return runs.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestSchedulerRegisterReplacesJobWithSameName(t *testing.T) {
	scheduler := NewScheduler(SchedulerConfig{}, nil)
	var oldRuns, newRuns atomic.Int32

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- scheduler.Run(ctx) }()

	scheduler.Register(Job{Name: "flush", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
		oldRuns.Add(1)
		return nil
	}})
	require.Eventually(t, func() bool { return oldRuns.Load() >= 1 }, 2*time.Second, 5*time.Millisecond)

	scheduler.Register(Job{Name: "flush", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
		newRuns.Add(1)
		return nil
	}})
	frozen := oldRuns.Load()
	require.Eventually(t, func() bool { return newRuns.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	assert.Equal(t, frozen, oldRuns.Load())
	assert.Equal(t, []string{"flush"}, scheduler.Jobs())

	cancel()
	require.NoError(t, <-done)
}

func TestSchedulerAppliesRunTimeout(t *testing.T) {
	scheduler := NewScheduler(SchedulerConfig{RunTimeout: 10 * time.Millisecond}, nil)
	deadlineHit := make(chan struct{}, 1)
	scheduler.Register(Job{Name: "sweep", Interval: time.Millisecond, Run: func(ctx context.Context) error {
		<-ctx.Done()
		select {
		case deadlineHit <- struct{}{}:
		default:
		}
		return ctx.Err()
	}})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = scheduler.Run(ctx) }()

	select {
	case <-deadlineHit:
	case <-time.After(2 * time.Second):
		t.Fatal("job was not cancelled by its run timeout")
	}
}

func TestJitteredIntervalWithSample(t *testing.T) {
	base := 10 * time.Second

	assert.Equal(t, base, jitteredIntervalWithSample(base, 0, 0.9))
	assert.Equal(t, 8*time.Second, jitteredIntervalWithSample(base, 0.2, 0))
	assert.Equal(t, 12*time.Second, jitteredIntervalWithSample(base, 0.2, 1))
	assert.Equal(t, base, jitteredIntervalWithSample(base, 0.2, 0.5))
	assert.Equal(t, 12*time.Second, jitteredIntervalWithSample(base, 0.2, 4))
	assert.Zero(t, jitteredIntervalWithSample(0, 0.2, 0.5))
	assert.Equal(t, 1.0, clampJitterRatio(3))
	assert.Equal(t, 0.0, clampJitterRatio(-1))
}
