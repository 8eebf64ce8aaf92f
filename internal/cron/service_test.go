package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/timecredit-backend/pkg/logger"
	"github.com/angelmondragon/timecredit-backend/pkg/metrics"
)

type fakeLock struct {
	held      bool
	releases  int
	refreshes int
	lost      bool
}

func (f *fakeLock) Refresh(context.Context) error {
	f.refreshes++
	if f.lost {
		return ErrLockLost
	}
	return nil
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error {
	f.held = false
	f.releases++
	return nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func TestRunOnceRunsEveryJobAndCombinesFailures(t *testing.T) {
	ok := &testJob{name: "ok"}
	first := &testJob{name: "first", err: errors.New("boom")}
	second := &testJob{name: "second", err: errors.New("bang")}
	lock := &fakeLock{}
	reg := prometheus.NewRegistry()

	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: NewRegistry(first, ok, second),
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
	require.NoError(t, err)

	err = svc.RunOnce(context.Background())
	require.Error(t, err)
	require.Len(t, multierr.Errors(err), 2)
	require.Contains(t, err.Error(), "first: boom")
	require.Contains(t, err.Error(), "second: bang")

	require.Equal(t, 1, ok.runs)
	require.Equal(t, 1, first.runs)
	require.Equal(t, 1, second.runs)
	require.Equal(t, 1, lock.releases)
	require.Equal(t, 2, lock.refreshes)
	require.False(t, lock.held)
	runs, err := testutil.GatherAndCount(reg, "timecredit_cron_job_runs_total")
	require.NoError(t, err)
	require.Equal(t, 3, runs)
	succeeded, err := testutil.GatherAndCount(reg, "timecredit_cron_job_last_success_timestamp_seconds")
	require.NoError(t, err)
	require.Equal(t, 1, succeeded)
}

func TestRunOnceStopsWhenLeaseLost(t *testing.T) {
	first := &testJob{name: "first"}
	second := &testJob{name: "second"}
	lock := &fakeLock{lost: true}
	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: NewRegistry(first, second),
		Lock:     lock,
	})
	require.NoError(t, err)

	err = svc.RunOnce(context.Background())
	require.ErrorIs(t, err, ErrLockLost)
	require.Equal(t, 1, first.runs)
	require.Zero(t, second.runs)
	require.Equal(t, 1, lock.releases)
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "job"}
	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: NewRegistry(job),
		Lock:     &fakeLock{held: true},
	})
	require.NoError(t, err)

	require.NoError(t, svc.RunOnce(context.Background()))
	require.Zero(t, job.runs)
}

func TestNewServiceRequiresLock(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: logger.New(logger.Options{ServiceName: "cron-test"})})
	require.Error(t, err)
}
