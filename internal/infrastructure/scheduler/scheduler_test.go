package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopJob struct {
	name string
}

func (j noopJob) Name() string              { return j.name }
func (j noopJob) Description() string       { return "test job" }
func (j noopJob) Run(context.Context) error { return nil }

type countingJob struct {
	name string
	err  error
	runs int
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "test job" }
func (j *countingJob) Run(context.Context) error {
	j.runs++
	return j.err
}

func TestScheduler_Register(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())

	require.NoError(t, s.Register(noopJob{name: "a"}, NewIntervalSchedule(time.Minute)))

	err := s.Register(noopJob{name: "a"}, NewIntervalSchedule(time.Minute))
	assert.ErrorIs(t, err, ErrJobAlreadyExists)

	assert.ErrorIs(t, s.Register(nil, NewIntervalSchedule(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(noopJob{name: "b"}, nil), ErrNilSchedule)
}

func TestScheduler_RunNow(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())

	job := &countingJob{name: "sweep"}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "sweep")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, 1, job.runs)

	history := s.SweepHistory(10)
	require.Len(t, history, 1)
	assert.Equal(t, "sweep", history[0].JobName)

	snap := s.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalSweeps)
	assert.Equal(t, int64(1), snap.TotalSuccesses)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScheduler_RunNow_FailureCounted(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())

	job := &countingJob{name: "sweep", err: errors.New("boom")}
	require.NoError(t, s.Register(job, NewIntervalSchedule(time.Hour)))

	result, err := s.RunNow(context.Background(), "sweep")
	require.Error(t, err)
	assert.False(t, result.Success)

	snap := s.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalFailures)
	assert.Equal(t, int64(1), s.Metrics().FailuresByJob["sweep"])
}

func TestScheduler_EnableDisable(t *testing.T) {
	s := NewScheduler(DefaultSchedulerConfig())

	require.NoError(t, s.Register(noopJob{name: "a"}, NewIntervalSchedule(time.Minute)))

	require.NoError(t, s.DisableJob("a"))
	info, err := s.GetJobInfo("a")
	require.NoError(t, err)
	assert.False(t, info.Enabled)

	require.NoError(t, s.EnableJob("a"))
	info, err = s.GetJobInfo("a")
	require.NoError(t, err)
	assert.True(t, info.Enabled)

	assert.ErrorIs(t, s.DisableJob("missing"), ErrJobNotFound)
}
