package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	name  string
	runs  atomic.Int32
	err   error
	block chan struct{}
}

func (j *countingJob) Name() string        { return j.name }
func (j *countingJob) Description() string { return "counts runs" }

func (j *countingJob) Run(ctx context.Context) error {
	j.runs.Add(1)
	if j.block != nil {
		select {
		case <-j.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return j.err
}

func TestRegister(t *testing.T) {
	s := New(Config{})
	job := &countingJob{name: "a"}

	require.NoError(t, s.Register(job, Every(time.Minute)))
	assert.ErrorIs(t, s.Register(job, Every(time.Minute)), ErrJobAlreadyExists)
	assert.ErrorIs(t, s.Register(nil, Every(time.Minute)), ErrNilJob)
	assert.ErrorIs(t, s.Register(&countingJob{name: "b"}, nil), ErrNilSchedule)

	jobs := s.ListJobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "every 1m0s", jobs[0].Schedule)
	assert.True(t, jobs[0].Enabled)
}

func TestEvery_FloorsToOneSecond(t *testing.T) {
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, at.Add(time.Second), Every(time.Millisecond).Next(at))
	assert.Equal(t, at.Add(time.Hour), Every(time.Hour).Next(at))
}

func TestRunNow_RecordsResult(t *testing.T) {
	s := New(Config{})
	boom := errors.New("boom")
	job := &countingJob{name: "fails", err: boom}
	require.NoError(t, s.Register(job, Every(time.Hour)))

	var hooked string
	s.OnJobError(func(name string, _ error) { hooked = name })

	res, err := s.RunNow(context.Background(), "fails")
	assert.ErrorIs(t, err, boom)
	assert.False(t, res.Success)
	assert.True(t, res.Manual)
	assert.Equal(t, "fails", hooked)

	info := s.ListJobs()[0]
	assert.EqualValues(t, 1, info.RunCount)
	assert.EqualValues(t, 1, info.FailCount)
	require.NotNil(t, info.LastResult)

	_, err = s.RunNow(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestScheduler_RunsDueJobsWithoutOverlap(t *testing.T) {
	s := New(Config{Tick: 5 * time.Millisecond})
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var clock atomic.Int64
	clock.Store(now.UnixNano())
	s.now = func() time.Time { return time.Unix(0, clock.Load()) }

	job := &countingJob{name: "slow", block: make(chan struct{})}
	require.NoError(t, s.Register(job, Every(time.Second)))

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrSchedulerAlreadyRunning)

	clock.Add(int64(2 * time.Second))
	require.Eventually(t, func() bool { return job.runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	// still blocked: later ticks must not start a second run
	clock.Add(int64(5 * time.Second))
	time.Sleep(30 * time.Millisecond)
	assert.EqualValues(t, 1, job.runs.Load())

	close(job.block)
	clock.Add(int64(5 * time.Second))
	require.Eventually(t, func() bool { return job.runs.Load() >= 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, s.Stop())
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Stop(), ErrSchedulerNotRunning)
}

func TestSetEnabled(t *testing.T) {
	s := New(Config{})
	require.NoError(t, s.Register(&countingJob{name: "a"}, Every(time.Minute)))

	require.NoError(t, s.SetEnabled("a", false))
	assert.False(t, s.ListJobs()[0].Enabled)
	assert.ErrorIs(t, s.SetEnabled("b", true), ErrJobNotFound)
}
