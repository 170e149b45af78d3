// Package jobs schedules and runs the background collection work through the
// River job queue.
package jobs

import (
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivertype"
)

const (
	JobKindCollectLatest = "collect_latest"
)

// RetryConfig controls per-kind retry behavior.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryPolicy implements River's ClientRetryPolicy with per-kind exponential
// backoff.
type RetryPolicy struct {
	Default RetryConfig
	ByKind  map[string]RetryConfig
}

// NewRetryPolicy builds the retry policy. Collection retries are spaced out
// because the provider enforces a per-minute quota.
func NewRetryPolicy(collectMaxAttempts int) *RetryPolicy {
	if collectMaxAttempts <= 0 {
		collectMaxAttempts = 3
	}
	return &RetryPolicy{
		Default: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   30 * time.Second,
			MaxDelay:    30 * time.Minute,
		},
		ByKind: map[string]RetryConfig{
			JobKindCollectLatest: {
				MaxAttempts: collectMaxAttempts,
				BaseDelay:   5 * time.Minute,
				MaxDelay:    1 * time.Hour,
			},
		},
	}
}

// NextRetry determines the next retry time for a failed job.
func (p *RetryPolicy) NextRetry(job *rivertype.JobRow) time.Time {
	config := p.configFor(job.Kind)
	if config.BaseDelay == 0 {
		return time.Now()
	}

	attempt := job.Attempt
	if attempt < 1 {
		attempt = 1
	}

	delay := time.Duration(float64(config.BaseDelay) * math.Pow(2, float64(attempt-1)))
	if config.MaxDelay > 0 && delay > config.MaxDelay {
		delay = config.MaxDelay
	}

	if job.AttemptedAt != nil {
		return job.AttemptedAt.Add(delay)
	}
	return time.Now().Add(delay)
}

func (p *RetryPolicy) configFor(kind string) RetryConfig {
	if p == nil {
		return RetryConfig{MaxAttempts: 3, BaseDelay: 30 * time.Second, MaxDelay: 30 * time.Minute}
	}
	if config, ok := p.ByKind[kind]; ok {
		return config
	}
	return p.Default
}

// NewClient creates a River client using pgx v5.
func NewClient(pool *pgxpool.Pool, workers *river.Workers, logger *slog.Logger, collectMaxAttempts int, periodicJobs []*river.PeriodicJob) (*river.Client[pgx.Tx], error) {
	policy := NewRetryPolicy(collectMaxAttempts)
	config := &river.Config{
		Workers:      workers,
		RetryPolicy:  policy,
		MaxAttempts:  policy.Default.MaxAttempts,
		PeriodicJobs: periodicJobs,
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 2},
		},
	}
	if logger != nil {
		config.Logger = logger
	}
	return river.NewClient(riverpgxv5.New(pool), config)
}

// NewPeriodicJobs builds the schedule: one collection run per weekday at the
// configured time, after market data providers publish closings.
func NewPeriodicJobs(collectSchedule string) ([]*river.PeriodicJob, error) {
	schedule, err := parseWeekdaySchedule(collectSchedule)
	if err != nil {
		return nil, err
	}
	return []*river.PeriodicJob{
		river.NewPeriodicJob(
			schedule,
			func() (river.JobArgs, *river.InsertOpts) {
				return CollectLatestArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: false},
		),
	}, nil
}

// weekdaySchedule fires at a fixed UTC time Monday through Friday. Holiday
// skipping is handled by the worker itself, which has calendar access.
type weekdaySchedule struct {
	hour   int
	minute int
}

func (s weekdaySchedule) Next(current time.Time) time.Time {
	next := time.Date(current.Year(), current.Month(), current.Day(), s.hour, s.minute, 0, 0, time.UTC)
	for !next.After(current) || next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
		next = time.Date(next.Year(), next.Month(), next.Day(), s.hour, s.minute, 0, 0, time.UTC)
	}
	return next
}

// parseWeekdaySchedule reads the minute and hour fields of a cron-style
// expression such as "0 21 * * 1-5". Only weekday schedules are supported;
// the remaining fields are ignored.
func parseWeekdaySchedule(expr string) (weekdaySchedule, error) {
	fields := strings.Fields(expr)
	if len(fields) < 2 {
		return weekdaySchedule{}, fmt.Errorf("invalid collection schedule %q", expr)
	}
	minute, err := strconv.Atoi(fields[0])
	if err != nil || minute < 0 || minute > 59 {
		return weekdaySchedule{}, fmt.Errorf("invalid minute in collection schedule %q", expr)
	}
	hour, err := strconv.Atoi(fields[1])
	if err != nil || hour < 0 || hour > 23 {
		return weekdaySchedule{}, fmt.Errorf("invalid hour in collection schedule %q", expr)
	}
	return weekdaySchedule{hour: hour, minute: minute}, nil
}
