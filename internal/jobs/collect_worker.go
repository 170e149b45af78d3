package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/altamira-asset/indexes-server/internal/calendar"
	"github.com/altamira-asset/indexes-server/internal/collector"
	"github.com/altamira-asset/indexes-server/internal/domain/indices"
	"github.com/riverqueue/river"
	"github.com/rs/zerolog"
)

type CollectLatestArgs struct{}

func (CollectLatestArgs) Kind() string { return JobKindCollectLatest }

// CollectLatestWorker runs the daily collection of each index's most recent
// quotation. The periodic schedule only knows weekdays, so the worker checks
// the holiday calendar and no-ops on market holidays.
type CollectLatestWorker struct {
	river.WorkerDefaults[CollectLatestArgs]
	Service   *collector.Service
	IndexRepo indices.Repository
	Logger    zerolog.Logger
	Now       func() time.Time
}

func (CollectLatestWorker) Kind() string { return JobKindCollectLatest }

func (w CollectLatestWorker) Work(ctx context.Context, job *river.Job[CollectLatestArgs]) error {
	if w.Service == nil {
		return fmt.Errorf("collection service not configured")
	}

	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	today := now().UTC()

	holidays, err := w.IndexRepo.Holidays(ctx)
	if err != nil {
		return fmt.Errorf("load holidays: %w", err)
	}
	if !calendar.IsBusinessDay(today, holidays) {
		w.Logger.Info().Str("date", today.Format("2006-01-02")).Msg("market holiday, skipping collection")
		return nil
	}

	result, err := w.Service.CollectLatest(ctx)
	if err != nil {
		return fmt.Errorf("collect latest: %w", err)
	}

	w.Logger.Info().
		Str("run_id", result.RunID).
		Int("inserted", len(result.Inserted)).
		Int("warnings", len(result.Warnings)).
		Int("missing", len(result.Missing)).
		Msg("scheduled collection finished")
	return nil
}

// NewWorkers registers every worker kind with a fresh registry.
func NewWorkers(service *collector.Service, indexRepo indices.Repository, logger zerolog.Logger) (*river.Workers, error) {
	workers := river.NewWorkers()
	if err := river.AddWorkerSafely(workers, CollectLatestWorker{
		Service:   service,
		IndexRepo: indexRepo,
		Logger:    logger,
	}); err != nil {
		return nil, fmt.Errorf("register collect worker: %w", err)
	}
	return workers, nil
}
