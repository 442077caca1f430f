package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/i474232898/wine-region-evaluator/internal/climate"
)

// Ingester runs one ingestion pass.
type Ingester interface {
	Ingest(ctx context.Context) (climate.IngestResult, error)
}

// Scheduler periodically ingests climate data for all configured regions.
type Scheduler struct {
	scheduler *gocron.Scheduler
	ingester  Ingester
	interval  time.Duration
	timeout   time.Duration
}

// New creates a new Scheduler. timeout bounds a single run; zero means no bound.
func New(interval, timeout time.Duration, ingester Ingester) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		ingester:  ingester,
		interval:  interval,
		timeout:   timeout,
	}
}

// Start schedules the ingestion job, runs it once right away and starts the
// underlying scheduler. Overlapping runs are skipped.
func (s *Scheduler) Start() error {
	interval := s.interval
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	_, err := s.scheduler.Every(interval).Do(s.run)
	if err != nil {
		return err
	}

	zap.L().Info("scheduler started", zap.Duration("interval", interval))
	s.scheduler.StartAsync()
	return nil
}

func (s *Scheduler) run() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	zap.L().Info("scheduler: running ingestion job")
	res, err := s.ingester.Ingest(ctx)
	switch {
	case errors.Is(err, climate.ErrIngestInProgress):
		zap.L().Info("scheduler: ingestion already running, skipping")
	case err != nil:
		zap.L().Error("scheduler: ingestion failed", zap.String("run_id", res.RunID), zap.Error(err))
	default:
		zap.L().Info("scheduler: completed ingestion job",
			zap.String("run_id", res.RunID),
			zap.Int64("inserted", res.Inserted),
			zap.Bool("skipped", res.Skipped),
		)
	}
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
