package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	jobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batch_job_runs_total",
			Help: "Total number of batch job runs",
		},
		[]string{"job", "status"},
	)

	jobAccountsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "batch_job_accounts_processed_total",
			Help: "Total number of accounts processed by batch jobs",
		},
		[]string{"job"},
	)
)

// Job is a schedulable batch job
type Job interface {
	Name() string
	Run(ctx context.Context) (int, error)
}

// scheduled pairs a job with its run interval
type scheduled struct {
	job      Job
	interval time.Duration
}

// Worker drives the batch jobs on their intervals. A redis lease per job
// keeps overlapping runs (same instance or another replica) from starting.
type Worker struct {
	locks   Locker
	lockTTL time.Duration
	jobs    []scheduled
	logger  *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker creates a job worker
func NewWorker(locks Locker, lockTTL time.Duration, logger *zap.Logger) *Worker {
	return &Worker{locks: locks, lockTTL: lockTTL, logger: logger}
}

// Register adds a job to the schedule
func (w *Worker) Register(job Job, interval time.Duration) {
	w.jobs = append(w.jobs, scheduled{job: job, interval: interval})
}

// Start launches one loop per registered job
func (w *Worker) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	for _, s := range w.jobs {
		w.wg.Add(1)
		go w.runLoop(ctx, s)
	}

	w.logger.Info("Job worker started", zap.Int("jobs", len(w.jobs)))
}

// Stop cancels the loops and waits for in-flight runs to finish
func (w *Worker) Stop() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	w.logger.Info("Job worker stopped")
}

func (w *Worker) runLoop(ctx context.Context, s scheduled) {
	defer w.wg.Done()

	// First run happens right away so a fresh deployment does not wait a
	// full interval. The job lease still prevents a stampede of replicas.
	w.runOnce(ctx, s.job)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.runOnce(ctx, s.job)
		}
	}
}

// RunNow triggers a single job run outside the schedule
func (w *Worker) RunNow(ctx context.Context, job Job) {
	w.runOnce(ctx, job)
}

func (w *Worker) runOnce(ctx context.Context, job Job) {
	lockKey := "jobs:lock:" + job.Name()
	token := uuid.New().String()

	acquired, err := w.locks.AcquireLock(ctx, lockKey, token, w.lockTTL)
	if err != nil {
		w.logger.Error("Failed to acquire job lock", zap.String("job", job.Name()), zap.Error(err))
		jobRunsTotal.WithLabelValues(job.Name(), "lock_error").Inc()
		return
	}
	if !acquired {
		w.logger.Info("Job already running elsewhere, skipping", zap.String("job", job.Name()))
		jobRunsTotal.WithLabelValues(job.Name(), "skipped").Inc()
		return
	}
	defer func() {
		if err := w.locks.ReleaseLock(ctx, lockKey, token); err != nil {
			w.logger.Warn("Failed to release job lock", zap.String("job", job.Name()), zap.Error(err))
		}
	}()

	start := time.Now()
	processed, err := job.Run(ctx)
	if err != nil {
		w.logger.Error("Job run failed",
			zap.String("job", job.Name()),
			zap.Int("processed", processed),
			zap.Error(err),
		)
		jobRunsTotal.WithLabelValues(job.Name(), "error").Inc()
		return
	}

	jobRunsTotal.WithLabelValues(job.Name(), "success").Inc()
	jobAccountsProcessed.WithLabelValues(job.Name()).Add(float64(processed))

	w.logger.Info("Job run completed",
		zap.String("job", job.Name()),
		zap.Int("processed", processed),
		zap.Duration("duration", time.Since(start)),
	)
}
