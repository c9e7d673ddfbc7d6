package usecase

import (
	"context"
	"fmt"
	"time"

	"MeanRev/internal/backtest"
	"MeanRev/internal/domain/models"
	domrepo "MeanRev/internal/domain/repository"
	"MeanRev/internal/services/features"
	pkgcache "MeanRev/pkg/cache"
	applogger "MeanRev/pkg/logger"
	"MeanRev/pkg/queue"
)

// BacktestJobType routes backtest requests through the job queue.
const BacktestJobType = "backtest.run"

const (
	backtestStatusTTL = time.Hour
	backtestLockTTL   = 10 * time.Minute
)

// BacktestStatusKey is the cache key holding a job's status snapshot.
func BacktestStatusKey(jobID string) string {
	return "backtest:" + jobID
}

// BacktestJob runs validation backtests off the request path. The HTTP
// handler enqueues a payload and polls the status snapshot this job
// keeps in the cache.
type BacktestJob struct {
	store  domrepo.BarStore
	cache  pkgcache.Service
	engine *features.Engine
	l      *applogger.Logger
}

func NewBacktestJob(store domrepo.BarStore, cache pkgcache.Service, engine *features.Engine, l *applogger.Logger) *BacktestJob {
	return &BacktestJob{store: store, cache: cache, engine: engine, l: l}
}

func (j *BacktestJob) Name() string { return "backtest-runner" }
func (j *BacktestJob) Type() string { return BacktestJobType }

func (j *BacktestJob) Handle(ctx context.Context, payload interface{}) error {
	req, err := queue.ParsePayload[models.BacktestJobPayload](payload)
	if err != nil {
		return fmt.Errorf("parse backtest payload: %w", err)
	}

	// retried deliveries of the same job must not run twice in parallel
	lockKey := "backtest:lock:" + req.JobID
	if ok, lockErr := j.cache.TryLock(ctx, lockKey, backtestLockTTL); lockErr == nil && !ok {
		j.l.Warn("backtest already running", applogger.String("job_id", req.JobID))
		return nil
	}
	defer func() {
		if unlockErr := j.cache.Unlock(ctx, lockKey); unlockErr != nil {
			j.l.Warn("release backtest lock failed", applogger.Error(unlockErr))
		}
	}()

	j.setStatus(ctx, models.BacktestStatus{JobID: req.JobID, Kind: req.Kind, Status: "running"})

	bars, err := j.loadBars(ctx, req.Pair, req.Bars)
	if err != nil {
		j.fail(ctx, req, err)
		return err
	}

	var result interface{}
	switch req.Kind {
	case "shuffle":
		result, err = j.runShuffle(bars)
	case "spread_shock":
		result, err = backtest.SpreadShock(j.engine, bars, req.ShockPc, j.l)
	default:
		wf := backtest.NewWalkForward(j.engine, j.l)
		result, err = wf.Run(bars, backtest.WalkForwardConfig{}, nil)
	}
	if err != nil {
		j.fail(ctx, req, err)
		return err
	}

	now := time.Now().UTC()
	j.setStatus(ctx, models.BacktestStatus{
		JobID:    req.JobID,
		Kind:     req.Kind,
		Status:   "done",
		Result:   result,
		Finished: &now,
	})
	return nil
}

// loadBars prefers stored history and falls back to a synthetic series
// when the store has too little of it.
func (j *BacktestJob) loadBars(ctx context.Context, pair string, n int) ([]models.Bar, error) {
	bars, err := j.store.LatestN(ctx, pair, n)
	if err != nil {
		j.l.Warn("backtest history read failed, using synthetic bars", applogger.Error(err))
		return backtest.GenerateSynthetic(n, 0), nil
	}
	if len(bars) < n/2 {
		j.l.Info("insufficient stored history, using synthetic bars",
			applogger.String("pair", pair),
			applogger.Int("stored", len(bars)),
		)
		return backtest.GenerateSynthetic(n, 0), nil
	}
	return bars, nil
}

func (j *BacktestJob) runShuffle(bars []models.Bar) (interface{}, error) {
	wf := backtest.NewWalkForward(j.engine, j.l)
	base, err := wf.Run(bars, backtest.WalkForwardConfig{}, nil)
	if err != nil {
		return nil, err
	}
	return backtest.ShuffleTest(base.Returns, 0, j.l)
}

func (j *BacktestJob) fail(ctx context.Context, req *models.BacktestJobPayload, err error) {
	now := time.Now().UTC()
	j.l.Error("backtest failed",
		applogger.String("job_id", req.JobID),
		applogger.String("kind", req.Kind),
		applogger.Error(err),
	)
	j.setStatus(ctx, models.BacktestStatus{
		JobID:    req.JobID,
		Kind:     req.Kind,
		Status:   "failed",
		Error:    err.Error(),
		Finished: &now,
	})
}

func (j *BacktestJob) setStatus(ctx context.Context, st models.BacktestStatus) {
	if err := j.cache.Set(ctx, BacktestStatusKey(st.JobID), st, backtestStatusTTL); err != nil {
		j.l.Warn("store backtest status failed", applogger.Error(err))
	}
}

var _ queue.Job = (*BacktestJob)(nil)
