// Package moderation aggregates content reports and hides content that
// crosses the report threshold.
package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/trialbridge/trialbridge/internal/platform/observability"
	"github.com/trialbridge/trialbridge/internal/platform/worker"
	db "github.com/trialbridge/trialbridge/internal/storage"
)

// Repository is the subset of the storage layer the aggregator needs.
type Repository interface {
	CountDistinctReporters(ctx context.Context, targetType, targetID string) (int, error)
	FlagContent(ctx context.Context, targetType, targetID string) (bool, error)
	ListTargetsOverThreshold(ctx context.Context, threshold int) ([]db.ReportTarget, error)
	CountPendingReports(ctx context.Context) (int64, error)
	TryAcquireAdvisoryLock(ctx context.Context, lockID int64) (bool, error)
	ReleaseAdvisoryLock(ctx context.Context, lockID int64) error
}

// Aggregator flips content to flagged once distinct reporters reach the
// threshold. The flip happens at most once per target: the update only
// touches content still in pending or approved state.
type Aggregator struct {
	db        Repository
	threshold int
	logger    *zerolog.Logger
}

func New(database Repository, threshold int, logger *zerolog.Logger) *Aggregator {
	return &Aggregator{db: database, threshold: threshold, logger: logger}
}

// EvaluateTarget checks one reported target against the threshold, flagging
// it when due. Called synchronously after each report submission.
func (a *Aggregator) EvaluateTarget(ctx context.Context, targetType, targetID string) (bool, error) {
	count, err := a.db.CountDistinctReporters(ctx, targetType, targetID)
	if err != nil {
		return false, fmt.Errorf("count reporters: %w", err)
	}

	if count < a.threshold {
		return false, nil
	}

	flipped, err := a.db.FlagContent(ctx, targetType, targetID)
	if err != nil {
		return false, fmt.Errorf("flag content: %w", err)
	}

	if flipped {
		observability.ContentFlaggedTotal.WithLabelValues(targetType).Inc()
		a.logger.Info().
			Str("target_type", targetType).
			Str("target_id", targetID).
			Int("reporters", count).
			Msg("content flagged for moderation")
	}

	return flipped, nil
}

// Sweep re-evaluates every target at or over the threshold. It backstops the
// synchronous path, e.g. after a threshold change or a crash mid-request.
func (a *Aggregator) Sweep(ctx context.Context) error {
	locked, err := a.db.TryAcquireAdvisoryLock(ctx, db.LockReportSweep)
	if err != nil {
		return fmt.Errorf("acquire sweep lock: %w", err)
	}

	if !locked {
		a.logger.Debug().Msg("report sweep already running elsewhere")
		return nil
	}

	defer func() {
		if err := a.db.ReleaseAdvisoryLock(context.WithoutCancel(ctx), db.LockReportSweep); err != nil {
			a.logger.Error().Err(err).Msg("release sweep lock")
		}
	}()

	targets, err := a.db.ListTargetsOverThreshold(ctx, a.threshold)
	if err != nil {
		return fmt.Errorf("list targets over threshold: %w", err)
	}

	flagged := 0

	for _, t := range targets {
		flipped, err := a.EvaluateTarget(ctx, t.TargetType, t.TargetID)
		if err != nil {
			a.logger.Error().Err(err).
				Str("target_type", t.TargetType).
				Str("target_id", t.TargetID).
				Msg("sweep evaluate target")

			continue
		}

		if flipped {
			flagged++
		}
	}

	pending, err := a.db.CountPendingReports(ctx)
	if err == nil {
		observability.ModerationQueuePending.Set(float64(pending))
	}

	if flagged > 0 {
		a.logger.Info().Int("flagged", flagged).Int("candidates", len(targets)).Msg("report sweep done")
	}

	return nil
}

// Run executes the periodic sweep until the context is canceled.
func (a *Aggregator) Run(ctx context.Context, interval time.Duration) error {
	return worker.Loop(ctx, worker.Config{
		Name:         "report_sweep",
		PollInterval: interval,
		Process:      a.Sweep,
		Logger:       a.logger,
	})
}
