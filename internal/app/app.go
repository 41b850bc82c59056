// Package app provides the main application bootstrap and runtime orchestration.
//
// The App type wires together all dependencies and exposes methods to run
// different operational modes:
//
//   - API mode: REST API serving the web and mobile clients
//   - Worker mode: alert matching, digest delivery, report sweeps, and
//     expired token cleanup
//   - All mode: API and workers in one process, for small deployments
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/trialbridge/trialbridge/internal/alerts"
	"github.com/trialbridge/trialbridge/internal/api"
	"github.com/trialbridge/trialbridge/internal/moderation"
	"github.com/trialbridge/trialbridge/internal/notify"
	"github.com/trialbridge/trialbridge/internal/platform/config"
	"github.com/trialbridge/trialbridge/internal/platform/observability"
	"github.com/trialbridge/trialbridge/internal/platform/worker"
	db "github.com/trialbridge/trialbridge/internal/storage"
)

// App holds the application dependencies and provides methods to run modes.
type App struct {
	cfg      *config.Config
	database *db.DB
	logger   *zerolog.Logger
	mail     notify.Sender
}

func New(cfg *config.Config, database *db.DB, logger *zerolog.Logger) *App {
	var mail notify.Sender = &notify.LogSender{Logger: logger}

	if cfg.SMTPHost != "" {
		mail = &notify.SMTPSender{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUser,
			Password: cfg.SMTPPass,
			From:     cfg.EmailFrom,
		}
	}

	return &App{
		cfg:      cfg,
		database: database,
		logger:   logger,
		mail:     mail,
	}
}

// StartHealthServer runs the health/metrics endpoint until ctx is canceled.
func (a *App) StartHealthServer(ctx context.Context) error {
	return observability.NewServer(a.database, a.cfg.HealthPort, a.logger).Start(ctx)
}

// RunAPI serves the REST API.
func (a *App) RunAPI(ctx context.Context) error {
	aggregator := moderation.New(a.database, a.cfg.ReportFlagThreshold, a.logger)
	server := api.NewServer(a.database, a.cfg, a.mail, aggregator, a.logger)

	return server.Start(ctx)
}

// RunWorker runs the background jobs: alert matcher, digester, report sweep,
// and reset token cleanup. It blocks until ctx is canceled or a job fails.
func (a *App) RunWorker(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 4)

	run := func(name string, fn func(context.Context) error) {
		go func() {
			defer worker.RecoverPanic(a.logger, name)

			if err := fn(ctx); err != nil {
				errCh <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	run("alert matcher", alerts.NewMatcher(a.database, a.cfg, a.mail, a.logger).Run)
	run("alert digester", alerts.NewDigester(a.database, a.cfg, a.mail, a.logger).Run)

	aggregator := moderation.New(a.database, a.cfg.ReportFlagThreshold, a.logger)
	run("report sweep", func(ctx context.Context) error {
		return aggregator.Run(ctx, a.cfg.ReportSweepEvery)
	})

	run("token cleanup", a.runTokenCleanup)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// RunAll runs the API and the workers in a single process.
func (a *App) RunAll(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)

	go func() {
		errCh <- a.RunWorker(ctx)
	}()

	go func() {
		errCh <- a.RunAPI(ctx)
	}()

	return <-errCh
}

// runTokenCleanup purges expired password reset tokens on an interval.
func (a *App) runTokenCleanup(ctx context.Context) error {
	return worker.Loop(ctx, worker.Config{
		Name:         "token_cleanup",
		PollInterval: a.cfg.TokenCleanupEvery,
		Logger:       a.logger,
		Process: func(ctx context.Context) error {
			locked, err := a.database.TryAcquireAdvisoryLock(ctx, db.LockTokenCleanup)
			if err != nil {
				return fmt.Errorf("acquire cleanup lock: %w", err)
			}

			if !locked {
				return nil
			}

			defer func() {
				if err := a.database.ReleaseAdvisoryLock(context.WithoutCancel(ctx), db.LockTokenCleanup); err != nil {
					a.logger.Error().Err(err).Msg("release cleanup lock")
				}
			}()

			removed, err := a.database.DeleteExpiredResetTokens(ctx)
			if err != nil {
				return fmt.Errorf("delete expired reset tokens: %w", err)
			}

			if removed > 0 {
				observability.ResetTokensCleaned.Add(float64(removed))
				a.logger.Info().Int64("removed", removed).Msg("expired reset tokens cleaned")
			}

			return nil
		},
	})
}
