package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/trialbridge/trialbridge/internal/notify"
	"github.com/trialbridge/trialbridge/internal/platform/config"
	"github.com/trialbridge/trialbridge/internal/platform/observability"
	"github.com/trialbridge/trialbridge/internal/platform/worker"
	db "github.com/trialbridge/trialbridge/internal/storage"
)

// Digester batches matched trials into one daily or weekly notification per
// alert instead of a message per trial.
type Digester struct {
	db     Storage
	cfg    *config.Config
	mail   notify.Sender
	logger *zerolog.Logger

	lastDaily  time.Time
	lastWeekly time.Time
}

func NewDigester(database Storage, cfg *config.Config, mail notify.Sender, logger *zerolog.Logger) *Digester {
	return &Digester{db: database, cfg: cfg, mail: mail, logger: logger}
}

// Run checks the schedule every poll interval and fires digests when due.
func (d *Digester) Run(ctx context.Context) error {
	return worker.Loop(ctx, worker.Config{
		Name:         "alert_digest",
		PollInterval: d.cfg.DigestCheckEvery,
		Process:      d.tick,
		Logger:       d.logger,
	})
}

func (d *Digester) tick(ctx context.Context) error {
	now := time.Now()

	if worker.ShouldRunDaily(now, d.cfg.DigestDailyHour, d.lastDaily, worker.DailyGracePeriod) {
		if err := d.runDigest(ctx, db.FrequencyDaily, 24*time.Hour); err != nil {
			return err
		}

		d.lastDaily = now
	}

	weekday := time.Weekday(d.cfg.DigestWeeklyDay)
	if worker.ShouldRunWeekly(now, weekday, d.cfg.DigestDailyHour, d.lastWeekly, worker.WeeklyGracePeriod) {
		if err := d.runDigest(ctx, db.FrequencyWeekly, 7*24*time.Hour); err != nil {
			return err
		}

		d.lastWeekly = now
	}

	return nil
}

func (d *Digester) runDigest(ctx context.Context, frequency string, window time.Duration) error {
	locked, err := d.db.TryAcquireAdvisoryLock(ctx, db.LockAlertDigest)
	if err != nil {
		return fmt.Errorf("acquire digest lock: %w", err)
	}

	if !locked {
		d.logger.Debug().Str("frequency", frequency).Msg("digest already running elsewhere")
		return nil
	}

	defer func() {
		if err := d.db.ReleaseAdvisoryLock(context.WithoutCancel(ctx), db.LockAlertDigest); err != nil {
			d.logger.Error().Err(err).Msg("release digest lock")
		}
	}()

	alerts, err := d.db.ListActiveAlertsByFrequency(ctx, frequency)
	if err != nil {
		return fmt.Errorf("list %s alerts: %w", frequency, err)
	}

	sent := 0

	for _, alert := range alerts {
		since := time.Now().Add(-window)
		if alert.LastNotified != nil && alert.LastNotified.After(since) {
			since = *alert.LastNotified
		}

		matched, err := d.collectMatches(ctx, alert, since)
		if err != nil {
			d.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("collect digest matches")
			continue
		}

		if len(matched) == 0 {
			continue
		}

		if err := d.deliver(ctx, alert, frequency, matched); err != nil {
			d.logger.Error().Err(err).Str("alert_id", alert.ID).Msg("deliver digest")
			continue
		}

		sent++
	}

	if sent > 0 {
		observability.DigestsSent.WithLabelValues(frequency).Add(float64(sent))
		d.logger.Info().Str("frequency", frequency).Int("digests", sent).Msg("digest run complete")
	}

	return nil
}

func (d *Digester) collectMatches(ctx context.Context, alert db.Alert, since time.Time) ([]db.TrialSummary, error) {
	trials, err := d.db.ListTrialsUpdatedSince(ctx, since, d.cfg.AlertBatchSize)
	if err != nil {
		return nil, fmt.Errorf("list trials since %s: %w", since, err)
	}

	var matched []db.TrialSummary

	for _, trial := range trials {
		countries, err := d.db.TrialCountries(ctx, trial.ID)
		if err != nil {
			return nil, fmt.Errorf("load trial countries: %w", err)
		}

		if Matches(alert, trial, countries) {
			matched = append(matched, trial)
		}
	}

	return matched, nil
}

func (d *Digester) deliver(ctx context.Context, alert db.Alert, frequency string, matched []db.TrialSummary) error {
	ids := make([]string, len(matched))
	body := ""

	for i, t := range matched {
		ids[i] = t.ID
		body += fmt.Sprintf("- %s (%s)\n", t.Title, t.NCTID)
	}

	payload, _ := json.Marshal(map[string]any{
		"alert_id":  alert.ID,
		"trial_ids": ids,
		"frequency": frequency,
	})

	title := fmt.Sprintf("%d new trials match your alert", len(matched))
	if alert.Name != "" {
		title = fmt.Sprintf("%d new trials match %q", len(matched), alert.Name)
	}

	if _, err := d.db.InsertNotification(ctx, alert.UserID, db.NotificationTrialDigest, title, body, payload); err != nil {
		return fmt.Errorf("insert digest notification: %w", err)
	}

	observability.NotificationsSent.WithLabelValues(db.NotificationTrialDigest, "sent").Inc()

	if err := d.db.TouchAlertNotified(ctx, alert.ID, time.Now()); err != nil {
		d.logger.Warn().Err(err).Str("alert_id", alert.ID).Msg("touch alert notified")
	}

	user, err := d.db.GetUserByID(ctx, alert.UserID)
	if err != nil {
		return fmt.Errorf("load alert owner: %w", err)
	}

	msg := notify.Message{
		To:      user.Email,
		Subject: title,
		Body:    body + fmt.Sprintf("\nBrowse trials: %s/trials", d.cfg.FrontendURL),
	}

	if err := d.mail.Send(ctx, msg); err != nil {
		d.logger.Warn().Err(err).Str("user_id", user.ID).Msg("send digest email")
	}

	return nil
}
