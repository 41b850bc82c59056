// Package alerts matches newly ingested or updated trials against stored
// trial alerts and fans out notifications, either instantly or batched into
// daily and weekly digests.
package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/trialbridge/trialbridge/internal/notify"
	"github.com/trialbridge/trialbridge/internal/platform/config"
	"github.com/trialbridge/trialbridge/internal/platform/observability"
	"github.com/trialbridge/trialbridge/internal/platform/worker"
	db "github.com/trialbridge/trialbridge/internal/storage"
)

// Storage is the subset of the repository the alert workers need.
type Storage interface {
	ListTrialsUpdatedSince(ctx context.Context, since time.Time, limit int) ([]db.TrialSummary, error)
	ListActiveAlertsByFrequency(ctx context.Context, frequency string) ([]db.Alert, error)
	TrialCountries(ctx context.Context, trialID string) ([]string, error)
	InsertNotification(ctx context.Context, userID, notificationType, title, body string, payload json.RawMessage) (*db.Notification, error)
	TouchAlertNotified(ctx context.Context, alertID string, at time.Time) error
	GetUserByID(ctx context.Context, id string) (*db.User, error)
	TryAcquireAdvisoryLock(ctx context.Context, lockID int64) (bool, error)
	ReleaseAdvisoryLock(ctx context.Context, lockID int64) error
}

// Matches reports whether a trial satisfies every criterion the alert sets.
// Empty criteria match anything; string comparisons are case-insensitive.
// An alert pinned to a trial id matches exactly that trial and nothing else.
func Matches(a db.Alert, t db.TrialSummary, trialCountries []string) bool {
	if a.TrialID != "" {
		return a.TrialID == t.ID
	}

	if a.DiseaseArea != "" && !strings.EqualFold(a.DiseaseArea, t.DiseaseArea) {
		return false
	}

	if a.Phase != "" && !strings.EqualFold(a.Phase, t.Phase) {
		return false
	}

	if a.Keyword != "" {
		kw := strings.ToLower(a.Keyword)
		haystack := strings.ToLower(t.Title + " " + t.BriefDescription)

		if !strings.Contains(haystack, kw) {
			return false
		}
	}

	if a.Location != "" {
		found := false

		for _, country := range trialCountries {
			if strings.EqualFold(a.Location, country) {
				found = true
				break
			}
		}

		if !found {
			return false
		}
	}

	return true
}

// Matcher drives the instant alert cycle: every poll interval it scans trials
// updated since the last cycle and notifies matching instant alerts.
type Matcher struct {
	db     Storage
	cfg    *config.Config
	mail   notify.Sender
	logger *zerolog.Logger

	// watermark is the updated_at of the newest trial whose matching alerts
	// were all notified.
	watermark time.Time
}

func NewMatcher(database Storage, cfg *config.Config, mail notify.Sender, logger *zerolog.Logger) *Matcher {
	return &Matcher{
		db:        database,
		cfg:       cfg,
		mail:      mail,
		logger:    logger,
		watermark: time.Now(),
	}
}

// Run executes matching cycles until the context is canceled.
func (m *Matcher) Run(ctx context.Context) error {
	return worker.Loop(ctx, worker.Config{
		Name:         "alert_matcher",
		PollInterval: m.cfg.AlertPollInterval,
		Process:      m.cycle,
		Logger:       m.logger,
	})
}

func (m *Matcher) cycle(ctx context.Context) error {
	locked, err := m.db.TryAcquireAdvisoryLock(ctx, db.LockAlertMatcher)
	if err != nil {
		return fmt.Errorf("acquire matcher lock: %w", err)
	}

	if !locked {
		m.logger.Debug().Msg("alert matcher already running elsewhere")
		return nil
	}

	defer func() {
		if err := m.db.ReleaseAdvisoryLock(context.WithoutCancel(ctx), db.LockAlertMatcher); err != nil {
			m.logger.Error().Err(err).Msg("release matcher lock")
		}
	}()

	started := time.Now()
	defer func() {
		observability.AlertCycleDuration.Observe(time.Since(started).Seconds())
	}()

	trials, err := m.db.ListTrialsUpdatedSince(ctx, m.watermark, m.cfg.AlertBatchSize)
	if err != nil {
		return fmt.Errorf("list updated trials: %w", err)
	}

	observability.AlertBacklog.Set(float64(len(trials)))

	if len(trials) == 0 {
		return nil
	}

	alerts, err := m.db.ListActiveAlertsByFrequency(ctx, db.FrequencyInstant)
	if err != nil {
		return fmt.Errorf("list instant alerts: %w", err)
	}

	notified := 0

	for _, trial := range trials {
		if !m.fanOut(ctx, alerts, trial, &notified) {
			// Hold the watermark so the next cycle retries this trial.
			// Alerts notified before the failure may see the trial again,
			// delivery is at least once.
			break
		}

		if trial.UpdatedAt.After(m.watermark) {
			m.watermark = trial.UpdatedAt
		}
	}

	if notified > 0 {
		m.logger.Info().
			Int("trials", len(trials)).
			Int("notifications", notified).
			Msg("alert cycle complete")
	}

	return nil
}

// fanOut notifies every instant alert matching the trial. It reports false
// when any delivery failed and the trial must be retried.
func (m *Matcher) fanOut(ctx context.Context, alerts []db.Alert, trial db.TrialSummary, notified *int) bool {
	countries, err := m.db.TrialCountries(ctx, trial.ID)
	if err != nil {
		m.logger.Error().Err(err).Str("trial_id", trial.ID).Msg("load trial countries")
		return false
	}

	for _, alert := range alerts {
		if !Matches(alert, trial, countries) {
			continue
		}

		if err := m.notifyInstant(ctx, alert, trial); err != nil {
			m.logger.Error().Err(err).
				Str("alert_id", alert.ID).
				Str("trial_id", trial.ID).
				Msg("deliver instant alert")

			return false
		}

		*notified++
	}

	return true
}

func (m *Matcher) notifyInstant(ctx context.Context, alert db.Alert, trial db.TrialSummary) error {
	payload, _ := json.Marshal(map[string]string{
		"alert_id": alert.ID,
		"trial_id": trial.ID,
		"nct_id":   trial.NCTID,
	})

	title := "New trial matches your alert"
	if alert.Name != "" {
		title = fmt.Sprintf("New trial matches %q", alert.Name)
	}

	_, err := m.db.InsertNotification(ctx, alert.UserID, db.NotificationTrialAlert, title, trial.Title, payload)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	observability.AlertMatchesTotal.WithLabelValues(db.FrequencyInstant).Inc()
	observability.NotificationsSent.WithLabelValues(db.NotificationTrialAlert, "sent").Inc()

	if err := m.db.TouchAlertNotified(ctx, alert.ID, time.Now()); err != nil {
		m.logger.Warn().Err(err).Str("alert_id", alert.ID).Msg("touch alert notified")
	}

	user, err := m.db.GetUserByID(ctx, alert.UserID)
	if err != nil {
		return fmt.Errorf("load alert owner: %w", err)
	}

	msg := notify.Message{
		To:      user.Email,
		Subject: title,
		Body: fmt.Sprintf("%s\n\n%s\n\nView it: %s/trials/%s",
			trial.Title, trial.BriefDescription, m.cfg.FrontendURL, trial.ID),
	}

	if err := m.mail.Send(ctx, msg); err != nil {
		m.logger.Warn().Err(err).Str("user_id", user.ID).Msg("send alert email")
	}

	return nil
}
