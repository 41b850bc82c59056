package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Alert is a stored trial alert subscription. Criteria fields are optional;
// an empty field matches everything. A non-empty TrialID pins the alert to
// that single trial.
type Alert struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	TrialID        string     `json:"trial_id,omitempty"`
	Name           string     `json:"name"`
	DiseaseArea    string     `json:"disease_area,omitempty"`
	Phase          string     `json:"phase,omitempty"`
	Location       string     `json:"location,omitempty"`
	Keyword        string     `json:"keyword,omitempty"`
	AlertFrequency string     `json:"alert_frequency"`
	IsActive       bool       `json:"is_active"`
	LastNotified   *time.Time `json:"last_notified,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

const alertColumns = `id, user_id, trial_id, name, disease_area, phase, location, keyword,
	alert_frequency, is_active, last_notified, created_at`

func scanAlert(row interface{ Scan(...any) error }) (*Alert, error) {
	var a Alert

	var trialID pgtype.UUID

	err := row.Scan(&a.ID, &a.UserID, &trialID, &a.Name, &a.DiseaseArea, &a.Phase, &a.Location,
		&a.Keyword, &a.AlertFrequency, &a.IsActive, &a.LastNotified, &a.CreatedAt)
	if err != nil {
		return nil, err
	}

	a.TrialID = fromUUID(trialID)

	return &a, nil
}

func (db *DB) CreateAlert(ctx context.Context, userID string, a Alert) (*Alert, error) {
	row := db.Pool.QueryRow(ctx, `
		INSERT INTO trial_alerts (user_id, trial_id, name, disease_area, phase, location, keyword, alert_frequency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+alertColumns,
		toUUID(userID), toUUID(a.TrialID), SanitizeUTF8(a.Name), a.DiseaseArea, a.Phase, a.Location,
		SanitizeUTF8(a.Keyword), a.AlertFrequency)

	created, err := scanAlert(row)
	if err != nil {
		return nil, wrapRowError(err, "create alert")
	}

	return created, nil
}

func (db *DB) ListAlertsByUser(ctx context.Context, userID string) ([]Alert, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+alertColumns+`
		FROM trial_alerts
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, toUUID(userID))
	if err != nil {
		return nil, wrapRowError(err, "list alerts by user")
	}
	defer rows.Close()

	out := []Alert{}

	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, wrapRowError(err, "scan alert")
		}

		out = append(out, *a)
	}

	return out, rows.Err()
}

// DeleteAlert removes an alert owned by the user.
func (db *DB) DeleteAlert(ctx context.Context, alertID, userID string) error {
	tag, err := db.Pool.Exec(ctx, `
		DELETE FROM trial_alerts WHERE id = $1 AND user_id = $2
	`, toUUID(alertID), toUUID(userID))
	if err != nil {
		return wrapRowError(err, "delete alert")
	}

	if tag.RowsAffected() == 0 {
		return wrapRowError(ErrNotFound, "delete alert")
	}

	return nil
}

func (db *DB) SetAlertActive(ctx context.Context, alertID, userID string, active bool) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE trial_alerts SET is_active = $3, updated_at = now()
		WHERE id = $1 AND user_id = $2
	`, toUUID(alertID), toUUID(userID), active)
	if err != nil {
		return wrapRowError(err, "set alert active")
	}

	if tag.RowsAffected() == 0 {
		return wrapRowError(ErrNotFound, "set alert active")
	}

	return nil
}

// ListActiveAlertsByFrequency returns every active alert with the given
// delivery frequency for matcher and digest runs.
func (db *DB) ListActiveAlertsByFrequency(ctx context.Context, frequency string) ([]Alert, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+alertColumns+`
		FROM trial_alerts
		WHERE is_active AND alert_frequency = $1
		ORDER BY created_at
	`, frequency)
	if err != nil {
		return nil, wrapRowError(err, "list active alerts")
	}
	defer rows.Close()

	out := []Alert{}

	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, wrapRowError(err, "scan active alert")
		}

		out = append(out, *a)
	}

	return out, rows.Err()
}

func (db *DB) TouchAlertNotified(ctx context.Context, alertID string, at time.Time) error {
	if _, err := db.Pool.Exec(ctx, `
		UPDATE trial_alerts SET last_notified = $2 WHERE id = $1
	`, toUUID(alertID), at); err != nil {
		return wrapRowError(err, "touch alert notified")
	}

	return nil
}

// TrialCountries returns the set of countries a trial has sites in, used by
// the matcher to evaluate location criteria.
func (db *DB) TrialCountries(ctx context.Context, trialID string) ([]string, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT DISTINCT country FROM trial_sites WHERE trial_id = $1
	`, toUUID(trialID))
	if err != nil {
		return nil, wrapRowError(err, "trial countries")
	}
	defer rows.Close()

	var out []string

	for rows.Next() {
		var c string

		if err := rows.Scan(&c); err != nil {
			return nil, wrapRowError(err, "scan trial country")
		}

		out = append(out, c)
	}

	return out, rows.Err()
}
