package db

import (
	"context"
	"time"
)

type SavedTrial struct {
	Trial   TrialSummary `json:"trial"`
	Notes   string       `json:"notes,omitempty"`
	SavedAt time.Time    `json:"saved_at"`
}

// SaveTrial bookmarks a trial for the user. Saving an already saved trial is
// a no-op so the operation stays idempotent.
func (db *DB) SaveTrial(ctx context.Context, userID, trialID, notes string) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO trial_saves (user_id, trial_id, notes)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, trial_id) DO UPDATE SET notes = EXCLUDED.notes
	`, toUUID(userID), toUUID(trialID), SanitizeUTF8(notes))
	if err != nil {
		return wrapRowError(err, "save trial")
	}

	return nil
}

func (db *DB) UnsaveTrial(ctx context.Context, userID, trialID string) error {
	tag, err := db.Pool.Exec(ctx, `
		DELETE FROM trial_saves WHERE user_id = $1 AND trial_id = $2
	`, toUUID(userID), toUUID(trialID))
	if err != nil {
		return wrapRowError(err, "unsave trial")
	}

	if tag.RowsAffected() == 0 {
		return wrapRowError(ErrNotFound, "unsave trial")
	}

	return nil
}

func (db *DB) ListSavedTrials(ctx context.Context, userID string) ([]SavedTrial, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT t.id, t.nct_id, t.title, t.brief_description, t.disease_area,
			t.phase, t.status, t.sponsor_name, t.updated_at, sv.notes, sv.saved_at
		FROM trial_saves sv
		JOIN clinical_trials t ON t.id = sv.trial_id
		WHERE sv.user_id = $1
		ORDER BY sv.saved_at DESC
	`, toUUID(userID))
	if err != nil {
		return nil, wrapRowError(err, "list saved trials")
	}
	defer rows.Close()

	out := []SavedTrial{}

	for rows.Next() {
		var s SavedTrial

		if err := rows.Scan(&s.Trial.ID, &s.Trial.NCTID, &s.Trial.Title, &s.Trial.BriefDescription,
			&s.Trial.DiseaseArea, &s.Trial.Phase, &s.Trial.Status, &s.Trial.SponsorName,
			&s.Trial.UpdatedAt, &s.Notes, &s.SavedAt); err != nil {
			return nil, wrapRowError(err, "scan saved trial")
		}

		s.Trial.IsSaved = true
		out = append(out, s)
	}

	return out, rows.Err()
}

// RegisterTrialInterest records an expression of interest from a user toward
// a trial's study team.
func (db *DB) RegisterTrialInterest(ctx context.Context, userID, trialID, message string) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO trial_interests (user_id, trial_id, message)
		VALUES ($1, $2, $3)
	`, toUUID(userID), toUUID(trialID), SanitizeUTF8(message))
	if err != nil {
		return wrapRowError(err, "register trial interest")
	}

	return nil
}
