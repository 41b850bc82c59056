package db

import (
	"context"
	"encoding/json"
	"time"
)

type Survey struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	IsActive    bool             `json:"is_active"`
	OpensAt     *time.Time       `json:"opens_at,omitempty"`
	ClosesAt    *time.Time       `json:"closes_at,omitempty"`
	CreatedAt   time.Time        `json:"created_at"`
	Questions   []SurveyQuestion `json:"questions,omitempty"`
}

type SurveyQuestion struct {
	ID           string          `json:"id"`
	QuestionText string          `json:"question_text"`
	QuestionType string          `json:"question_type"`
	Options      json.RawMessage `json:"options"`
	Position     int             `json:"position"`
	IsRequired   bool            `json:"is_required"`
}

// ListActiveSurveys returns surveys currently open for responses.
func (db *DB) ListActiveSurveys(ctx context.Context) ([]Survey, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, title, description, is_active, opens_at, closes_at, created_at
		FROM surveys
		WHERE is_active
			AND (opens_at IS NULL OR opens_at <= now())
			AND (closes_at IS NULL OR closes_at > now())
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, wrapRowError(err, "list active surveys")
	}
	defer rows.Close()

	out := []Survey{}

	for rows.Next() {
		var s Survey

		if err := rows.Scan(&s.ID, &s.Title, &s.Description, &s.IsActive,
			&s.OpensAt, &s.ClosesAt, &s.CreatedAt); err != nil {
			return nil, wrapRowError(err, "scan survey")
		}

		out = append(out, s)
	}

	return out, rows.Err()
}

// GetSurveyByID loads a survey together with its questions in order.
func (db *DB) GetSurveyByID(ctx context.Context, surveyID string) (*Survey, error) {
	var s Survey

	err := db.Pool.QueryRow(ctx, `
		SELECT id, title, description, is_active, opens_at, closes_at, created_at
		FROM surveys
		WHERE id = $1
	`, toUUID(surveyID)).Scan(&s.ID, &s.Title, &s.Description, &s.IsActive,
		&s.OpensAt, &s.ClosesAt, &s.CreatedAt)
	if err != nil {
		return nil, wrapRowError(err, "get survey by id")
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT id, question_text, question_type, options, position, is_required
		FROM survey_questions
		WHERE survey_id = $1
		ORDER BY position
	`, toUUID(surveyID))
	if err != nil {
		return nil, wrapRowError(err, "get survey questions")
	}
	defer rows.Close()

	for rows.Next() {
		var q SurveyQuestion

		if err := rows.Scan(&q.ID, &q.QuestionText, &q.QuestionType, &q.Options, &q.Position, &q.IsRequired); err != nil {
			return nil, wrapRowError(err, "scan survey question")
		}

		s.Questions = append(s.Questions, q)
	}

	return &s, rows.Err()
}

func (db *DB) CreateSurvey(ctx context.Context, creatorID string, s Survey) (*Survey, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, wrapRowError(err, "create survey: begin")
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	err = tx.QueryRow(ctx, `
		INSERT INTO surveys (title, description, created_by, opens_at, closes_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, is_active, created_at
	`, SanitizeUTF8(s.Title), SanitizeUTF8(s.Description), toUUID(creatorID),
		s.OpensAt, s.ClosesAt).Scan(&s.ID, &s.IsActive, &s.CreatedAt)
	if err != nil {
		return nil, wrapRowError(err, "create survey")
	}

	for i := range s.Questions {
		q := &s.Questions[i]

		if len(q.Options) == 0 {
			q.Options = json.RawMessage(`[]`)
		}

		q.Position = i

		err = tx.QueryRow(ctx, `
			INSERT INTO survey_questions (survey_id, question_text, question_type, options, position, is_required)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, s.ID, SanitizeUTF8(q.QuestionText), q.QuestionType, q.Options, q.Position, q.IsRequired).Scan(&q.ID)
		if err != nil {
			return nil, wrapRowError(err, "create survey question")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapRowError(err, "create survey: commit")
	}

	return &s, nil
}

// SubmitSurveyResponse stores a user's answers. Returns ErrDuplicate when the
// user already responded.
func (db *DB) SubmitSurveyResponse(ctx context.Context, surveyID, userID string, answers json.RawMessage) error {
	if len(answers) == 0 {
		answers = json.RawMessage(`{}`)
	}

	_, err := db.Pool.Exec(ctx, `
		INSERT INTO survey_responses (survey_id, user_id, answers)
		VALUES ($1, $2, $3)
	`, toUUID(surveyID), toUUID(userID), answers)
	if err != nil {
		return wrapRowError(err, "submit survey response")
	}

	return nil
}
