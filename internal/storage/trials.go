package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type Trial struct {
	ID                  string          `json:"id"`
	NCTID               string          `json:"nct_id"`
	Title               string          `json:"title"`
	BriefDescription    string          `json:"brief_description"`
	DetailedDescription string          `json:"detailed_description,omitempty"`
	DiseaseArea         string          `json:"disease_area"`
	Phase               string          `json:"phase"`
	Status              string          `json:"status"`
	SponsorName         string          `json:"sponsor_name"`
	EnrollmentTarget    int             `json:"enrollment_target"`
	EnrollmentCurrent   int             `json:"enrollment_current"`
	Eligibility         json.RawMessage `json:"eligibility"`
	Metadata            json.RawMessage `json:"metadata,omitempty"`
	StartDate           *time.Time      `json:"start_date,omitempty"`
	CompletionDate      *time.Time      `json:"completion_date,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
	Sites               []TrialSite     `json:"sites,omitempty"`
	IsSaved             bool            `json:"is_saved"`
}

type TrialSite struct {
	ID           string `json:"id"`
	SiteName     string `json:"site_name"`
	Country      string `json:"country"`
	City         string `json:"city"`
	Address      string `json:"address,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`
	IsRecruiting bool   `json:"is_recruiting"`
}

// TrialSummary is the list-view projection used by search results and alerts.
type TrialSummary struct {
	ID               string    `json:"id"`
	NCTID            string    `json:"nct_id"`
	Title            string    `json:"title"`
	BriefDescription string    `json:"brief_description"`
	DiseaseArea      string    `json:"disease_area"`
	Phase            string    `json:"phase"`
	Status           string    `json:"status"`
	SponsorName      string    `json:"sponsor_name"`
	UpdatedAt        time.Time `json:"updated_at"`
	IsSaved          bool      `json:"is_saved"`
}

type TrialSearchParams struct {
	Keyword      string
	DiseaseAreas []string
	Phases       []string
	Statuses     []string
	Country      string
	Page         int
	Limit        int
	// UserID, when set, populates IsSaved on each result.
	UserID string
}

type TrialPage struct {
	Items []TrialSummary `json:"items"`
	Total int64          `json:"total"`
	Page  int            `json:"page"`
	Limit int            `json:"limit"`
	Pages int            `json:"pages"`
}

func pageCount(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}

	return int((total + int64(limit) - 1) / int64(limit))
}

// SearchTrials runs the filtered trial search. Results are newest-updated
// first, except keyword searches which rank by relevance.
func (db *DB) SearchTrials(ctx context.Context, params TrialSearchParams) (*TrialPage, error) {
	if params.Page < 1 {
		params.Page = 1
	}

	if params.Limit < 1 || params.Limit > maxPageSize {
		params.Limit = defaultPageSize
	}

	where := []string{"1=1"}
	args := []any{}

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	orderBy := "t.updated_at DESC"

	if kw := strings.TrimSpace(params.Keyword); kw != "" {
		p := arg(kw)
		where = append(where, fmt.Sprintf(
			"to_tsvector('english', t.title || ' ' || t.brief_description) @@ plainto_tsquery('english', %s)", p))
		orderBy = fmt.Sprintf(
			"ts_rank(to_tsvector('english', t.title || ' ' || t.brief_description), plainto_tsquery('english', %s)) DESC", p)
	}

	if len(params.DiseaseAreas) > 0 {
		where = append(where, fmt.Sprintf("t.disease_area = ANY(%s)", arg(params.DiseaseAreas)))
	}

	if len(params.Phases) > 0 {
		where = append(where, fmt.Sprintf("t.phase = ANY(%s)", arg(params.Phases)))
	}

	if len(params.Statuses) > 0 {
		where = append(where, fmt.Sprintf("t.status = ANY(%s)", arg(params.Statuses)))
	}

	if params.Country != "" {
		where = append(where, fmt.Sprintf(
			"EXISTS (SELECT 1 FROM trial_sites s WHERE s.trial_id = t.id AND s.country ILIKE %s)", arg(params.Country)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int64

	err := db.Pool.QueryRow(ctx, "SELECT count(*) FROM clinical_trials t WHERE "+whereClause, args...).Scan(&total)
	if err != nil {
		return nil, wrapRowError(err, "count trials")
	}

	savedExpr := "FALSE"
	if params.UserID != "" {
		savedExpr = fmt.Sprintf(
			"EXISTS (SELECT 1 FROM trial_saves sv WHERE sv.trial_id = t.id AND sv.user_id = %s)", arg(toUUID(params.UserID)))
	}

	query := fmt.Sprintf(`
		SELECT t.id, t.nct_id, t.title, t.brief_description, t.disease_area,
			t.phase, t.status, t.sponsor_name, t.updated_at, %s AS is_saved
		FROM clinical_trials t
		WHERE %s
		ORDER BY %s
		LIMIT %s OFFSET %s`,
		savedExpr, whereClause, orderBy,
		arg(params.Limit), arg((params.Page-1)*params.Limit))

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapRowError(err, "search trials")
	}
	defer rows.Close()

	items := []TrialSummary{}

	for rows.Next() {
		var t TrialSummary

		if err := rows.Scan(&t.ID, &t.NCTID, &t.Title, &t.BriefDescription, &t.DiseaseArea,
			&t.Phase, &t.Status, &t.SponsorName, &t.UpdatedAt, &t.IsSaved); err != nil {
			return nil, wrapRowError(err, "scan trial summary")
		}

		items = append(items, t)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapRowError(err, "search trials rows")
	}

	return &TrialPage{
		Items: items,
		Total: total,
		Page:  params.Page,
		Limit: params.Limit,
		Pages: pageCount(total, params.Limit),
	}, nil
}

// GetTrialByID loads a trial with its sites. userID may be empty.
func (db *DB) GetTrialByID(ctx context.Context, trialID, userID string) (*Trial, error) {
	var t Trial

	err := db.Pool.QueryRow(ctx, `
		SELECT t.id, t.nct_id, t.title, t.brief_description, t.detailed_description,
			t.disease_area, t.phase, t.status, t.sponsor_name,
			t.enrollment_target, t.enrollment_current, t.eligibility, t.metadata,
			t.start_date, t.completion_date, t.created_at, t.updated_at,
			CASE WHEN $2::uuid IS NULL THEN FALSE
				ELSE EXISTS (SELECT 1 FROM trial_saves sv WHERE sv.trial_id = t.id AND sv.user_id = $2)
			END
		FROM clinical_trials t
		WHERE t.id = $1
	`, toUUID(trialID), toUUID(userID)).Scan(
		&t.ID, &t.NCTID, &t.Title, &t.BriefDescription, &t.DetailedDescription,
		&t.DiseaseArea, &t.Phase, &t.Status, &t.SponsorName,
		&t.EnrollmentTarget, &t.EnrollmentCurrent, &t.Eligibility, &t.Metadata,
		&t.StartDate, &t.CompletionDate, &t.CreatedAt, &t.UpdatedAt, &t.IsSaved,
	)
	if err != nil {
		return nil, wrapRowError(err, "get trial by id")
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT id, site_name, country, city, address, contact_email, contact_phone, is_recruiting
		FROM trial_sites
		WHERE trial_id = $1
		ORDER BY country, city
	`, toUUID(trialID))
	if err != nil {
		return nil, wrapRowError(err, "get trial sites")
	}
	defer rows.Close()

	for rows.Next() {
		var s TrialSite

		if err := rows.Scan(&s.ID, &s.SiteName, &s.Country, &s.City, &s.Address,
			&s.ContactEmail, &s.ContactPhone, &s.IsRecruiting); err != nil {
			return nil, wrapRowError(err, "scan trial site")
		}

		t.Sites = append(t.Sites, s)
	}

	return &t, rows.Err()
}

// TrialInput is the payload for trial ingestion and updates.
type TrialInput struct {
	NCTID               string          `json:"nct_id"`
	Title               string          `json:"title"`
	BriefDescription    string          `json:"brief_description"`
	DetailedDescription string          `json:"detailed_description"`
	DiseaseArea         string          `json:"disease_area"`
	Phase               string          `json:"phase"`
	Status              string          `json:"status"`
	SponsorName         string          `json:"sponsor_name"`
	EnrollmentTarget    int             `json:"enrollment_target"`
	Eligibility         json.RawMessage `json:"eligibility"`
	Metadata            json.RawMessage `json:"metadata"`
	StartDate           *time.Time      `json:"start_date"`
	CompletionDate      *time.Time      `json:"completion_date"`
}

// UpsertTrial inserts a trial or refreshes an existing one by NCT ID.
func (db *DB) UpsertTrial(ctx context.Context, in TrialInput) (*Trial, error) {
	if len(in.Eligibility) == 0 {
		in.Eligibility = json.RawMessage(`{}`)
	}

	if len(in.Metadata) == 0 {
		in.Metadata = json.RawMessage(`{}`)
	}

	var t Trial

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO clinical_trials (nct_id, title, brief_description, detailed_description,
			disease_area, phase, status, sponsor_name, enrollment_target,
			eligibility, metadata, start_date, completion_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (nct_id) DO UPDATE SET
			title = EXCLUDED.title,
			brief_description = EXCLUDED.brief_description,
			detailed_description = EXCLUDED.detailed_description,
			disease_area = EXCLUDED.disease_area,
			phase = EXCLUDED.phase,
			status = EXCLUDED.status,
			sponsor_name = EXCLUDED.sponsor_name,
			enrollment_target = EXCLUDED.enrollment_target,
			eligibility = EXCLUDED.eligibility,
			metadata = EXCLUDED.metadata,
			start_date = EXCLUDED.start_date,
			completion_date = EXCLUDED.completion_date,
			updated_at = now()
		RETURNING id, nct_id, title, brief_description, detailed_description,
			disease_area, phase, status, sponsor_name, enrollment_target, enrollment_current,
			eligibility, metadata, start_date, completion_date, created_at, updated_at
	`, in.NCTID, SanitizeUTF8(in.Title), SanitizeUTF8(in.BriefDescription), SanitizeUTF8(in.DetailedDescription),
		in.DiseaseArea, in.Phase, in.Status, in.SponsorName, in.EnrollmentTarget,
		in.Eligibility, in.Metadata, in.StartDate, in.CompletionDate).Scan(
		&t.ID, &t.NCTID, &t.Title, &t.BriefDescription, &t.DetailedDescription,
		&t.DiseaseArea, &t.Phase, &t.Status, &t.SponsorName, &t.EnrollmentTarget, &t.EnrollmentCurrent,
		&t.Eligibility, &t.Metadata, &t.StartDate, &t.CompletionDate, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, wrapRowError(err, "upsert trial")
	}

	return &t, nil
}

func (db *DB) AddTrialSite(ctx context.Context, trialID string, s TrialSite) (*TrialSite, error) {
	err := db.Pool.QueryRow(ctx, `
		INSERT INTO trial_sites (trial_id, site_name, country, city, address, contact_email, contact_phone, is_recruiting)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`, toUUID(trialID), s.SiteName, s.Country, s.City, s.Address,
		s.ContactEmail, s.ContactPhone, s.IsRecruiting).Scan(&s.ID)
	if err != nil {
		return nil, wrapRowError(err, "add trial site")
	}

	return &s, nil
}

// ListTrialsUpdatedSince returns trials touched after the watermark, oldest
// first, capped at limit. The alert matcher walks these each cycle.
func (db *DB) ListTrialsUpdatedSince(ctx context.Context, since time.Time, limit int) ([]TrialSummary, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT id, nct_id, title, brief_description, disease_area, phase, status, sponsor_name, updated_at
		FROM clinical_trials
		WHERE updated_at > $1
		ORDER BY updated_at
		LIMIT $2
	`, since, limit)
	if err != nil {
		return nil, wrapRowError(err, "list trials updated since")
	}
	defer rows.Close()

	var out []TrialSummary

	for rows.Next() {
		var t TrialSummary

		if err := rows.Scan(&t.ID, &t.NCTID, &t.Title, &t.BriefDescription,
			&t.DiseaseArea, &t.Phase, &t.Status, &t.SponsorName, &t.UpdatedAt); err != nil {
			return nil, wrapRowError(err, "scan updated trial")
		}

		out = append(out, t)
	}

	return out, rows.Err()
}
