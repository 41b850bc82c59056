package db

import (
	"context"
	"fmt"
	"time"
)

type Report struct {
	ID         string    `json:"id"`
	ReporterID string    `json:"reporter_id"`
	TargetType string    `json:"target_type"`
	TargetID   string    `json:"target_id"`
	Reason     string    `json:"reason"`
	Details    string    `json:"details,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// ReportTarget identifies a reported piece of content.
type ReportTarget struct {
	TargetType string
	TargetID   string
}

// CreateReport files a report. Returns ErrDuplicate when the same reporter
// already reported the same target.
func (db *DB) CreateReport(ctx context.Context, reporterID, targetType, targetID, reason, details string) (*Report, error) {
	var r Report

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO content_reports (reporter_id, target_type, target_id, reason, details)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, reporter_id, target_type, target_id, reason, details, status, created_at
	`, toUUID(reporterID), targetType, toUUID(targetID), reason, SanitizeUTF8(details)).Scan(
		&r.ID, &r.ReporterID, &r.TargetType, &r.TargetID, &r.Reason, &r.Details, &r.Status, &r.CreatedAt,
	)
	if err != nil {
		return nil, wrapRowError(err, "create report")
	}

	return &r, nil
}

// CountDistinctReporters counts how many different users reported the target.
func (db *DB) CountDistinctReporters(ctx context.Context, targetType, targetID string) (int, error) {
	var count int

	err := db.Pool.QueryRow(ctx, `
		SELECT count(DISTINCT reporter_id)
		FROM content_reports
		WHERE target_type = $1 AND target_id = $2
	`, targetType, toUUID(targetID)).Scan(&count)
	if err != nil {
		return 0, wrapRowError(err, "count distinct reporters")
	}

	return count, nil
}

// FlagContent flips the target to flagged, but only from pending or approved
// so content already flagged or removed is never touched again. Returns true
// when this call performed the flip.
func (db *DB) FlagContent(ctx context.Context, targetType, targetID string) (bool, error) {
	var table string

	switch targetType {
	case TargetPost:
		table = "forum_posts"
	case TargetComment:
		table = "comments"
	default:
		return false, wrapRowError(ErrNotFound, "flag content: unknown target type")
	}

	tag, err := db.Pool.Exec(ctx, `
		UPDATE `+table+` SET moderation_status = $2, updated_at = now()
		WHERE id = $1 AND moderation_status IN ($3, $4)
	`, toUUID(targetID), ModerationFlagged, ModerationPending, ModerationApproved)
	if err != nil {
		return false, wrapRowError(err, "flag content")
	}

	return tag.RowsAffected() > 0, nil
}

// ListTargetsOverThreshold returns reported targets whose distinct reporter
// count reached the threshold while the content is still visible. The sweep
// job uses it to catch flips missed at report time.
func (db *DB) ListTargetsOverThreshold(ctx context.Context, threshold int) ([]ReportTarget, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT r.target_type, r.target_id
		FROM content_reports r
		GROUP BY r.target_type, r.target_id
		HAVING count(DISTINCT r.reporter_id) >= $1
	`, threshold)
	if err != nil {
		return nil, wrapRowError(err, "list targets over threshold")
	}
	defer rows.Close()

	var out []ReportTarget

	for rows.Next() {
		var t ReportTarget

		if err := rows.Scan(&t.TargetType, &t.TargetID); err != nil {
			return nil, wrapRowError(err, "scan report target")
		}

		out = append(out, t)
	}

	return out, rows.Err()
}

type ReportPage struct {
	Items []Report `json:"items"`
	Total int64    `json:"total"`
	Page  int      `json:"page"`
	Limit int      `json:"limit"`
	Pages int      `json:"pages"`
}

func (db *DB) ListReports(ctx context.Context, status string, page, limit int) (*ReportPage, error) {
	if page < 1 {
		page = 1
	}

	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}

	where := "1=1"
	args := []any{}

	if status != "" {
		args = append(args, status)
		where = "status = $1"
	}

	var total int64

	if err := db.Pool.QueryRow(ctx, "SELECT count(*) FROM content_reports WHERE "+where, args...).Scan(&total); err != nil {
		return nil, wrapRowError(err, "count reports")
	}

	args = append(args, limit, (page-1)*limit)

	query := fmt.Sprintf(`
		SELECT id, reporter_id, target_type, target_id, reason, details, status, created_at
		FROM content_reports
		WHERE %s
		ORDER BY created_at
		LIMIT $%d OFFSET $%d`, where, len(args)-1, len(args))

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapRowError(err, "list reports")
	}
	defer rows.Close()

	items := []Report{}

	for rows.Next() {
		var r Report

		if err := rows.Scan(&r.ID, &r.ReporterID, &r.TargetType, &r.TargetID,
			&r.Reason, &r.Details, &r.Status, &r.CreatedAt); err != nil {
			return nil, wrapRowError(err, "scan report")
		}

		items = append(items, r)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapRowError(err, "list reports rows")
	}

	return &ReportPage{
		Items: items,
		Total: total,
		Page:  page,
		Limit: limit,
		Pages: pageCount(total, limit),
	}, nil
}

// ResolveReport records the admin decision on a single report.
func (db *DB) ResolveReport(ctx context.Context, reportID, reviewerID, status, resolutionNote string) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE content_reports
		SET status = $2, resolution_notes = $3, resolved_by = $4, resolved_at = now()
		WHERE id = $1
	`, toUUID(reportID), status, SanitizeUTF8(resolutionNote), toUUID(reviewerID))
	if err != nil {
		return wrapRowError(err, "resolve report")
	}

	if tag.RowsAffected() == 0 {
		return wrapRowError(ErrNotFound, "resolve report")
	}

	return nil
}

// SetModerationStatus lets admins move content to any moderation state.
func (db *DB) SetModerationStatus(ctx context.Context, targetType, targetID, status string) error {
	var table string

	switch targetType {
	case TargetPost:
		table = "forum_posts"
	case TargetComment:
		table = "comments"
	default:
		return wrapRowError(ErrNotFound, "set moderation status: unknown target type")
	}

	tag, err := db.Pool.Exec(ctx, `
		UPDATE `+table+` SET moderation_status = $2, updated_at = now() WHERE id = $1
	`, toUUID(targetID), status)
	if err != nil {
		return wrapRowError(err, "set moderation status")
	}

	if tag.RowsAffected() == 0 {
		return wrapRowError(ErrNotFound, "set moderation status")
	}

	return nil
}

func (db *DB) CountPendingReports(ctx context.Context) (int64, error) {
	var count int64

	err := db.Pool.QueryRow(ctx, `
		SELECT count(*) FROM content_reports WHERE status = $1
	`, ReportStatusPending).Scan(&count)
	if err != nil {
		return 0, wrapRowError(err, "count pending reports")
	}

	return count, nil
}
