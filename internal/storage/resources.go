package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Resource struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	ResourceType  string    `json:"resource_type"`
	Category      string    `json:"category,omitempty"`
	Language      string    `json:"language"`
	FileURL       string    `json:"file_url,omitempty"`
	IsFeatured    bool      `json:"is_featured"`
	RequiresAuth  bool      `json:"requires_auth"`
	DownloadCount int       `json:"download_count"`
	AvgRating     float32   `json:"avg_rating"`
	RatingCount   int       `json:"rating_count"`
	CreatedAt     time.Time `json:"created_at"`
}

const resourceColumns = `id, title, description, resource_type, category, language,
	file_url, is_featured, requires_auth, download_count, avg_rating, rating_count, created_at`

func scanResource(row interface{ Scan(...any) error }) (*Resource, error) {
	var r Resource

	err := row.Scan(&r.ID, &r.Title, &r.Description, &r.ResourceType, &r.Category, &r.Language,
		&r.FileURL, &r.IsFeatured, &r.RequiresAuth, &r.DownloadCount, &r.AvgRating, &r.RatingCount, &r.CreatedAt)
	if err != nil {
		return nil, err
	}

	return &r, nil
}

type ResourcePage struct {
	Items []Resource `json:"items"`
	Total int64      `json:"total"`
	Page  int        `json:"page"`
	Limit int        `json:"limit"`
	Pages int        `json:"pages"`
}

type ResourceListParams struct {
	Search       string
	ResourceType string
	Category     string
	Language     string
	FeaturedOnly bool
	Page         int
	Limit        int
}

func (db *DB) ListResources(ctx context.Context, params ResourceListParams) (*ResourcePage, error) {
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

	if s := strings.TrimSpace(params.Search); s != "" {
		where = append(where, fmt.Sprintf("title ILIKE '%%' || %s || '%%'", arg(s)))
	}

	if params.ResourceType != "" {
		where = append(where, fmt.Sprintf("resource_type = %s", arg(params.ResourceType)))
	}

	if params.Category != "" {
		where = append(where, fmt.Sprintf("category = %s", arg(params.Category)))
	}

	if params.Language != "" {
		where = append(where, fmt.Sprintf("language = %s", arg(params.Language)))
	}

	if params.FeaturedOnly {
		where = append(where, "is_featured")
	}

	whereClause := strings.Join(where, " AND ")

	var total int64

	if err := db.Pool.QueryRow(ctx, "SELECT count(*) FROM resources WHERE "+whereClause, args...).Scan(&total); err != nil {
		return nil, wrapRowError(err, "count resources")
	}

	query := fmt.Sprintf(`
		SELECT %s FROM resources
		WHERE %s
		ORDER BY is_featured DESC, avg_rating DESC, created_at DESC
		LIMIT %s OFFSET %s`,
		resourceColumns, whereClause, arg(params.Limit), arg((params.Page-1)*params.Limit))

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapRowError(err, "list resources")
	}
	defer rows.Close()

	items := []Resource{}

	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, wrapRowError(err, "scan resource")
		}

		items = append(items, *r)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapRowError(err, "list resources rows")
	}

	return &ResourcePage{
		Items: items,
		Total: total,
		Page:  params.Page,
		Limit: params.Limit,
		Pages: pageCount(total, params.Limit),
	}, nil
}

func (db *DB) GetResourceByID(ctx context.Context, resourceID string) (*Resource, error) {
	row := db.Pool.QueryRow(ctx, "SELECT "+resourceColumns+" FROM resources WHERE id = $1", toUUID(resourceID))

	r, err := scanResource(row)
	if err != nil {
		return nil, wrapRowError(err, "get resource by id")
	}

	return r, nil
}

func (db *DB) CreateResource(ctx context.Context, r Resource) (*Resource, error) {
	if r.Language == "" {
		r.Language = "en"
	}

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO resources (title, description, resource_type, category, language,
			file_url, is_featured, requires_auth)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, download_count, avg_rating, rating_count, created_at
	`, SanitizeUTF8(r.Title), SanitizeUTF8(r.Description), r.ResourceType, r.Category, r.Language,
		r.FileURL, r.IsFeatured, r.RequiresAuth).Scan(
		&r.ID, &r.DownloadCount, &r.AvgRating, &r.RatingCount, &r.CreatedAt,
	)
	if err != nil {
		return nil, wrapRowError(err, "create resource")
	}

	return &r, nil
}

// RateResource upserts the user's rating and recomputes the aggregate in the
// same transaction, so repeat ratings replace rather than stack.
func (db *DB) RateResource(ctx context.Context, resourceID, userID string, rating int, review string) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return wrapRowError(err, "rate resource: begin")
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `
		INSERT INTO resource_ratings (resource_id, user_id, rating, review)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (resource_id, user_id) DO UPDATE SET
			rating = EXCLUDED.rating,
			review = EXCLUDED.review,
			updated_at = now()
	`, toUUID(resourceID), toUUID(userID), rating, SanitizeUTF8(review)); err != nil {
		return wrapRowError(err, "rate resource")
	}

	if _, err := tx.Exec(ctx, `
		UPDATE resources SET
			avg_rating = (SELECT avg(rating) FROM resource_ratings WHERE resource_id = $1),
			rating_count = (SELECT count(*) FROM resource_ratings WHERE resource_id = $1),
			updated_at = now()
		WHERE id = $1
	`, toUUID(resourceID)); err != nil {
		return wrapRowError(err, "recompute resource rating")
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapRowError(err, "rate resource: commit")
	}

	return nil
}

func (db *DB) IncrementResourceDownloads(ctx context.Context, resourceID string) error {
	if _, err := db.Pool.Exec(ctx, `
		UPDATE resources SET download_count = download_count + 1 WHERE id = $1
	`, toUUID(resourceID)); err != nil {
		return wrapRowError(err, "increment resource downloads")
	}

	return nil
}
