package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Post struct {
	ID               string    `json:"id"`
	CommunityID      string    `json:"community_id"`
	AuthorID         string    `json:"author_id"`
	AuthorName       string    `json:"author_name"`
	Title            string    `json:"title"`
	Content          string    `json:"content"`
	ModerationStatus string    `json:"moderation_status"`
	IsDeleted        bool      `json:"is_deleted"`
	ViewsCount       int       `json:"views_count"`
	LikesCount       int       `json:"likes_count"`
	RepliesCount     int       `json:"replies_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type PostPage struct {
	Items []Post `json:"items"`
	Total int64  `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
	Pages int    `json:"pages"`
}

type PostListParams struct {
	CommunityID string
	Page        int
	Limit       int
	// IncludeHidden lets moderators see flagged, removed and soft-deleted posts.
	IncludeHidden bool
}

const postSelect = `
	SELECT p.id, p.community_id, p.author_id, pr.display_name,
		p.title, p.content, p.moderation_status, p.is_deleted,
		p.views_count, p.likes_count, p.replies_count, p.created_at, p.updated_at
	FROM forum_posts p
	JOIN user_profiles pr ON pr.user_id = p.author_id`

func scanPost(row interface{ Scan(...any) error }) (*Post, error) {
	var p Post

	err := row.Scan(&p.ID, &p.CommunityID, &p.AuthorID, &p.AuthorName,
		&p.Title, &p.Content, &p.ModerationStatus, &p.IsDeleted,
		&p.ViewsCount, &p.LikesCount, &p.RepliesCount, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return &p, nil
}

func (db *DB) CreatePost(ctx context.Context, communityID, authorID, title, content string) (*Post, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, wrapRowError(err, "create post: begin")
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var postID string

	err = tx.QueryRow(ctx, `
		INSERT INTO forum_posts (community_id, author_id, title, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, toUUID(communityID), toUUID(authorID), SanitizeUTF8(title), SanitizeUTF8(content)).Scan(&postID)
	if err != nil {
		return nil, wrapRowError(err, "create post")
	}

	if _, err := tx.Exec(ctx, `
		UPDATE communities SET post_count = post_count + 1 WHERE id = $1
	`, toUUID(communityID)); err != nil {
		return nil, wrapRowError(err, "bump post count")
	}

	row := tx.QueryRow(ctx, postSelect+" WHERE p.id = $1", postID)

	post, err := scanPost(row)
	if err != nil {
		return nil, wrapRowError(err, "load created post")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapRowError(err, "create post: commit")
	}

	return post, nil
}

// GetPostByID returns a post. Hidden posts (soft-deleted, flagged or removed)
// come back only when includeHidden is set.
func (db *DB) GetPostByID(ctx context.Context, postID string, includeHidden bool) (*Post, error) {
	query := postSelect + " WHERE p.id = $1"
	if !includeHidden {
		query += " AND NOT p.is_deleted AND p.moderation_status IN ('pending', 'approved')"
	}

	post, err := scanPost(db.Pool.QueryRow(ctx, query, toUUID(postID)))
	if err != nil {
		return nil, wrapRowError(err, "get post by id")
	}

	return post, nil
}

func (db *DB) ListPosts(ctx context.Context, params PostListParams) (*PostPage, error) {
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

	if params.CommunityID != "" {
		where = append(where, fmt.Sprintf("p.community_id = %s", arg(toUUID(params.CommunityID))))
	}

	if !params.IncludeHidden {
		where = append(where, "NOT p.is_deleted", "p.moderation_status IN ('pending', 'approved')")
	}

	whereClause := strings.Join(where, " AND ")

	var total int64

	if err := db.Pool.QueryRow(ctx, "SELECT count(*) FROM forum_posts p WHERE "+whereClause, args...).Scan(&total); err != nil {
		return nil, wrapRowError(err, "count posts")
	}

	query := fmt.Sprintf("%s WHERE %s ORDER BY p.created_at DESC LIMIT %s OFFSET %s",
		postSelect, whereClause, arg(params.Limit), arg((params.Page-1)*params.Limit))

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapRowError(err, "list posts")
	}
	defer rows.Close()

	items := []Post{}

	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, wrapRowError(err, "scan post")
		}

		items = append(items, *p)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapRowError(err, "list posts rows")
	}

	return &PostPage{
		Items: items,
		Total: total,
		Page:  params.Page,
		Limit: params.Limit,
		Pages: pageCount(total, params.Limit),
	}, nil
}

// UpdatePost edits a post's title and content. Only the author may edit
// unless asAdmin is set.
func (db *DB) UpdatePost(ctx context.Context, postID, editorID string, asAdmin bool, title, content string) error {
	query := `
		UPDATE forum_posts SET title = $2, content = $3, updated_at = now()
		WHERE id = $1 AND NOT is_deleted`
	args := []any{toUUID(postID), SanitizeUTF8(title), SanitizeUTF8(content)}

	if !asAdmin {
		query += " AND author_id = $4"
		args = append(args, toUUID(editorID))
	}

	tag, err := db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return wrapRowError(err, "update post")
	}

	if tag.RowsAffected() == 0 {
		return wrapRowError(ErrNotFound, "update post")
	}

	return nil
}

// SoftDeletePost marks a post deleted without removing the row.
func (db *DB) SoftDeletePost(ctx context.Context, postID, editorID string, asAdmin bool) error {
	query := `
		UPDATE forum_posts SET is_deleted = TRUE, updated_at = now()
		WHERE id = $1 AND NOT is_deleted`
	args := []any{toUUID(postID)}

	if !asAdmin {
		query += " AND author_id = $2"
		args = append(args, toUUID(editorID))
	}

	tag, err := db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return wrapRowError(err, "soft delete post")
	}

	if tag.RowsAffected() == 0 {
		return wrapRowError(ErrNotFound, "soft delete post")
	}

	return nil
}

func (db *DB) IncrementPostViews(ctx context.Context, postID string) error {
	if _, err := db.Pool.Exec(ctx, `
		UPDATE forum_posts SET views_count = views_count + 1 WHERE id = $1
	`, toUUID(postID)); err != nil {
		return wrapRowError(err, "increment post views")
	}

	return nil
}

// LikePost records a like and bumps the counter. Liking twice is a no-op.
func (db *DB) LikePost(ctx context.Context, postID, userID string) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return wrapRowError(err, "like post: begin")
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx, `
		INSERT INTO post_likes (post_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (post_id, user_id) DO NOTHING
	`, toUUID(postID), toUUID(userID))
	if err != nil {
		return wrapRowError(err, "like post")
	}

	if tag.RowsAffected() > 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE forum_posts SET likes_count = likes_count + 1 WHERE id = $1
		`, toUUID(postID)); err != nil {
			return wrapRowError(err, "bump like count")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapRowError(err, "like post: commit")
	}

	return nil
}

func (db *DB) UnlikePost(ctx context.Context, postID, userID string) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return wrapRowError(err, "unlike post: begin")
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx, `
		DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2
	`, toUUID(postID), toUUID(userID))
	if err != nil {
		return wrapRowError(err, "unlike post")
	}

	if tag.RowsAffected() > 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE forum_posts SET likes_count = greatest(likes_count - 1, 0) WHERE id = $1
		`, toUUID(postID)); err != nil {
			return wrapRowError(err, "drop like count")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapRowError(err, "unlike post: commit")
	}

	return nil
}
