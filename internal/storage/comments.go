package db

import (
	"context"
	"time"
)

type Comment struct {
	ID               string    `json:"id"`
	PostID           string    `json:"post_id"`
	AuthorID         string    `json:"author_id"`
	AuthorName       string    `json:"author_name"`
	ParentCommentID  *string   `json:"parent_comment_id,omitempty"`
	Content          string    `json:"content"`
	ModerationStatus string    `json:"moderation_status"`
	IsDeleted        bool      `json:"is_deleted"`
	LikesCount       int       `json:"likes_count"`
	CreatedAt        time.Time `json:"created_at"`
}

const commentSelect = `
	SELECT c.id, c.post_id, c.author_id, pr.display_name, c.parent_comment_id,
		c.content, c.moderation_status, c.is_deleted, c.likes_count, c.created_at
	FROM comments c
	JOIN user_profiles pr ON pr.user_id = c.author_id`

func scanComment(row interface{ Scan(...any) error }) (*Comment, error) {
	var c Comment

	err := row.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.AuthorName, &c.ParentCommentID,
		&c.Content, &c.ModerationStatus, &c.IsDeleted, &c.LikesCount, &c.CreatedAt)
	if err != nil {
		return nil, err
	}

	return &c, nil
}

func (db *DB) CreateComment(ctx context.Context, postID, authorID, content string, parentID *string) (*Comment, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, wrapRowError(err, "create comment: begin")
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var parent any
	if parentID != nil {
		parent = toUUID(*parentID)
	}

	var commentID string

	err = tx.QueryRow(ctx, `
		INSERT INTO comments (post_id, author_id, parent_comment_id, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, toUUID(postID), toUUID(authorID), parent, SanitizeUTF8(content)).Scan(&commentID)
	if err != nil {
		return nil, wrapRowError(err, "create comment")
	}

	if _, err := tx.Exec(ctx, `
		UPDATE forum_posts SET replies_count = replies_count + 1 WHERE id = $1
	`, toUUID(postID)); err != nil {
		return nil, wrapRowError(err, "bump comment count")
	}

	comment, err := scanComment(tx.QueryRow(ctx, commentSelect+" WHERE c.id = $1", commentID))
	if err != nil {
		return nil, wrapRowError(err, "load created comment")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapRowError(err, "create comment: commit")
	}

	return comment, nil
}

// ListCommentsByPost returns visible comments oldest first. Hidden comments
// (soft-deleted, flagged or removed) appear only when includeHidden is set.
func (db *DB) ListCommentsByPost(ctx context.Context, postID string, includeHidden bool) ([]Comment, error) {
	query := commentSelect + " WHERE c.post_id = $1"
	if !includeHidden {
		query += " AND NOT c.is_deleted AND c.moderation_status IN ('pending', 'approved')"
	}

	query += " ORDER BY c.created_at"

	rows, err := db.Pool.Query(ctx, query, toUUID(postID))
	if err != nil {
		return nil, wrapRowError(err, "list comments by post")
	}
	defer rows.Close()

	out := []Comment{}

	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, wrapRowError(err, "scan comment")
		}

		out = append(out, *c)
	}

	return out, rows.Err()
}

func (db *DB) UpdateComment(ctx context.Context, commentID, editorID string, asAdmin bool, content string) error {
	query := `
		UPDATE comments SET content = $2, updated_at = now()
		WHERE id = $1 AND NOT is_deleted`
	args := []any{toUUID(commentID), SanitizeUTF8(content)}

	if !asAdmin {
		query += " AND author_id = $3"
		args = append(args, toUUID(editorID))
	}

	tag, err := db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return wrapRowError(err, "update comment")
	}

	if tag.RowsAffected() == 0 {
		return wrapRowError(ErrNotFound, "update comment")
	}

	return nil
}

func (db *DB) SoftDeleteComment(ctx context.Context, commentID, editorID string, asAdmin bool) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return wrapRowError(err, "soft delete comment: begin")
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	query := `
		UPDATE comments SET is_deleted = TRUE, updated_at = now()
		WHERE id = $1 AND NOT is_deleted`
	args := []any{toUUID(commentID)}

	if !asAdmin {
		query += " AND author_id = $2"
		args = append(args, toUUID(editorID))
	}

	var postID string

	err = tx.QueryRow(ctx, query+" RETURNING post_id", args...).Scan(&postID)
	if err != nil {
		return wrapRowError(err, "soft delete comment")
	}

	if _, err := tx.Exec(ctx, `
		UPDATE forum_posts SET replies_count = greatest(replies_count - 1, 0) WHERE id = $1
	`, toUUID(postID)); err != nil {
		return wrapRowError(err, "drop comment count")
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapRowError(err, "soft delete comment: commit")
	}

	return nil
}

func (db *DB) LikeComment(ctx context.Context, commentID, userID string) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return wrapRowError(err, "like comment: begin")
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx, `
		INSERT INTO comment_likes (comment_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (comment_id, user_id) DO NOTHING
	`, toUUID(commentID), toUUID(userID))
	if err != nil {
		return wrapRowError(err, "like comment")
	}

	if tag.RowsAffected() > 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE comments SET likes_count = likes_count + 1 WHERE id = $1
		`, toUUID(commentID)); err != nil {
			return wrapRowError(err, "bump comment like count")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapRowError(err, "like comment: commit")
	}

	return nil
}
