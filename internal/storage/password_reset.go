package db

import (
	"context"
	"time"
)

type ResetToken struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	Used      bool
}

// CreateResetToken stores a new reset token for the user, invalidating any
// outstanding ones in the same transaction.
func (db *DB) CreateResetToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return wrapRowError(err, "create reset token: begin")
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	_, err = tx.Exec(ctx, `
		UPDATE password_reset_tokens SET used = TRUE, used_at = now()
		WHERE user_id = $1 AND NOT used
	`, toUUID(userID))
	if err != nil {
		return wrapRowError(err, "invalidate old reset tokens")
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO password_reset_tokens (user_id, token, expires_at)
		VALUES ($1, $2, $3)
	`, toUUID(userID), token, expiresAt)
	if err != nil {
		return wrapRowError(err, "insert reset token")
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapRowError(err, "create reset token: commit")
	}

	return nil
}

func (db *DB) GetResetToken(ctx context.Context, token string) (*ResetToken, error) {
	var t ResetToken

	err := db.Pool.QueryRow(ctx, `
		SELECT id, user_id, expires_at, used
		FROM password_reset_tokens
		WHERE token = $1
	`, token).Scan(&t.ID, &t.UserID, &t.ExpiresAt, &t.Used)
	if err != nil {
		return nil, wrapRowError(err, "get reset token")
	}

	return &t, nil
}

// MarkResetTokenUsed consumes a token. Returns ErrNotFound when the token was
// already used, which makes redemption single-use even under concurrent calls.
func (db *DB) MarkResetTokenUsed(ctx context.Context, tokenID string) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE password_reset_tokens SET used = TRUE, used_at = now()
		WHERE id = $1 AND NOT used
	`, toUUID(tokenID))
	if err != nil {
		return wrapRowError(err, "mark reset token used")
	}

	if tag.RowsAffected() == 0 {
		return wrapRowError(ErrNotFound, "mark reset token used")
	}

	return nil
}

// DeleteExpiredResetTokens removes tokens past expiry, returning the count.
func (db *DB) DeleteExpiredResetTokens(ctx context.Context) (int64, error) {
	tag, err := db.Pool.Exec(ctx, `
		DELETE FROM password_reset_tokens WHERE expires_at < now()
	`)
	if err != nil {
		return 0, wrapRowError(err, "delete expired reset tokens")
	}

	return tag.RowsAffected(), nil
}
