package db

import (
	"context"
	"time"
)

type User struct {
	ID           string
	Email        string
	PasswordHash string
	UserType     string
	Status       string
	IsActive     bool
	LastLoginAt  *time.Time
	CreatedAt    time.Time
}

const userColumns = "id, email, password_hash, user_type, status, is_active, last_login_at, created_at"

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var u User

	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.UserType, &u.Status, &u.IsActive, &u.LastLoginAt, &u.CreatedAt)
	if err != nil {
		return nil, err
	}

	return &u, nil
}

// CreateUser inserts a user row together with an empty profile.
// Returns ErrDuplicate when the email is already registered.
func (db *DB) CreateUser(ctx context.Context, email, passwordHash, userType, firstName, lastName string) (*User, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, wrapRowError(err, "create user: begin")
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := tx.QueryRow(ctx, `
		INSERT INTO users (email, password_hash, user_type)
		VALUES ($1, $2, $3)
		RETURNING `+userColumns,
		email, passwordHash, userType)

	user, err := scanUser(row)
	if err != nil {
		return nil, wrapRowError(err, "create user")
	}

	displayName := SanitizeUTF8(firstName + " " + lastName)

	_, err = tx.Exec(ctx, `
		INSERT INTO user_profiles (user_id, first_name, last_name, display_name)
		VALUES ($1, $2, $3, $4)
	`, user.ID, firstName, lastName, displayName)
	if err != nil {
		return nil, wrapRowError(err, "create user profile")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapRowError(err, "create user: commit")
	}

	return user, nil
}

func (db *DB) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := db.Pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE email = $1", email)

	user, err := scanUser(row)
	if err != nil {
		return nil, wrapRowError(err, "get user by email")
	}

	return user, nil
}

func (db *DB) GetUserByID(ctx context.Context, id string) (*User, error) {
	row := db.Pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", toUUID(id))

	user, err := scanUser(row)
	if err != nil {
		return nil, wrapRowError(err, "get user by id")
	}

	return user, nil
}

func (db *DB) UpdateLastLogin(ctx context.Context, id string) error {
	_, err := db.Pool.Exec(ctx, "UPDATE users SET last_login_at = now() WHERE id = $1", toUUID(id))
	if err != nil {
		return wrapRowError(err, "update last login")
	}

	return nil
}

func (db *DB) UpdatePasswordHash(ctx context.Context, id, passwordHash string) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1
	`, toUUID(id), passwordHash)
	if err != nil {
		return wrapRowError(err, "update password hash")
	}

	if tag.RowsAffected() == 0 {
		return wrapRowError(ErrNotFound, "update password hash")
	}

	return nil
}

// SetUserType changes a user's role, e.g. patient -> hcp after verification.
func (db *DB) SetUserType(ctx context.Context, id, userType string) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE users SET user_type = $2, updated_at = now() WHERE id = $1
	`, toUUID(id), userType)
	if err != nil {
		return wrapRowError(err, "set user type")
	}

	if tag.RowsAffected() == 0 {
		return wrapRowError(ErrNotFound, "set user type")
	}

	return nil
}
