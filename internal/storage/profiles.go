package db

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// UserDetails joins users with user_profiles for the profile endpoints.
type UserDetails struct {
	UserID      string          `json:"user_id"`
	Email       string          `json:"email"`
	UserType    string          `json:"user_type"`
	FirstName   string          `json:"first_name"`
	LastName    string          `json:"last_name"`
	DisplayName string          `json:"display_name"`
	Bio         string          `json:"bio"`
	AvatarURL   string          `json:"avatar_url"`
	Country     string          `json:"country"`
	Preferences json.RawMessage `json:"preferences"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (db *DB) GetProfileByUserID(ctx context.Context, userID string) (*UserDetails, error) {
	var d UserDetails

	err := db.Pool.QueryRow(ctx, `
		SELECT u.id, u.email, u.user_type,
			p.first_name, p.last_name, p.display_name, p.bio, p.avatar_url, p.country,
			p.preferences, u.created_at
		FROM users u
		JOIN user_profiles p ON p.user_id = u.id
		WHERE u.id = $1
	`, toUUID(userID)).Scan(
		&d.UserID, &d.Email, &d.UserType,
		&d.FirstName, &d.LastName, &d.DisplayName, &d.Bio, &d.AvatarURL, &d.Country,
		&d.Preferences, &d.CreatedAt,
	)
	if err != nil {
		return nil, wrapRowError(err, "get profile by user id")
	}

	return &d, nil
}

// ProfileUpdate carries optional profile fields; nil means unchanged.
type ProfileUpdate struct {
	FirstName   *string
	LastName    *string
	DisplayName *string
	Bio         *string
	AvatarURL   *string
	Country     *string
}

func (db *DB) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) error {
	sets := []string{}
	args := []any{toUUID(userID)}

	add := func(column string, value *string) {
		if value == nil {
			return
		}

		args = append(args, SanitizeUTF8(*value))
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	add("first_name", upd.FirstName)
	add("last_name", upd.LastName)
	add("display_name", upd.DisplayName)
	add("bio", upd.Bio)
	add("avatar_url", upd.AvatarURL)
	add("country", upd.Country)

	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = now()")

	query := "UPDATE user_profiles SET " + strings.Join(sets, ", ") + " WHERE user_id = $1"

	tag, err := db.Pool.Exec(ctx, query, args...)
	if err != nil {
		return wrapRowError(err, "update profile")
	}

	if tag.RowsAffected() == 0 {
		return wrapRowError(ErrNotFound, "update profile")
	}

	return nil
}

func (db *DB) UpdatePreferences(ctx context.Context, userID string, preferences json.RawMessage) error {
	tag, err := db.Pool.Exec(ctx, `
		UPDATE user_profiles SET preferences = $2, updated_at = now() WHERE user_id = $1
	`, toUUID(userID), preferences)
	if err != nil {
		return wrapRowError(err, "update preferences")
	}

	if tag.RowsAffected() == 0 {
		return wrapRowError(ErrNotFound, "update preferences")
	}

	return nil
}
