package db

import (
	"context"
	"time"
)

type Verification struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	LicenseNumber   string     `json:"license_number"`
	LicenseCountry  string     `json:"license_country"`
	Specialty       string     `json:"specialty"`
	DocumentURL     string     `json:"document_url"`
	Status          string     `json:"status"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

const verificationColumns = `id, user_id, license_number, license_country, specialty,
	document_url, status, rejection_reason, reviewed_at, created_at`

func scanVerification(row interface{ Scan(...any) error }) (*Verification, error) {
	var v Verification

	err := row.Scan(&v.ID, &v.UserID, &v.LicenseNumber, &v.LicenseCountry, &v.Specialty,
		&v.DocumentURL, &v.Status, &v.RejectionReason, &v.ReviewedAt, &v.CreatedAt)
	if err != nil {
		return nil, err
	}

	return &v, nil
}

func (db *DB) CreateVerification(ctx context.Context, userID, licenseNumber, licenseCountry, specialty, documentURL string) (*Verification, error) {
	row := db.Pool.QueryRow(ctx, `
		INSERT INTO doctor_verifications (user_id, license_number, license_country, specialty, document_url)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+verificationColumns,
		toUUID(userID), licenseNumber, licenseCountry, specialty, documentURL)

	v, err := scanVerification(row)
	if err != nil {
		return nil, wrapRowError(err, "create verification")
	}

	return v, nil
}

// GetVerificationByUser returns the user's most recent verification request.
func (db *DB) GetVerificationByUser(ctx context.Context, userID string) (*Verification, error) {
	row := db.Pool.QueryRow(ctx, `
		SELECT `+verificationColumns+`
		FROM doctor_verifications
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, toUUID(userID))

	v, err := scanVerification(row)
	if err != nil {
		return nil, wrapRowError(err, "get verification by user")
	}

	return v, nil
}

func (db *DB) ListPendingVerifications(ctx context.Context) ([]Verification, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT `+verificationColumns+`
		FROM doctor_verifications
		WHERE status = $1
		ORDER BY created_at
	`, VerificationPending)
	if err != nil {
		return nil, wrapRowError(err, "list pending verifications")
	}
	defer rows.Close()

	var out []Verification

	for rows.Next() {
		v, err := scanVerification(rows)
		if err != nil {
			return nil, wrapRowError(err, "scan verification")
		}

		out = append(out, *v)
	}

	return out, rows.Err()
}

// ReviewVerification records the admin decision. An approval also promotes the
// applicant to the hcp role.
func (db *DB) ReviewVerification(ctx context.Context, verificationID, reviewerID, status, rejectionReason string) (*Verification, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, wrapRowError(err, "review verification: begin")
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := tx.QueryRow(ctx, `
		UPDATE doctor_verifications
		SET status = $2, rejection_reason = $3, reviewed_by = $4, reviewed_at = now()
		WHERE id = $1
		RETURNING `+verificationColumns,
		toUUID(verificationID), status, rejectionReason, toUUID(reviewerID))

	v, err := scanVerification(row)
	if err != nil {
		return nil, wrapRowError(err, "review verification")
	}

	if status == VerificationApproved {
		if _, err := tx.Exec(ctx, `
			UPDATE users SET user_type = $2, updated_at = now()
			WHERE id = $1 AND user_type = $3
		`, toUUID(v.UserID), UserTypeHCP, UserTypePatient); err != nil {
			return nil, wrapRowError(err, "promote verified user")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapRowError(err, "review verification: commit")
	}

	return v, nil
}
