package db

import (
	"context"
	"time"
)

type Organization struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	OrgType      string    `json:"org_type"`
	Website      string    `json:"website,omitempty"`
	ContactEmail string    `json:"contact_email,omitempty"`
	LogoURL      string    `json:"logo_url,omitempty"`
	IsVerified   bool      `json:"is_verified"`
	CreatedAt    time.Time `json:"created_at"`
}

const orgColumns = "id, name, description, org_type, website, contact_email, logo_url, is_verified, created_at"

func scanOrganization(row interface{ Scan(...any) error }) (*Organization, error) {
	var o Organization

	err := row.Scan(&o.ID, &o.Name, &o.Description, &o.OrgType, &o.Website,
		&o.ContactEmail, &o.LogoURL, &o.IsVerified, &o.CreatedAt)
	if err != nil {
		return nil, err
	}

	return &o, nil
}

// CreateOrganization adds an organization and makes the creator its admin.
func (db *DB) CreateOrganization(ctx context.Context, creatorID string, o Organization) (*Organization, error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return nil, wrapRowError(err, "create organization: begin")
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	row := tx.QueryRow(ctx, `
		INSERT INTO organizations (name, description, org_type, website, contact_email, logo_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+orgColumns,
		SanitizeUTF8(o.Name), SanitizeUTF8(o.Description), o.OrgType, o.Website, o.ContactEmail, o.LogoURL)

	created, err := scanOrganization(row)
	if err != nil {
		return nil, wrapRowError(err, "create organization")
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO organization_members (organization_id, user_id, role)
		VALUES ($1, $2, 'admin')
	`, created.ID, toUUID(creatorID)); err != nil {
		return nil, wrapRowError(err, "add organization admin")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, wrapRowError(err, "create organization: commit")
	}

	return created, nil
}

func (db *DB) GetOrganizationByID(ctx context.Context, orgID string) (*Organization, error) {
	row := db.Pool.QueryRow(ctx, "SELECT "+orgColumns+" FROM organizations WHERE id = $1", toUUID(orgID))

	o, err := scanOrganization(row)
	if err != nil {
		return nil, wrapRowError(err, "get organization by id")
	}

	return o, nil
}

func (db *DB) ListOrganizations(ctx context.Context, orgType string) ([]Organization, error) {
	query := "SELECT " + orgColumns + " FROM organizations"
	args := []any{}

	if orgType != "" {
		query += " WHERE org_type = $1"
		args = append(args, orgType)
	}

	query += " ORDER BY name"

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapRowError(err, "list organizations")
	}
	defer rows.Close()

	out := []Organization{}

	for rows.Next() {
		o, err := scanOrganization(rows)
		if err != nil {
			return nil, wrapRowError(err, "scan organization")
		}

		out = append(out, *o)
	}

	return out, rows.Err()
}

// AddOrganizationMember joins a user to an organization. Joining twice is a
// no-op.
func (db *DB) AddOrganizationMember(ctx context.Context, orgID, userID, role string) error {
	if role == "" {
		role = "member"
	}

	_, err := db.Pool.Exec(ctx, `
		INSERT INTO organization_members (organization_id, user_id, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (organization_id, user_id) DO NOTHING
	`, toUUID(orgID), toUUID(userID), role)
	if err != nil {
		return wrapRowError(err, "add organization member")
	}

	return nil
}

func (db *DB) RemoveOrganizationMember(ctx context.Context, orgID, userID string) error {
	tag, err := db.Pool.Exec(ctx, `
		DELETE FROM organization_members WHERE organization_id = $1 AND user_id = $2
	`, toUUID(orgID), toUUID(userID))
	if err != nil {
		return wrapRowError(err, "remove organization member")
	}

	if tag.RowsAffected() == 0 {
		return wrapRowError(ErrNotFound, "remove organization member")
	}

	return nil
}

// OrganizationRole returns the user's role in the organization, or ErrNotFound
// when the user is not a member.
func (db *DB) OrganizationRole(ctx context.Context, orgID, userID string) (string, error) {
	var role string

	err := db.Pool.QueryRow(ctx, `
		SELECT role FROM organization_members WHERE organization_id = $1 AND user_id = $2
	`, toUUID(orgID), toUUID(userID)).Scan(&role)
	if err != nil {
		return "", wrapRowError(err, "organization role")
	}

	return role, nil
}
