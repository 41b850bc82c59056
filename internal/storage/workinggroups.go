package db

import (
	"context"
	"time"
)

type WorkingGroup struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	IsActive       bool      `json:"is_active"`
	MemberCount    int       `json:"member_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// CreateWorkingGroup adds a group under an organization. Returns ErrDuplicate
// when the org already has a group with that name.
func (db *DB) CreateWorkingGroup(ctx context.Context, orgID, name, description string) (*WorkingGroup, error) {
	var g WorkingGroup

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO working_groups (organization_id, name, description)
		VALUES ($1, $2, $3)
		RETURNING id, organization_id, name, description, is_active, created_at
	`, toUUID(orgID), SanitizeUTF8(name), SanitizeUTF8(description)).Scan(
		&g.ID, &g.OrganizationID, &g.Name, &g.Description, &g.IsActive, &g.CreatedAt,
	)
	if err != nil {
		return nil, wrapRowError(err, "create working group")
	}

	return &g, nil
}

func (db *DB) ListWorkingGroups(ctx context.Context, orgID string) ([]WorkingGroup, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT g.id, g.organization_id, g.name, g.description, g.is_active, g.created_at,
			(SELECT count(*) FROM working_group_members m WHERE m.working_group_id = g.id)
		FROM working_groups g
		WHERE g.organization_id = $1 AND g.is_active
		ORDER BY g.name
	`, toUUID(orgID))
	if err != nil {
		return nil, wrapRowError(err, "list working groups")
	}
	defer rows.Close()

	out := []WorkingGroup{}

	for rows.Next() {
		var g WorkingGroup

		if err := rows.Scan(&g.ID, &g.OrganizationID, &g.Name, &g.Description,
			&g.IsActive, &g.CreatedAt, &g.MemberCount); err != nil {
			return nil, wrapRowError(err, "scan working group")
		}

		out = append(out, g)
	}

	return out, rows.Err()
}

// JoinWorkingGroup adds the user to a group; joining twice is a no-op.
func (db *DB) JoinWorkingGroup(ctx context.Context, groupID, userID string) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO working_group_members (working_group_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (working_group_id, user_id) DO NOTHING
	`, toUUID(groupID), toUUID(userID))
	if err != nil {
		return wrapRowError(err, "join working group")
	}

	return nil
}

func (db *DB) LeaveWorkingGroup(ctx context.Context, groupID, userID string) error {
	tag, err := db.Pool.Exec(ctx, `
		DELETE FROM working_group_members WHERE working_group_id = $1 AND user_id = $2
	`, toUUID(groupID), toUUID(userID))
	if err != nil {
		return wrapRowError(err, "leave working group")
	}

	if tag.RowsAffected() == 0 {
		return wrapRowError(ErrNotFound, "leave working group")
	}

	return nil
}
