package db

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type Community struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Description     string    `json:"description"`
	CommunityType   string    `json:"community_type"`
	ModerationLevel string    `json:"moderation_level"`
	MemberCount     int       `json:"member_count"`
	PostCount       int       `json:"post_count"`
	IsActive        bool      `json:"is_active"`
	CreatedAt       time.Time `json:"created_at"`
	IsMember        bool      `json:"is_member"`
}

type CommunityPage struct {
	Items []Community `json:"items"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Limit int         `json:"limit"`
	Pages int         `json:"pages"`
}

type CommunityListParams struct {
	Search        string
	CommunityType string
	Page          int
	Limit         int
	UserID        string
}

func (db *DB) ListCommunities(ctx context.Context, params CommunityListParams) (*CommunityPage, error) {
	if params.Page < 1 {
		params.Page = 1
	}

	if params.Limit < 1 || params.Limit > maxPageSize {
		params.Limit = defaultPageSize
	}

	where := []string{"c.is_active"}
	args := []any{}

	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if s := strings.TrimSpace(params.Search); s != "" {
		where = append(where, fmt.Sprintf("c.name ILIKE '%%' || %s || '%%'", arg(s)))
	}

	if params.CommunityType != "" {
		where = append(where, fmt.Sprintf("c.community_type = %s", arg(params.CommunityType)))
	}

	whereClause := strings.Join(where, " AND ")

	var total int64

	if err := db.Pool.QueryRow(ctx, "SELECT count(*) FROM communities c WHERE "+whereClause, args...).Scan(&total); err != nil {
		return nil, wrapRowError(err, "count communities")
	}

	memberExpr := "FALSE"
	if params.UserID != "" {
		memberExpr = fmt.Sprintf(
			"EXISTS (SELECT 1 FROM community_members m WHERE m.community_id = c.id AND m.user_id = %s)", arg(toUUID(params.UserID)))
	}

	query := fmt.Sprintf(`
		SELECT c.id, c.name, c.description, c.community_type, c.moderation_level,
			c.member_count, c.post_count, c.is_active, c.created_at, %s
		FROM communities c
		WHERE %s
		ORDER BY c.member_count DESC, c.created_at DESC
		LIMIT %s OFFSET %s`,
		memberExpr, whereClause, arg(params.Limit), arg((params.Page-1)*params.Limit))

	rows, err := db.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapRowError(err, "list communities")
	}
	defer rows.Close()

	items := []Community{}

	for rows.Next() {
		var c Community

		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CommunityType, &c.ModerationLevel,
			&c.MemberCount, &c.PostCount, &c.IsActive, &c.CreatedAt, &c.IsMember); err != nil {
			return nil, wrapRowError(err, "scan community")
		}

		items = append(items, c)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapRowError(err, "list communities rows")
	}

	return &CommunityPage{
		Items: items,
		Total: total,
		Page:  params.Page,
		Limit: params.Limit,
		Pages: pageCount(total, params.Limit),
	}, nil
}

func (db *DB) GetCommunityByID(ctx context.Context, communityID, userID string) (*Community, error) {
	var c Community

	err := db.Pool.QueryRow(ctx, `
		SELECT c.id, c.name, c.description, c.community_type, c.moderation_level,
			c.member_count, c.post_count, c.is_active, c.created_at,
			CASE WHEN $2::uuid IS NULL THEN FALSE
				ELSE EXISTS (SELECT 1 FROM community_members m WHERE m.community_id = c.id AND m.user_id = $2)
			END
		FROM communities c
		WHERE c.id = $1
	`, toUUID(communityID), toUUID(userID)).Scan(
		&c.ID, &c.Name, &c.Description, &c.CommunityType, &c.ModerationLevel,
		&c.MemberCount, &c.PostCount, &c.IsActive, &c.CreatedAt, &c.IsMember,
	)
	if err != nil {
		return nil, wrapRowError(err, "get community by id")
	}

	return &c, nil
}

// CreateCommunity adds a community. Returns ErrDuplicate on a name clash.
func (db *DB) CreateCommunity(ctx context.Context, c Community) (*Community, error) {
	if c.ModerationLevel == "" {
		c.ModerationLevel = "standard"
	}

	err := db.Pool.QueryRow(ctx, `
		INSERT INTO communities (name, description, community_type, moderation_level)
		VALUES ($1, $2, $3, $4)
		RETURNING id, member_count, post_count, is_active, created_at
	`, SanitizeUTF8(c.Name), SanitizeUTF8(c.Description), c.CommunityType, c.ModerationLevel).
		Scan(&c.ID, &c.MemberCount, &c.PostCount, &c.IsActive, &c.CreatedAt)
	if err != nil {
		return nil, wrapRowError(err, "create community")
	}

	return &c, nil
}

// JoinCommunity adds the user as a member; joining twice is a no-op.
func (db *DB) JoinCommunity(ctx context.Context, communityID, userID string) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return wrapRowError(err, "join community: begin")
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx, `
		INSERT INTO community_members (community_id, user_id)
		VALUES ($1, $2)
		ON CONFLICT (community_id, user_id) DO NOTHING
	`, toUUID(communityID), toUUID(userID))
	if err != nil {
		return wrapRowError(err, "join community")
	}

	if tag.RowsAffected() > 0 {
		if _, err := tx.Exec(ctx, `
			UPDATE communities SET member_count = member_count + 1 WHERE id = $1
		`, toUUID(communityID)); err != nil {
			return wrapRowError(err, "bump member count")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapRowError(err, "join community: commit")
	}

	return nil
}

func (db *DB) LeaveCommunity(ctx context.Context, communityID, userID string) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return wrapRowError(err, "leave community: begin")
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx, `
		DELETE FROM community_members WHERE community_id = $1 AND user_id = $2
	`, toUUID(communityID), toUUID(userID))
	if err != nil {
		return wrapRowError(err, "leave community")
	}

	if tag.RowsAffected() == 0 {
		return wrapRowError(ErrNotFound, "leave community")
	}

	if _, err := tx.Exec(ctx, `
		UPDATE communities SET member_count = greatest(member_count - 1, 0) WHERE id = $1
	`, toUUID(communityID)); err != nil {
		return wrapRowError(err, "drop member count")
	}

	if err := tx.Commit(ctx); err != nil {
		return wrapRowError(err, "leave community: commit")
	}

	return nil
}

func (db *DB) IsCommunityMember(ctx context.Context, communityID, userID string) (bool, error) {
	var member bool

	err := db.Pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM community_members WHERE community_id = $1 AND user_id = $2)
	`, toUUID(communityID), toUUID(userID)).Scan(&member)
	if err != nil {
		return false, wrapRowError(err, "is community member")
	}

	return member, nil
}
