package db

import (
	"context"
	"encoding/json"
)

// LogActivity records an audit entry. Failures are returned but callers
// generally log and continue, activity logging never blocks a request.
func (db *DB) LogActivity(ctx context.Context, userID, action, targetType, targetID string, metadata json.RawMessage) error {
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}

	_, err := db.Pool.Exec(ctx, `
		INSERT INTO user_activity_log (user_id, action, target_type, target_id, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`, toUUID(userID), action, targetType, toUUID(targetID), metadata)
	if err != nil {
		return wrapRowError(err, "log activity")
	}

	return nil
}
