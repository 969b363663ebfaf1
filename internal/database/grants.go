package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"sentiment-dashboard/internal/database/models"
	"sentiment-dashboard/internal/database/query"
)

const upsertGrant = `
	INSERT INTO user_post_access (auth_user_id, post_id, granted_by, granted_at)
	VALUES ($1, $2, $3, NOW())
	ON CONFLICT (auth_user_id, post_id)
	DO UPDATE SET granted_at = NOW(), granted_by = EXCLUDED.granted_by`

func nullableID(id string) interface{} {
	if id == "" {
		return nil
	}
	return id
}

// GrantAccess is an upsert; granting twice refreshes granted_at and granted_by.
func (db *DB) GrantAccess(ctx context.Context, authUserID, postID, grantedBy string) error {
	if err := requireID("auth_user_id", authUserID); err != nil {
		return err
	}
	if err := requireID("post_id", postID); err != nil {
		return err
	}
	if grantedBy != "" && !query.ValidID(grantedBy) {
		return &ValidationError{Field: "granted_by", Message: "must be a valid id"}
	}

	return db.withTx(ctx, "grant_access", func(tx *sql.Tx) error {
		if err := checkReferences(ctx, tx, "auth_users", "auth user", []string{authUserID}); err != nil {
			return err
		}
		if err := checkReferences(ctx, tx, "posts", "post", []string{postID}); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, upsertGrant, authUserID, postID, nullableID(grantedBy)); err != nil {
			return fmt.Errorf("failed to grant access: %w", err)
		}
		return nil
	})
}

// RevokeAccess deletes the grant. Revoking a grant that does not exist is not
// an error.
func (db *DB) RevokeAccess(ctx context.Context, authUserID, postID string) error {
	if !query.ValidID(authUserID) || !query.ValidID(postID) {
		return nil
	}
	return db.withConn(ctx, "revoke_access", func(q querier) error {
		_, err := q.ExecContext(ctx,
			`DELETE FROM user_post_access WHERE auth_user_id = $1 AND post_id = $2`, authUserID, postID)
		if err != nil {
			return fmt.Errorf("failed to revoke access: %w", err)
		}
		return nil
	})
}

const grantSelect = `
	SELECT g.id, g.auth_user_id, g.post_id, g.granted_at, g.granted_by,
	       au.username, au.email, p.url, p.content
	FROM user_post_access g
	JOIN auth_users au ON au.id = g.auth_user_id
	JOIN posts p ON p.id = g.post_id`

func queryGrants(ctx context.Context, q querier, stmt string, args ...interface{}) ([]*models.AccessGrant, error) {
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query grants: %w", err)
	}
	defer rows.Close()

	grants := []*models.AccessGrant{}
	for rows.Next() {
		g := &models.AccessGrant{}
		err := rows.Scan(&g.ID, &g.AuthUserID, &g.PostID, &g.GrantedAt, &g.GrantedBy,
			&g.Username, &g.Email, &g.PostURL, &g.PostContent)
		if err != nil {
			return nil, fmt.Errorf("failed to scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

func (db *DB) ListGrantsForUser(ctx context.Context, authUserID string) ([]*models.AccessGrant, error) {
	if !query.ValidID(authUserID) {
		return []*models.AccessGrant{}, nil
	}
	var grants []*models.AccessGrant
	err := db.withConn(ctx, "list_grants_for_user", func(q querier) error {
		var err error
		grants, err = queryGrants(ctx, q, grantSelect+`
			WHERE g.auth_user_id = $1
			ORDER BY g.granted_at DESC, g.id DESC`, authUserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return grants, nil
}

func (db *DB) ListGrantsForPost(ctx context.Context, postID string) ([]*models.AccessGrant, error) {
	if !query.ValidID(postID) {
		return []*models.AccessGrant{}, nil
	}
	var grants []*models.AccessGrant
	err := db.withConn(ctx, "list_grants_for_post", func(q querier) error {
		var err error
		grants, err = queryGrants(ctx, q, grantSelect+`
			WHERE g.post_id = $1
			ORDER BY g.granted_at DESC, g.id DESC`, postID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return grants, nil
}

// BulkGrantUsersToPost grants one post to many auth users.
func (db *DB) BulkGrantUsersToPost(ctx context.Context, authUserIDs []string, postID, grantedBy string) (int, error) {
	if len(authUserIDs) == 0 {
		return 0, &ValidationError{Field: "user_ids", Message: "at least one user id is required"}
	}
	if err := requireID("post_id", postID); err != nil {
		return 0, err
	}
	pairs := make([][2]string, 0, len(authUserIDs))
	for _, id := range dedupe(authUserIDs) {
		pairs = append(pairs, [2]string{id, postID})
	}
	return db.bulkGrant(ctx, "bulk_grant_users_to_post", dedupe(authUserIDs), []string{postID}, pairs, grantedBy)
}

// BulkGrantPostsToUser grants many posts to one auth user.
func (db *DB) BulkGrantPostsToUser(ctx context.Context, authUserID string, postIDs []string, grantedBy string) (int, error) {
	if len(postIDs) == 0 {
		return 0, &ValidationError{Field: "post_ids", Message: "at least one post id is required"}
	}
	if err := requireID("user_id", authUserID); err != nil {
		return 0, err
	}
	pairs := make([][2]string, 0, len(postIDs))
	for _, id := range dedupe(postIDs) {
		pairs = append(pairs, [2]string{authUserID, id})
	}
	return db.bulkGrant(ctx, "bulk_grant_posts_to_user", []string{authUserID}, dedupe(postIDs), pairs, grantedBy)
}

// bulkGrant verifies every referenced user and post before writing anything,
// then applies all pairs in one transaction.
func (db *DB) bulkGrant(ctx context.Context, operation string, userIDs, postIDs []string, pairs [][2]string, grantedBy string) (int, error) {
	if grantedBy != "" && !query.ValidID(grantedBy) {
		return 0, &ValidationError{Field: "granted_by", Message: "must be a valid id"}
	}

	err := db.withTx(ctx, operation, func(tx *sql.Tx) error {
		if err := checkReferences(ctx, tx, "auth_users", "auth user", userIDs); err != nil {
			return err
		}
		if err := checkReferences(ctx, tx, "posts", "post", postIDs); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, upsertGrant)
		if err != nil {
			return fmt.Errorf("failed to prepare grant: %w", err)
		}
		defer stmt.Close()

		for _, pair := range pairs {
			if _, err := stmt.ExecContext(ctx, pair[0], pair[1], nullableID(grantedBy)); err != nil {
				return fmt.Errorf("failed to grant access: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	db.logger.WithField("operation", operation).Infof("Granted %d post access entries", len(pairs))
	return len(pairs), nil
}

// checkReferences returns a ReferenceError naming every id absent from
// table. Malformed ids are reported as missing.
func checkReferences(ctx context.Context, q querier, table, kind string, ids []string) error {
	valid := make([]string, 0, len(ids))
	var missing []string
	for _, id := range ids {
		if query.ValidID(id) {
			valid = append(valid, id)
		} else {
			missing = append(missing, id)
		}
	}

	found := make(map[string]bool, len(valid))
	if len(valid) > 0 {
		rows, err := q.QueryContext(ctx,
			`SELECT id::text FROM `+table+` WHERE id = ANY($1::uuid[])`, pq.Array(valid))
		if err != nil {
			return fmt.Errorf("failed to check %s references: %w", kind, err)
		}
		defer rows.Close()
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				return fmt.Errorf("failed to scan %s reference: %w", kind, err)
			}
			found[id] = true
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to read %s references: %w", kind, err)
		}
	}

	for _, id := range valid {
		if !found[query.NormalizeID(id)] {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return &ReferenceError{Kind: kind, Missing: missing}
	}
	return nil
}

func requireID(field, id string) error {
	if id == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	if !query.ValidID(id) {
		return &ValidationError{Field: field, Message: "must be a valid id"}
	}
	return nil
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = query.NormalizeID(id)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
