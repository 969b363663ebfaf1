package database

import (
	"context"
	"fmt"

	"sentiment-dashboard/internal/database/query"
	"sentiment-dashboard/internal/monitoring"
	"sentiment-dashboard/pkg/types"
)

// postAccessClause returns the condition limiting postColumn to posts the
// viewer was granted. Admins get no condition at all; the role is checked
// here, before any grant SQL is built.
func postAccessClause(b *query.Builder, postColumn string, viewer types.Viewer) string {
	if viewer.IsAdmin() {
		return ""
	}
	if !query.ValidID(viewer.UserID) {
		return "FALSE"
	}
	return fmt.Sprintf(`EXISTS (SELECT 1 FROM user_post_access upa WHERE upa.post_id = %s AND upa.auth_user_id = %s)`,
		postColumn, b.Arg(viewer.UserID))
}

// sentimentAccessClause is the composed form for sentiments: the grant may
// match the sentiment's own post or the post of the comment it targets.
// Expects comments joined as commentAlias.
func sentimentAccessClause(b *query.Builder, sentimentAlias, commentAlias string, viewer types.Viewer) string {
	if viewer.IsAdmin() {
		return ""
	}
	if !query.ValidID(viewer.UserID) {
		return "FALSE"
	}
	return fmt.Sprintf(`EXISTS (SELECT 1 FROM user_post_access upa WHERE upa.auth_user_id = %s AND (upa.post_id = %s.post_id OR upa.post_id = %s.post_id))`,
		b.Arg(viewer.UserID), sentimentAlias, commentAlias)
}

// CanAccessPost reports whether the viewer may see the post.
func (db *DB) CanAccessPost(ctx context.Context, postID string, viewer types.Viewer) (bool, error) {
	if viewer.IsAdmin() {
		return true, nil
	}
	if !query.ValidID(postID) || !query.ValidID(viewer.UserID) {
		return false, nil
	}

	var allowed bool
	err := db.withConn(ctx, "can_access_post", func(q querier) error {
		return q.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM user_post_access
				WHERE post_id = $1 AND auth_user_id = $2
			)`, postID, viewer.UserID).Scan(&allowed)
	})
	if err != nil {
		return false, fmt.Errorf("failed to check post access: %w", err)
	}
	if !allowed {
		monitoring.RecordAccessDenied("post")
	}
	return allowed, nil
}

// CanAccessComment resolves the comment's post and checks the grant in one statement.
func (db *DB) CanAccessComment(ctx context.Context, commentID string, viewer types.Viewer) (bool, error) {
	if viewer.IsAdmin() {
		return true, nil
	}
	if !query.ValidID(commentID) || !query.ValidID(viewer.UserID) {
		return false, nil
	}

	var allowed bool
	err := db.withConn(ctx, "can_access_comment", func(q querier) error {
		return q.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM comments c
				JOIN user_post_access upa ON upa.post_id = c.post_id
				WHERE c.id = $1 AND upa.auth_user_id = $2
			)`, commentID, viewer.UserID).Scan(&allowed)
	})
	if err != nil {
		return false, fmt.Errorf("failed to check comment access: %w", err)
	}
	if !allowed {
		monitoring.RecordAccessDenied("comment")
	}
	return allowed, nil
}

// CanAccessSentiment resolves either the direct post or comment -> post.
func (db *DB) CanAccessSentiment(ctx context.Context, sentimentID string, viewer types.Viewer) (bool, error) {
	if viewer.IsAdmin() {
		return true, nil
	}
	if !query.ValidID(sentimentID) || !query.ValidID(viewer.UserID) {
		return false, nil
	}

	var allowed bool
	err := db.withConn(ctx, "can_access_sentiment", func(q querier) error {
		return q.QueryRowContext(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM sentiments s
				LEFT JOIN comments c ON c.id = s.comment_id
				JOIN user_post_access upa ON upa.post_id = s.post_id OR upa.post_id = c.post_id
				WHERE s.id = $1 AND upa.auth_user_id = $2
			)`, sentimentID, viewer.UserID).Scan(&allowed)
	})
	if err != nil {
		return false, fmt.Errorf("failed to check sentiment access: %w", err)
	}
	if !allowed {
		monitoring.RecordAccessDenied("sentiment")
	}
	return allowed, nil
}
