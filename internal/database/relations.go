package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"sentiment-dashboard/internal/database/models"
)

// Each loader issues one batched statement over all ids and groups the rows
// by foreign key in memory.

const commentColumns = `c.id, c.post_id, c.user_id, c.url, c.content, c.created_at,
	(SELECT COUNT(*) FROM reactions r WHERE r.comment_id = c.id) AS reaction_count`

const sentimentColumns = `s.id, s.post_id, s.comment_id, s.sentiment, s.sentiment_category,
	s.confidence, s.polarity, s.probabilities, s.created_at`

const reactionColumns = `r.id, r.user_id, r.post_id, r.comment_id, r.reaction_type, r.created_at`

func scanComment(rows *sql.Rows) (*models.Comment, error) {
	c := &models.Comment{}
	err := rows.Scan(&c.ID, &c.PostID, &c.UserID, &c.URL, &c.Content, &c.CreatedAt, &c.ReactionCount)
	if err != nil {
		return nil, fmt.Errorf("failed to scan comment: %w", err)
	}
	return c, nil
}

func scanSentiment(rows *sql.Rows) (*models.Sentiment, error) {
	s := &models.Sentiment{}
	err := rows.Scan(&s.ID, &s.PostID, &s.CommentID, &s.Sentiment, &s.SentimentCategory,
		&s.Confidence, &s.Polarity, &s.Probabilities, &s.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan sentiment: %w", err)
	}
	return s, nil
}

func scanReaction(rows *sql.Rows) (*models.Reaction, error) {
	r := &models.Reaction{}
	err := rows.Scan(&r.ID, &r.UserID, &r.PostID, &r.CommentID, &r.ReactionType, &r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan reaction: %w", err)
	}
	return r, nil
}

func derefID(id *string) string {
	if id == nil {
		return ""
	}
	return *id
}

func loadCommentsByPost(ctx context.Context, q querier, postIDs []string) (map[string][]*models.Comment, error) {
	grouped := make(map[string][]*models.Comment)
	if len(postIDs) == 0 {
		return grouped, nil
	}

	rows, err := q.QueryContext(ctx, `
		SELECT `+commentColumns+`
		FROM comments c
		WHERE c.post_id = ANY($1::uuid[])
		ORDER BY c.created_at ASC, c.id ASC`, pq.Array(postIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query comments by post: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		key := derefID(c.PostID)
		grouped[key] = append(grouped[key], c)
	}
	return grouped, rows.Err()
}

// loadPostSentiments returns post-level sentiments only, newest first.
func loadPostSentiments(ctx context.Context, q querier, postIDs []string) (map[string][]*models.Sentiment, error) {
	grouped := make(map[string][]*models.Sentiment)
	if len(postIDs) == 0 {
		return grouped, nil
	}

	rows, err := q.QueryContext(ctx, `
		SELECT `+sentimentColumns+`
		FROM sentiments s
		WHERE s.post_id = ANY($1::uuid[]) AND s.comment_id IS NULL
		ORDER BY s.created_at DESC, s.id DESC`, pq.Array(postIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query sentiments by post: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanSentiment(rows)
		if err != nil {
			return nil, err
		}
		key := derefID(s.PostID)
		grouped[key] = append(grouped[key], s)
	}
	return grouped, rows.Err()
}

func loadCommentSentiments(ctx context.Context, q querier, commentIDs []string) (map[string][]*models.Sentiment, error) {
	grouped := make(map[string][]*models.Sentiment)
	if len(commentIDs) == 0 {
		return grouped, nil
	}

	rows, err := q.QueryContext(ctx, `
		SELECT `+sentimentColumns+`
		FROM sentiments s
		WHERE s.comment_id = ANY($1::uuid[])
		ORDER BY s.created_at DESC, s.id DESC`, pq.Array(commentIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query sentiments by comment: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanSentiment(rows)
		if err != nil {
			return nil, err
		}
		key := derefID(s.CommentID)
		grouped[key] = append(grouped[key], s)
	}
	return grouped, rows.Err()
}

func loadPostReactions(ctx context.Context, q querier, postIDs []string) (map[string][]*models.Reaction, error) {
	return loadReactions(ctx, q, "post_id", postIDs)
}

func loadCommentReactions(ctx context.Context, q querier, commentIDs []string) (map[string][]*models.Reaction, error) {
	return loadReactions(ctx, q, "comment_id", commentIDs)
}

// loadReactions groups reactions by column, which is one of the two constant
// target columns above.
func loadReactions(ctx context.Context, q querier, column string, ids []string) (map[string][]*models.Reaction, error) {
	grouped := make(map[string][]*models.Reaction)
	if len(ids) == 0 {
		return grouped, nil
	}

	rows, err := q.QueryContext(ctx, `
		SELECT `+reactionColumns+`
		FROM reactions r
		WHERE r.`+column+` = ANY($1::uuid[])
		ORDER BY r.created_at ASC, r.id ASC`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query reactions by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		r, err := scanReaction(rows)
		if err != nil {
			return nil, err
		}
		key := derefID(r.PostID)
		if column == "comment_id" {
			key = derefID(r.CommentID)
		}
		grouped[key] = append(grouped[key], r)
	}
	return grouped, rows.Err()
}

func loadUsers(ctx context.Context, q querier, userIDs []string) (map[string]*models.User, error) {
	users := make(map[string]*models.User)
	if len(userIDs) == 0 {
		return users, nil
	}

	rows, err := q.QueryContext(ctx, `
		SELECT u.id, u.profile_id, u.name, u.created_at
		FROM users u
		WHERE u.id = ANY($1::uuid[])`, pq.Array(userIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to query users by id: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		u := &models.User{}
		if err := rows.Scan(&u.ID, &u.ProfileID, &u.Name, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users[u.ID] = u
	}
	return users, rows.Err()
}

func uniqueIDs(ids []*string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == nil {
			continue
		}
		if _, ok := seen[*id]; ok {
			continue
		}
		seen[*id] = struct{}{}
		out = append(out, *id)
	}
	return out
}
