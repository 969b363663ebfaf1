package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"sentiment-dashboard/internal/database/models"
	"sentiment-dashboard/internal/database/query"
	"sentiment-dashboard/pkg/types"
)

var commentOrderColumns = query.OrderMap{
	"created_at":     "c.created_at",
	"content":        "c.content",
	"reaction_count": "reaction_count",
}

func latestCommentSentimentMatch(b *query.Builder, commentColumn, sentiment string) string {
	ph := b.Arg(strings.ToLower(sentiment))
	return fmt.Sprintf(`EXISTS (
		SELECT 1 FROM (
			SELECT s.sentiment, s.sentiment_category
			FROM sentiments s
			WHERE s.comment_id = %s
			ORDER BY s.created_at DESC, s.id DESC
			LIMIT 1
		) latest
		WHERE LOWER(latest.sentiment_category) = %s OR LOWER(latest.sentiment) = %s
	)`, commentColumn, ph, ph)
}

func commentFilters(b *query.Builder, opts types.CommentQueryOptions, viewer types.Viewer) {
	b.AddUUIDEquals("c.post_id", opts.PostID)
	b.AddUUIDEquals("c.user_id", opts.UserID)
	b.AddContains("c.content", opts.Search)
	if opts.Sentiment != "" {
		b.AddClause(latestCommentSentimentMatch(b, "c.id", opts.Sentiment))
	}
	b.AddClause(postAccessClause(b, "c.post_id", viewer))
}

func queryComments(ctx context.Context, q querier, stmt string, args ...interface{}) ([]*models.Comment, error) {
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer rows.Close()

	comments := []*models.Comment{}
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// loadPostsByID is used for includePost. The caller already knows every
// post it asks for is visible.
func loadPostsByID(ctx context.Context, q querier, ids []string) (map[string]*models.Post, error) {
	byID := make(map[string]*models.Post, len(ids))
	if len(ids) == 0 {
		return byID, nil
	}
	posts, err := scanPosts(ctx, q, postSelect+"\nWHERE p.id = ANY($1::uuid[])", pq.Array(ids))
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		p.Page = nil
		byID[p.ID] = p
	}
	return byID, nil
}

func attachCommentRelations(ctx context.Context, q querier, comments []*models.Comment, opts types.CommentQueryOptions) error {
	if len(comments) == 0 {
		return nil
	}

	ids := make([]string, len(comments))
	userRefs := make([]*string, 0, len(comments))
	postRefs := make([]*string, 0, len(comments))
	for i, c := range comments {
		ids[i] = c.ID
		userRefs = append(userRefs, c.UserID)
		postRefs = append(postRefs, c.PostID)
	}

	if opts.IncludeUser {
		users, err := loadUsers(ctx, q, uniqueIDs(userRefs))
		if err != nil {
			return err
		}
		for _, c := range comments {
			c.User = users[derefID(c.UserID)]
		}
	}
	if opts.IncludePost {
		posts, err := loadPostsByID(ctx, q, uniqueIDs(postRefs))
		if err != nil {
			return err
		}
		for _, c := range comments {
			c.Post = posts[derefID(c.PostID)]
		}
	}
	if opts.IncludeSentiments {
		grouped, err := loadCommentSentiments(ctx, q, ids)
		if err != nil {
			return err
		}
		for _, c := range comments {
			c.Sentiments = nonNilSentiments(grouped[c.ID])
		}
	}
	if opts.IncludeReactions {
		grouped, err := loadCommentReactions(ctx, q, ids)
		if err != nil {
			return err
		}
		for _, c := range comments {
			c.Reactions = nonNilReactions(grouped[c.ID])
		}
	}
	return nil
}

// FindAllCommentsWithAccess lists comments whose post is visible to viewer.
func (db *DB) FindAllCommentsWithAccess(ctx context.Context, viewer types.Viewer, opts types.CommentQueryOptions) ([]*models.Comment, error) {
	opts.ListOptions = opts.ListOptions.Normalize()

	var comments []*models.Comment
	err := db.withConn(ctx, "find_comments", func(q querier) error {
		b := query.NewBuilder()
		commentFilters(b, opts, viewer)
		where, _ := b.BuildWithPrefix()
		order := query.ResolveOrder(commentOrderColumns, opts.OrderBy, "created_at", opts.OrderDirection, "c.id")
		page := b.Paginate(opts.ListOptions)

		var err error
		comments, err = queryComments(ctx, q,
			"SELECT "+commentColumns+"\nFROM comments c\n"+where+"\n"+order+"\n"+page, b.Args()...)
		if err != nil {
			return err
		}
		return attachCommentRelations(ctx, q, comments, opts)
	})
	if err != nil {
		return nil, err
	}
	return comments, nil
}

func (db *DB) CountCommentsWithAccess(ctx context.Context, viewer types.Viewer, opts types.CommentQueryOptions) (int, error) {
	var count int
	err := db.withConn(ctx, "count_comments", func(q querier) error {
		b := query.NewBuilder()
		commentFilters(b, opts, viewer)
		where, args := b.BuildWithPrefix()
		return q.QueryRowContext(ctx, "SELECT COUNT(*) FROM comments c\n"+where, args...).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get comments count: %w", err)
	}
	return count, nil
}

func (db *DB) FindCommentByIDWithAccess(ctx context.Context, id string, viewer types.Viewer, opts types.CommentQueryOptions) (*models.Comment, error) {
	if !query.ValidID(id) {
		return nil, ErrNotFound
	}
	allowed, err := db.CanAccessComment(ctx, id, viewer)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrNotFound
	}

	var comments []*models.Comment
	err = db.withConn(ctx, "find_comment", func(q querier) error {
		var err error
		comments, err = queryComments(ctx, q, "SELECT "+commentColumns+"\nFROM comments c\nWHERE c.id = $1", id)
		if err != nil {
			return err
		}
		return attachCommentRelations(ctx, q, comments, opts)
	})
	if err != nil {
		return nil, err
	}
	if len(comments) == 0 {
		return nil, ErrNotFound
	}
	return comments[0], nil
}
