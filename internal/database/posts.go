package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"sentiment-dashboard/internal/database/models"
	"sentiment-dashboard/internal/database/query"
	"sentiment-dashboard/internal/monitoring"
	"sentiment-dashboard/pkg/types"
)

const postSelect = `
	SELECT p.id, p.page_id, p.url, p.content, p.posted_at, p.created_at,
	       cc.comment_count, rc.reaction_count,
	       pg.id, pg.url, pg.name, pg.created_at
	FROM posts p
	LEFT JOIN pages pg ON pg.id = p.page_id
	CROSS JOIN LATERAL (SELECT COUNT(*) AS comment_count FROM comments c WHERE c.post_id = p.id) cc
	CROSS JOIN LATERAL (SELECT COUNT(*) AS reaction_count FROM reactions r WHERE r.post_id = p.id) rc`

const postCountSelect = `
	SELECT COUNT(*)
	FROM posts p
	LEFT JOIN pages pg ON pg.id = p.page_id`

var postOrderColumns = query.OrderMap{
	"created_at":       "p.created_at",
	"posted_at":        "COALESCE(p.posted_at, p.created_at)",
	"content":          "p.content",
	"url":              "p.url",
	"comment_count":    "cc.comment_count",
	"reaction_count":   "rc.reaction_count",
	"engagement_score": "(cc.comment_count + rc.reaction_count)",
}

// latestPostSentimentMatch matches the category or label of the newest
// post-level sentiment. Posts with no sentiment row never match.
func latestPostSentimentMatch(b *query.Builder, postColumn, sentiment string) string {
	ph := b.Arg(strings.ToLower(sentiment))
	return fmt.Sprintf(`EXISTS (
		SELECT 1 FROM (
			SELECT s.sentiment, s.sentiment_category
			FROM sentiments s
			WHERE s.post_id = %s AND s.comment_id IS NULL
			ORDER BY s.created_at DESC, s.id DESC
			LIMIT 1
		) latest
		WHERE LOWER(latest.sentiment_category) = %s OR LOWER(latest.sentiment) = %s
	)`, postColumn, ph, ph)
}

func postFilters(b *query.Builder, opts types.PostQueryOptions, viewer types.Viewer) {
	b.AddUUIDEquals("p.page_id", opts.PageID)
	b.AddEquals("pg.url", opts.PageURL)
	b.AddEquals("pg.name", opts.PageName)
	b.AddEquals("p.url", opts.URL)
	b.AddContains("p.content", opts.Search)
	if opts.Sentiment != "" {
		b.AddClause(latestPostSentimentMatch(b, "p.id", opts.Sentiment))
	}
	b.AddClause(postAccessClause(b, "p.id", viewer))
}

func scanPosts(ctx context.Context, q querier, stmt string, args ...interface{}) ([]*models.Post, error) {
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query posts: %w", err)
	}
	defer rows.Close()

	posts := []*models.Post{}
	for rows.Next() {
		post := &models.Post{}
		var comments, reactions int
		var pageID, pageURL, pageName sql.NullString
		var pageCreated sql.NullTime
		err := rows.Scan(
			&post.ID, &post.PageID, &post.URL, &post.Content, &post.PostedAt, &post.CreatedAt,
			&comments, &reactions,
			&pageID, &pageURL, &pageName, &pageCreated,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		post.SetCounts(comments, reactions)
		if pageID.Valid {
			post.Page = &models.Page{ID: pageID.String, CreatedAt: pageCreated.Time}
			if pageURL.Valid {
				post.Page.URL = &pageURL.String
			}
			if pageName.Valid {
				post.Page.Name = &pageName.String
			}
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func postIDs(posts []*models.Post) []string {
	ids := make([]string, len(posts))
	for i, p := range posts {
		ids[i] = p.ID
	}
	return ids
}

func attachPostRelations(ctx context.Context, q querier, posts []*models.Post, opts types.PostQueryOptions) error {
	if !opts.IncludePage {
		for _, p := range posts {
			p.Page = nil
		}
	}
	if len(posts) == 0 {
		return nil
	}
	ids := postIDs(posts)

	if opts.IncludeComments {
		grouped, err := loadCommentsByPost(ctx, q, ids)
		if err != nil {
			return err
		}
		for _, p := range posts {
			p.Comments = nonNilComments(grouped[p.ID])
		}
	}
	if opts.IncludeSentiments {
		grouped, err := loadPostSentiments(ctx, q, ids)
		if err != nil {
			return err
		}
		for _, p := range posts {
			p.Sentiments = nonNilSentiments(grouped[p.ID])
		}
	}
	if opts.IncludeReactions {
		grouped, err := loadPostReactions(ctx, q, ids)
		if err != nil {
			return err
		}
		for _, p := range posts {
			p.Reactions = nonNilReactions(grouped[p.ID])
		}
	}
	return nil
}

// FindAllPostsWithAccess lists the posts visible to viewer.
func (db *DB) FindAllPostsWithAccess(ctx context.Context, viewer types.Viewer, opts types.PostQueryOptions) ([]*models.Post, error) {
	opts.ListOptions = opts.ListOptions.Normalize()

	var posts []*models.Post
	err := db.withConn(ctx, "find_posts", func(q querier) error {
		b := query.NewBuilder()
		postFilters(b, opts, viewer)
		where, _ := b.BuildWithPrefix()
		order := query.ResolveOrder(postOrderColumns, opts.OrderBy, "created_at", opts.OrderDirection, "p.id")
		page := b.Paginate(opts.ListOptions)

		var err error
		posts, err = scanPosts(ctx, q, postSelect+"\n"+where+"\n"+order+"\n"+page, b.Args()...)
		if err != nil {
			return err
		}
		return attachPostRelations(ctx, q, posts, opts)
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// CountPostsWithAccess returns the total matching posts, ignoring pagination.
func (db *DB) CountPostsWithAccess(ctx context.Context, viewer types.Viewer, opts types.PostQueryOptions) (int, error) {
	var count int
	err := db.withConn(ctx, "count_posts", func(q querier) error {
		b := query.NewBuilder()
		postFilters(b, opts, viewer)
		where, args := b.BuildWithPrefix()
		return q.QueryRowContext(ctx, postCountSelect+"\n"+where, args...).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get posts count: %w", err)
	}
	return count, nil
}

// FindPostByIDWithAccess returns ErrNotFound when the post is missing or hidden.
func (db *DB) FindPostByIDWithAccess(ctx context.Context, id string, viewer types.Viewer, opts types.PostQueryOptions) (*models.Post, error) {
	if !query.ValidID(id) {
		return nil, ErrNotFound
	}
	allowed, err := db.CanAccessPost(ctx, id, viewer)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrNotFound
	}

	var posts []*models.Post
	err = db.withConn(ctx, "find_post", func(q querier) error {
		var err error
		posts, err = scanPosts(ctx, q, postSelect+"\nWHERE p.id = $1", id)
		if err != nil {
			return err
		}
		return attachPostRelations(ctx, q, posts, opts)
	})
	if err != nil {
		return nil, err
	}
	if len(posts) == 0 {
		return nil, ErrNotFound
	}
	return posts[0], nil
}

// visiblePost reports whether the post exists and the viewer may see it.
// Admins only need the post to exist.
func visiblePost(ctx context.Context, q querier, postID string, viewer types.Viewer) (bool, error) {
	if !query.ValidID(postID) {
		return false, nil
	}
	b := query.NewBuilder()
	idArg := b.Arg(postID)
	access := orTrue(postAccessClause(b, "p.id", viewer))

	var ok bool
	err := q.QueryRowContext(ctx, fmt.Sprintf(
		"SELECT EXISTS (SELECT 1 FROM posts p WHERE p.id = %s AND %s)", idArg, access), b.Args()...).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check post visibility: %w", err)
	}
	if !ok && !viewer.IsAdmin() {
		monitoring.RecordAccessDenied("post")
	}
	return ok, nil
}

func nonNilComments(c []*models.Comment) []*models.Comment {
	if c == nil {
		return []*models.Comment{}
	}
	return c
}

func nonNilSentiments(s []*models.Sentiment) []*models.Sentiment {
	if s == nil {
		return []*models.Sentiment{}
	}
	return s
}

func nonNilReactions(r []*models.Reaction) []*models.Reaction {
	if r == nil {
		return []*models.Reaction{}
	}
	return r
}
