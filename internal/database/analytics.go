package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"sentiment-dashboard/internal/database/models"
	"sentiment-dashboard/internal/database/query"
	"sentiment-dashboard/internal/utils"
	"sentiment-dashboard/pkg/types"
)

var commenterOrderColumns = query.OrderMap{
	"comment_count":   "COUNT(c.id)",
	"last_comment_at": "MAX(c.created_at)",
	"name":            "u.name",
}

var userPostOrderColumns = query.OrderMap{
	"comment_count":   "COUNT(c.id)",
	"last_comment_at": "MAX(c.created_at)",
	"posted_at":       "p.posted_at",
	"created_at":      "p.created_at",
}

// PostCommenters groups a visible post's comments by commenter.
func (db *DB) PostCommenters(ctx context.Context, postID string, viewer types.Viewer, opts types.CommenterQueryOptions) ([]models.Commenter, error) {
	opts.ListOptions = opts.ListOptions.Normalize()

	commenters := []models.Commenter{}
	err := db.withConn(ctx, "post_commenters", func(q querier) error {
		ok, err := visiblePost(ctx, q, postID, viewer)
		if err != nil {
			return err
		}
		if !ok {
			return errHidden
		}

		b := query.NewBuilder()
		b.AddClause("c.post_id = " + b.Arg(postID))
		where, _ := b.BuildWithPrefix()
		order := query.ResolveOrder(commenterOrderColumns, opts.OrderBy, "comment_count", opts.OrderDirection, "u.id")
		page := b.Paginate(opts.ListOptions)

		rows, err := q.QueryContext(ctx, `
			SELECT u.id, u.profile_id, u.name, COUNT(c.id), MAX(c.created_at)
			FROM comments c
			JOIN users u ON u.id = c.user_id
			`+where+`
			GROUP BY u.id, u.profile_id, u.name
			`+order+"\n"+page, b.Args()...)
		if err != nil {
			return fmt.Errorf("failed to query post commenters: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var cm models.Commenter
			var last sql.NullTime
			if err := rows.Scan(&cm.UserID, &cm.ProfileID, &cm.Name, &cm.CommentCount, &last); err != nil {
				return fmt.Errorf("failed to scan commenter: %w", err)
			}
			if last.Valid {
				cm.LastCommentAt = &last.Time
			}
			commenters = append(commenters, cm)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, notFoundIfHidden(err)
	}
	return commenters, nil
}

// UserCommentedPosts lists the posts a scraped user commented on, limited to
// posts the caller can see. Counts are the target user's own comments.
func (db *DB) UserCommentedPosts(ctx context.Context, userID string, viewer types.Viewer, opts types.UserPostQueryOptions) ([]models.UserPostActivity, error) {
	opts.ListOptions = opts.ListOptions.Normalize()
	if !query.ValidID(userID) {
		return nil, ErrNotFound
	}

	activity := []models.UserPostActivity{}
	err := db.withConn(ctx, "user_commented_posts", func(q querier) error {
		ok, err := canSeeUser(ctx, q, userID, viewer)
		if err != nil {
			return err
		}
		if !ok {
			return errHidden
		}

		b := query.NewBuilder()
		b.AddClause("c.user_id = " + b.Arg(userID))
		b.AddClause(postAccessClause(b, "p.id", viewer))
		where, _ := b.BuildWithPrefix()
		order := query.ResolveOrder(userPostOrderColumns, opts.OrderBy, "last_comment_at", opts.OrderDirection, "p.id")
		page := b.Paginate(opts.ListOptions)

		rows, err := q.QueryContext(ctx, `
			SELECT p.id, p.url, p.content, p.page_id, pg.name, p.posted_at, COUNT(c.id), MAX(c.created_at)
			FROM comments c
			JOIN posts p ON p.id = c.post_id
			LEFT JOIN pages pg ON pg.id = p.page_id
			`+where+`
			GROUP BY p.id, pg.name
			`+order+"\n"+page, b.Args()...)
		if err != nil {
			return fmt.Errorf("failed to query user commented posts: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var a models.UserPostActivity
			var last sql.NullTime
			err := rows.Scan(&a.PostID, &a.URL, &a.Content, &a.PageID, &a.PageName, &a.PostedAt, &a.CommentCount, &last)
			if err != nil {
				return fmt.Errorf("failed to scan user post activity: %w", err)
			}
			if last.Valid {
				a.LastCommentAt = &last.Time
			}
			activity = append(activity, a)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, notFoundIfHidden(err)
	}
	return activity, nil
}

// PostSentimentSummary aggregates post-level and comment-level sentiments of
// one post together.
func (db *DB) PostSentimentSummary(ctx context.Context, postID string, viewer types.Viewer) (*models.SentimentSummary, error) {
	summary := &models.SentimentSummary{PostID: postID, ByCategory: []models.CategorySummary{}}

	err := db.withConn(ctx, "post_sentiment_summary", func(q querier) error {
		ok, err := visiblePost(ctx, q, postID, viewer)
		if err != nil {
			return err
		}
		if !ok {
			return errHidden
		}

		rows, err := q.QueryContext(ctx, `
			SELECT s.sentiment_category, COUNT(*), COALESCE(AVG(s.confidence), 0), AVG(s.polarity)
			FROM sentiments s
			LEFT JOIN comments c ON c.id = s.comment_id
			WHERE s.post_id = $1 OR c.post_id = $1
			GROUP BY s.sentiment_category
			ORDER BY COUNT(*) DESC, s.sentiment_category ASC`, postID)
		if err != nil {
			return fmt.Errorf("failed to query sentiment summary: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var cs models.CategorySummary
			var polarity sql.NullFloat64
			if err := rows.Scan(&cs.SentimentCategory, &cs.Count, &cs.AvgConfidence, &polarity); err != nil {
				return fmt.Errorf("failed to scan sentiment summary: %w", err)
			}
			cs.AvgPolarity = nullFloat(polarity)
			summary.ByCategory = append(summary.ByCategory, cs)
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("failed to read sentiment summary: %w", err)
		}

		var polarity sql.NullFloat64
		err = q.QueryRowContext(ctx, `
			SELECT COUNT(*), COALESCE(AVG(s.confidence), 0), AVG(s.polarity)
			FROM sentiments s
			LEFT JOIN comments c ON c.id = s.comment_id
			WHERE s.post_id = $1 OR c.post_id = $1`, postID).
			Scan(&summary.Total.TotalSentiments, &summary.Total.AvgConfidence, &polarity)
		if err != nil {
			return fmt.Errorf("failed to query sentiment total: %w", err)
		}
		summary.Total.AvgPolarity = nullFloat(polarity)
		return nil
	})
	if err != nil {
		return nil, notFoundIfHidden(err)
	}
	return summary, nil
}

// SentimentTrend returns daily post-level category counts for the trailing
// opts.Days UTC days, oldest first, with empty days zero-filled.
func (db *DB) SentimentTrend(ctx context.Context, viewer types.Viewer, opts types.TrendOptions) ([]models.TrendBucket, error) {
	opts = opts.Normalize()
	starts := utils.Buckets(utils.DayStart(time.Now()), 24*time.Hour, opts.Days)

	var rows []trendRow
	err := db.withConn(ctx, "sentiment_trend", func(q querier) error {
		var err error
		rows, err = queryTrendRows(ctx, q, "day", starts[0], viewer)
		return err
	})
	if err != nil {
		return nil, err
	}
	return buildTrend(starts, rows), nil
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
