package database

import (
	"context"
	"fmt"

	"sentiment-dashboard/internal/database/models"
	"sentiment-dashboard/internal/database/query"
	"sentiment-dashboard/pkg/types"
)

const sentimentFrom = `
	FROM sentiments s
	LEFT JOIN comments c ON c.id = s.comment_id`

var sentimentOrderColumns = query.OrderMap{
	"created_at":         "s.created_at",
	"confidence":         "s.confidence",
	"polarity":           "s.polarity",
	"sentiment":          "s.sentiment",
	"sentiment_category": "s.sentiment_category",
}

// sentimentFilters applies the level first; the postId filter follows the
// level so comment-level rows are found through their comment's post.
func sentimentFilters(b *query.Builder, opts types.SentimentQueryOptions, viewer types.Viewer) {
	level := opts.Level
	if level == "" {
		level = types.LevelPost
	}

	switch level {
	case types.LevelPost:
		b.AddClause("s.comment_id IS NULL")
		b.AddUUIDEquals("s.post_id", opts.PostID)
	case types.LevelComment:
		b.AddClause("s.comment_id IS NOT NULL")
		b.AddUUIDEquals("c.post_id", opts.PostID)
	case types.LevelAll:
		if opts.PostID != "" {
			if query.ValidID(opts.PostID) {
				ph := b.Arg(opts.PostID)
				b.AddClause(fmt.Sprintf("(s.post_id = %s OR c.post_id = %s)", ph, ph))
			} else {
				b.AddClause("FALSE")
			}
		}
	}

	b.AddUUIDEquals("s.comment_id", opts.CommentID)
	b.AddEqualFold("s.sentiment", opts.Sentiment)
	b.AddEqualFold("s.sentiment_category", opts.Category)
	if opts.MinConfidence != nil {
		b.AddClause("s.confidence >= " + b.Arg(*opts.MinConfidence))
	}
	b.AddClause(sentimentAccessClause(b, "s", "c", viewer))
}

func querySentiments(ctx context.Context, q querier, stmt string, args ...interface{}) ([]*models.Sentiment, error) {
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sentiments: %w", err)
	}
	defer rows.Close()

	sentiments := []*models.Sentiment{}
	for rows.Next() {
		s, err := scanSentiment(rows)
		if err != nil {
			return nil, err
		}
		sentiments = append(sentiments, s)
	}
	return sentiments, rows.Err()
}

// FindAllSentimentsWithAccess lists sentiments reachable through a visible
// post, either directly or through a comment.
func (db *DB) FindAllSentimentsWithAccess(ctx context.Context, viewer types.Viewer, opts types.SentimentQueryOptions) ([]*models.Sentiment, error) {
	opts.ListOptions = opts.ListOptions.Normalize()

	var sentiments []*models.Sentiment
	err := db.withConn(ctx, "find_sentiments", func(q querier) error {
		b := query.NewBuilder()
		sentimentFilters(b, opts, viewer)
		where, _ := b.BuildWithPrefix()
		order := query.ResolveOrder(sentimentOrderColumns, opts.OrderBy, "created_at", opts.OrderDirection, "s.id")
		page := b.Paginate(opts.ListOptions)

		var err error
		sentiments, err = querySentiments(ctx, q,
			"SELECT "+sentimentColumns+sentimentFrom+"\n"+where+"\n"+order+"\n"+page, b.Args()...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return sentiments, nil
}

func (db *DB) CountSentimentsWithAccess(ctx context.Context, viewer types.Viewer, opts types.SentimentQueryOptions) (int, error) {
	var count int
	err := db.withConn(ctx, "count_sentiments", func(q querier) error {
		b := query.NewBuilder()
		sentimentFilters(b, opts, viewer)
		where, args := b.BuildWithPrefix()
		return q.QueryRowContext(ctx, "SELECT COUNT(*)"+sentimentFrom+"\n"+where, args...).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get sentiments count: %w", err)
	}
	return count, nil
}

func (db *DB) FindSentimentByIDWithAccess(ctx context.Context, id string, viewer types.Viewer) (*models.Sentiment, error) {
	if !query.ValidID(id) {
		return nil, ErrNotFound
	}
	allowed, err := db.CanAccessSentiment(ctx, id, viewer)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrNotFound
	}

	var sentiments []*models.Sentiment
	err = db.withConn(ctx, "find_sentiment", func(q querier) error {
		var err error
		sentiments, err = querySentiments(ctx, q, "SELECT "+sentimentColumns+sentimentFrom+"\nWHERE s.id = $1", id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(sentiments) == 0 {
		return nil, ErrNotFound
	}
	return sentiments[0], nil
}
