package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sentiment-dashboard/internal/database/models"
)

// SeedSummary reports how many rows SeedDemoData inserted.
type SeedSummary struct {
	Pages      int `json:"pages"`
	Posts      int `json:"posts"`
	Users      int `json:"users"`
	Comments   int `json:"comments"`
	Sentiments int `json:"sentiments"`
	Reactions  int `json:"reactions"`
}

type seedSentiment struct {
	label      string
	confidence float64
	polarity   float64
}

func (s seedSentiment) probabilities() models.Probabilities {
	rest := (1 - s.confidence) / 2
	p := models.Probabilities{
		models.SentimentPositive: rest,
		models.SentimentNegative: rest,
		models.SentimentNeutral:  rest,
	}
	p[s.label] = s.confidence
	return p
}

type seedComment struct {
	user      int
	content   string
	sentiment seedSentiment
	reactions []string
}

type seedPost struct {
	page      int
	content   string
	age       time.Duration
	sentiment seedSentiment
	reactions []string
	comments  []seedComment
}

var (
	seedPages = []struct{ name, url string }{
		{"City News", "https://www.facebook.com/citynews"},
		{"Local Sports", "https://www.facebook.com/localsports"},
	}
	seedUsers = []struct{ profile, name string }{
		{"100001", "Alice Tan"},
		{"100002", "Budi Santoso"},
		{"100003", "Chen Wei"},
		{"100004", "Dewi Lestari"},
	}
	seedPosts = []seedPost{
		{
			page: 0, content: "New park opens downtown this weekend", age: 2 * time.Hour,
			sentiment: seedSentiment{models.SentimentPositive, 0.92, 0.8},
			reactions: []string{"like", "love", "love"},
			comments: []seedComment{
				{0, "Finally! Can't wait to visit", seedSentiment{models.SentimentPositive, 0.88, 0.7}, []string{"like"}},
				{1, "Parking will be a nightmare", seedSentiment{models.SentimentNegative, 0.75, -0.5}, nil},
			},
		},
		{
			page: 0, content: "Road closures expected on Main Street", age: 20 * time.Hour,
			sentiment: seedSentiment{models.SentimentNegative, 0.81, -0.4},
			reactions: []string{"angry", "sad"},
			comments: []seedComment{
				{2, "How long will this last?", seedSentiment{models.SentimentNeutral, 0.66, 0.0}, nil},
			},
		},
		{
			page: 1, content: "Home team wins the regional final", age: 3 * 24 * time.Hour,
			sentiment: seedSentiment{models.SentimentPositive, 0.95, 0.9},
			reactions: []string{"haha", "wow", "like", "love"},
			comments: []seedComment{
				{0, "What a match", seedSentiment{models.SentimentPositive, 0.9, 0.85}, []string{"love"}},
				{3, "Referee was terrible though", seedSentiment{models.SentimentNegative, 0.7, -0.6}, []string{"haha"}},
				{1, "See you at the parade", seedSentiment{models.SentimentPositive, 0.8, 0.6}, nil},
			},
		},
		{
			page: 1, content: "Training schedule for next season released", age: 10 * 24 * time.Hour,
			sentiment: seedSentiment{models.SentimentNeutral, 0.7, 0.05},
		},
	}
)

// SeedDemoData inserts a small fixed dataset in one transaction. Ids are
// generated fresh so it can run more than once.
func (db *DB) SeedDemoData(ctx context.Context) (*SeedSummary, error) {
	summary := &SeedSummary{}
	now := time.Now().UTC()

	err := db.withTx(ctx, "seed_demo_data", func(tx *sql.Tx) error {
		pageIDs := make([]string, len(seedPages))
		for i, pg := range seedPages {
			pageIDs[i] = uuid.NewString()
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO pages (id, url, name, created_at) VALUES ($1, $2, $3, $4)`,
				pageIDs[i], pg.url, pg.name, now.Add(-30*24*time.Hour)); err != nil {
				return fmt.Errorf("failed to seed page: %w", err)
			}
			summary.Pages++
		}

		userIDs := make([]string, len(seedUsers))
		for i, u := range seedUsers {
			userIDs[i] = uuid.NewString()
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO users (id, profile_id, name) VALUES ($1, $2, $3)`,
				userIDs[i], u.profile, u.name); err != nil {
				return fmt.Errorf("failed to seed user: %w", err)
			}
			summary.Users++
		}

		for i, p := range seedPosts {
			postID := uuid.NewString()
			postedAt := now.Add(-p.age)
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO posts (id, page_id, url, content, posted_at, created_at) VALUES ($1, $2, $3, $4, $5, $5)`,
				postID, pageIDs[p.page], fmt.Sprintf("%s/posts/%d", seedPages[p.page].url, i+1), p.content, postedAt); err != nil {
				return fmt.Errorf("failed to seed post: %w", err)
			}
			summary.Posts++

			if err := seedSentimentRow(ctx, tx, &postID, nil, p.sentiment, postedAt); err != nil {
				return err
			}
			summary.Sentiments++

			for _, rt := range p.reactions {
				r := models.Reaction{PostID: &postID, ReactionType: rt}
				if err := seedReactionRow(ctx, tx, r, postedAt); err != nil {
					return err
				}
				summary.Reactions++
			}

			for j, c := range p.comments {
				commentID := uuid.NewString()
				commentedAt := postedAt.Add(time.Duration(j+1) * 10 * time.Minute)
				if _, err := tx.ExecContext(ctx,
					`INSERT INTO comments (id, post_id, user_id, content, created_at) VALUES ($1, $2, $3, $4, $5)`,
					commentID, postID, userIDs[c.user], c.content, commentedAt); err != nil {
					return fmt.Errorf("failed to seed comment: %w", err)
				}
				summary.Comments++

				if err := seedSentimentRow(ctx, tx, nil, &commentID, c.sentiment, commentedAt); err != nil {
					return err
				}
				summary.Sentiments++

				for _, rt := range c.reactions {
					reactor := userIDs[(c.user+1)%len(userIDs)]
					r := models.Reaction{UserID: &reactor, CommentID: &commentID, ReactionType: rt}
					if err := seedReactionRow(ctx, tx, r, commentedAt); err != nil {
						return err
					}
					summary.Reactions++
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	db.logger.Infof("Seeded %d pages, %d posts, %d comments, %d sentiments",
		summary.Pages, summary.Posts, summary.Comments, summary.Sentiments)
	return summary, nil
}

func seedSentimentRow(ctx context.Context, tx *sql.Tx, postID, commentID *string, s seedSentiment, at time.Time) error {
	row := models.Sentiment{
		PostID:            postID,
		CommentID:         commentID,
		Sentiment:         s.label,
		SentimentCategory: s.label,
		Confidence:        s.confidence,
		Polarity:          s.polarity,
		Probabilities:     s.probabilities(),
	}
	if err := row.Validate(); err != nil {
		return fmt.Errorf("invalid seed sentiment: %w", err)
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO sentiments (post_id, comment_id, sentiment, sentiment_category, confidence, polarity, probabilities, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		row.PostID, row.CommentID, row.Sentiment, row.SentimentCategory, row.Confidence, row.Polarity, row.Probabilities, at)
	if err != nil {
		return fmt.Errorf("failed to seed sentiment: %w", err)
	}
	return nil
}

func seedReactionRow(ctx context.Context, tx *sql.Tx, r models.Reaction, at time.Time) error {
	if err := r.Validate(); err != nil {
		return fmt.Errorf("invalid seed reaction: %w", err)
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO reactions (user_id, post_id, comment_id, reaction_type, created_at) VALUES ($1, $2, $3, $4, $5)`,
		r.UserID, r.PostID, r.CommentID, r.ReactionType, at)
	if err != nil {
		return fmt.Errorf("failed to seed reaction: %w", err)
	}
	return nil
}

// ClearData removes all scraped content and every grant. Auth users and
// scrape jobs are kept.
func (db *DB) ClearData(ctx context.Context) error {
	tables := []string{"reactions", "sentiments", "comments", "user_post_access", "posts", "users", "pages"}

	err := db.withTx(ctx, "clear_data", func(tx *sql.Tx) error {
		for _, table := range tables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	db.logger.Warn("All scraped content deleted")
	return nil
}
