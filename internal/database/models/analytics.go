package models

import "time"

type Commenter struct {
	UserID        string     `json:"user_id"`
	ProfileID     *string    `json:"profile_id"`
	Name          *string    `json:"name"`
	CommentCount  int        `json:"comment_count"`
	LastCommentAt *time.Time `json:"last_comment_at"`
}

type UserPostActivity struct {
	PostID        string     `json:"post_id"`
	URL           *string    `json:"url"`
	Content       *string    `json:"content"`
	PageID        *string    `json:"page_id"`
	PageName      *string    `json:"page_name"`
	PostedAt      *time.Time `json:"posted_at"`
	CommentCount  int        `json:"comment_count"`
	LastCommentAt *time.Time `json:"last_comment_at"`
}

type CategorySummary struct {
	SentimentCategory string   `json:"sentiment_category"`
	Count             int      `json:"count"`
	AvgConfidence     float64  `json:"avg_confidence"`
	AvgPolarity       *float64 `json:"avg_polarity"`
}

type SentimentTotal struct {
	TotalSentiments int      `json:"total_sentiments"`
	AvgConfidence   float64  `json:"avg_confidence"`
	AvgPolarity     *float64 `json:"avg_polarity"`
}

type SentimentSummary struct {
	PostID     string            `json:"post_id"`
	ByCategory []CategorySummary `json:"by_category"`
	Total      SentimentTotal    `json:"total"`
}

// TrendBucket is one slot of a time-bucketed sentiment trend.
type TrendBucket struct {
	Time   time.Time      `json:"time"`
	Counts map[string]int `json:"counts"`
}

type PageSummary struct {
	TotalPages         int     `json:"total_pages"`
	ActivePages7d      int     `json:"active_pages_7d"`
	NewPages30d        int     `json:"new_pages_30d"`
	AvgPostsPerPage    float64 `json:"avg_posts_per_page"`
	AvgCommentsPerPage float64 `json:"avg_comments_per_page"`
}

type PostSummary struct {
	PostsLast24h           int     `json:"posts_last_24h"`
	PostsLast7d            int     `json:"posts_last_7d"`
	AvgCommentsPerPost     float64 `json:"avg_comments_per_post"`
	AvgReactionsPerPost    float64 `json:"avg_reactions_per_post"`
	UniqueCommenters       int     `json:"unique_commenters"`
	AvgSentimentConfidence float64 `json:"avg_sentiment_confidence"`
}

type DashboardStats struct {
	TotalPosts        int            `json:"total_posts"`
	SentimentCounts   map[string]int `json:"sentiment_counts"`
	AverageEngagement float64        `json:"average_engagement"`
	Trend             []TrendBucket  `json:"trend"`
	PageSummary       PageSummary    `json:"page_summary"`
	PostSummary       PostSummary    `json:"post_summary"`
	GeneratedAt       time.Time      `json:"generated_at"`
}
