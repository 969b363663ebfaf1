package models

import "time"

// User is a scraped social identity, not a dashboard login.
type User struct {
	ID        string    `json:"id" db:"id"`
	ProfileID *string   `json:"profile_id" db:"profile_id"`
	Name      *string   `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	CommentCount *int       `json:"comment_count,omitempty"`
	Stats        *UserStats `json:"stats,omitempty"`
}

type UserStats struct {
	TotalComments  int                `json:"total_comments"`
	PostsCommented int                `json:"posts_commented"`
	TotalReactions int                `json:"total_reactions"`
	Sentiment      SentimentBreakdown `json:"sentiment"`
	TopPages       []PageActivity     `json:"top_pages"`
}

type PageActivity struct {
	PageID       string             `json:"page_id"`
	PageName     *string            `json:"page_name"`
	CommentCount int                `json:"comment_count"`
	Sentiment    SentimentBreakdown `json:"sentiment"`
}

// AuthUser is a dashboard login.
type AuthUser struct {
	ID           string    `json:"id" db:"id"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"`
	Role         string    `json:"role" db:"role"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

type AccessGrant struct {
	ID         string    `json:"id" db:"id"`
	AuthUserID string    `json:"auth_user_id" db:"auth_user_id"`
	PostID     string    `json:"post_id" db:"post_id"`
	GrantedAt  time.Time `json:"granted_at" db:"granted_at"`
	GrantedBy  *string   `json:"granted_by" db:"granted_by"`

	Username    *string `json:"username,omitempty"`
	Email       *string `json:"email,omitempty"`
	PostURL     *string `json:"post_url,omitempty"`
	PostContent *string `json:"post_content,omitempty"`
}

const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

type ScrapeJob struct {
	ID          string    `json:"id" db:"id"`
	RequestedBy string    `json:"requested_by" db:"requested_by"`
	TargetURL   string    `json:"target_url" db:"target_url"`
	TargetType  string    `json:"target_type" db:"target_type"`
	MaxPosts    int       `json:"max_posts" db:"max_posts"`
	Status      string    `json:"status" db:"status"`
	ExecutionID *string   `json:"execution_id" db:"execution_id"`
	Error       *string   `json:"error" db:"error"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
