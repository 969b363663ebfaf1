package models

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

type Page struct {
	ID        string    `json:"id" db:"id"`
	URL       *string   `json:"url" db:"url"`
	Name      *string   `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	PostCount    *int    `json:"post_count,omitempty"`
	CommentCount *int    `json:"comment_count,omitempty"`
	Posts        []*Post `json:"posts"`
}

type Post struct {
	ID        string     `json:"id" db:"id"`
	PageID    *string    `json:"page_id" db:"page_id"`
	URL       *string    `json:"url" db:"url"`
	Content   *string    `json:"content" db:"content"`
	PostedAt  *time.Time `json:"posted_at" db:"posted_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`

	CommentCount    int `json:"comment_count"`
	ReactionCount   int `json:"reaction_count"`
	EngagementScore int `json:"engagement_score"`

	Page       *Page        `json:"page,omitempty"`
	Comments   []*Comment   `json:"comments"`
	Sentiments []*Sentiment `json:"sentiments"`
	Reactions  []*Reaction  `json:"reactions"`
}

// SetCounts stores the derived counters and keeps the engagement score in sync.
func (p *Post) SetCounts(comments, reactions int) {
	if comments < 0 {
		comments = 0
	}
	if reactions < 0 {
		reactions = 0
	}
	p.CommentCount = comments
	p.ReactionCount = reactions
	p.EngagementScore = comments + reactions
}

type Comment struct {
	ID        string    `json:"id" db:"id"`
	PostID    *string   `json:"post_id" db:"post_id"`
	UserID    *string   `json:"user_id" db:"user_id"`
	URL       *string   `json:"url" db:"url"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	ReactionCount int `json:"reaction_count"`

	User       *User        `json:"user,omitempty"`
	Post       *Post        `json:"post,omitempty"`
	Sentiments []*Sentiment `json:"sentiments"`
	Reactions  []*Reaction  `json:"reactions"`
}

type Reaction struct {
	ID           string    `json:"id" db:"id"`
	UserID       *string   `json:"user_id" db:"user_id"`
	PostID       *string   `json:"post_id" db:"post_id"`
	CommentID    *string   `json:"comment_id" db:"comment_id"`
	ReactionType string    `json:"reaction_type" db:"reaction_type"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

var ReactionTypes = []string{"like", "love", "sad", "angry", "haha", "wow"}

func ValidReactionType(t string) bool {
	for _, rt := range ReactionTypes {
		if rt == t {
			return true
		}
	}
	return false
}

var ErrTargetExclusivity = errors.New("exactly one of post_id and comment_id must be set")

func (r *Reaction) Validate() error {
	if (r.PostID == nil) == (r.CommentID == nil) {
		return ErrTargetExclusivity
	}
	if !ValidReactionType(r.ReactionType) {
		return fmt.Errorf("unknown reaction type %q", r.ReactionType)
	}
	return nil
}

// Probabilities maps a sentiment label to its probability, stored as JSONB.
type Probabilities map[string]float64

func (p Probabilities) Value() (driver.Value, error) {
	if len(p) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *Probabilities) Scan(value interface{}) error {
	if value == nil {
		*p = Probabilities{}
		return nil
	}

	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}

	out := Probabilities{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*p = out
	return nil
}
