package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

type Sentiment struct {
	ID                string        `json:"id" db:"id"`
	PostID            *string       `json:"post_id" db:"post_id"`
	CommentID         *string       `json:"comment_id" db:"comment_id"`
	Sentiment         string        `json:"sentiment" db:"sentiment"`
	SentimentCategory string        `json:"sentiment_category" db:"sentiment_category"`
	Confidence        float64       `json:"confidence" db:"confidence"`
	Polarity          float64       `json:"polarity" db:"polarity"`
	Probabilities     Probabilities `json:"probabilities" db:"probabilities"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
}

// Validate checks target exclusivity and value ranges.
func (s *Sentiment) Validate() error {
	if (s.PostID == nil) == (s.CommentID == nil) {
		return ErrTargetExclusivity
	}
	switch strings.ToLower(s.Sentiment) {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
	default:
		return fmt.Errorf("unknown sentiment label %q", s.Sentiment)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("confidence %v out of range [0,1]", s.Confidence)
	}
	if s.Polarity < -1 || s.Polarity > 1 {
		return fmt.Errorf("polarity %v out of range [-1,1]", s.Polarity)
	}
	return nil
}

// SentimentBreakdown counts sentiments by coarse label.
type SentimentBreakdown struct {
	Positive    int      `json:"positive"`
	Neutral     int      `json:"neutral"`
	Negative    int      `json:"negative"`
	AvgPolarity *float64 `json:"avg_polarity,omitempty"`
}

// Add increments the bucket for label; unknown labels are ignored.
func (b *SentimentBreakdown) Add(label string, n int) {
	switch strings.ToLower(label) {
	case SentimentPositive:
		b.Positive += n
	case SentimentNeutral:
		b.Neutral += n
	case SentimentNegative:
		b.Negative += n
	}
}
