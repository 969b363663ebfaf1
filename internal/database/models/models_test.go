package models

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string { return &s }

func TestSentimentValidate(t *testing.T) {
	tests := []struct {
		name    string
		s       Sentiment
		wantErr error
		ok      bool
	}{
		{"post level", Sentiment{PostID: ptr("p"), Sentiment: "Positive", Confidence: 0.9, Polarity: 0.8}, nil, true},
		{"comment level", Sentiment{CommentID: ptr("c"), Sentiment: "neutral"}, nil, true},
		{"both targets", Sentiment{PostID: ptr("p"), CommentID: ptr("c"), Sentiment: "neutral"}, ErrTargetExclusivity, false},
		{"no target", Sentiment{Sentiment: "neutral"}, ErrTargetExclusivity, false},
		{"unknown label", Sentiment{PostID: ptr("p"), Sentiment: "ecstatic"}, nil, false},
		{"confidence range", Sentiment{PostID: ptr("p"), Sentiment: "negative", Confidence: 1.2}, nil, false},
		{"polarity range", Sentiment{PostID: ptr("p"), Sentiment: "negative", Polarity: -1.5}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.s.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestReactionValidate(t *testing.T) {
	assert.NoError(t, (&Reaction{PostID: ptr("p"), ReactionType: "haha"}).Validate())
	assert.ErrorIs(t, (&Reaction{ReactionType: "like"}).Validate(), ErrTargetExclusivity)
	assert.Error(t, (&Reaction{CommentID: ptr("c"), ReactionType: "care"}).Validate())
}

func TestPostSetCounts(t *testing.T) {
	var p Post
	p.SetCounts(3, 4)
	assert.Equal(t, 7, p.EngagementScore)

	p.SetCounts(-1, 2)
	assert.Equal(t, 0, p.CommentCount)
	assert.Equal(t, 2, p.EngagementScore)
}

func TestProbabilities(t *testing.T) {
	var p Probabilities
	require.NoError(t, p.Scan([]byte(`{"positive":0.7,"negative":0.1,"neutral":0.2}`)))
	assert.InDelta(t, 0.7, p["positive"], 1e-9)

	require.NoError(t, p.Scan(nil))
	assert.Empty(t, p)

	v, err := Probabilities{}.Value()
	require.NoError(t, err)
	assert.Equal(t, "{}", v)

	assert.Error(t, p.Scan(42))
	assert.Error(t, p.Scan("not json"))
}

func TestSentimentBreakdown(t *testing.T) {
	var b SentimentBreakdown
	b.Add("POSITIVE", 2)
	b.Add("neutral", 1)
	b.Add("negative", 3)
	b.Add("other", 5)
	assert.Equal(t, 2, b.Positive)
	assert.Equal(t, 1, b.Neutral)
	assert.Equal(t, 3, b.Negative)
}

func TestPostIncludesMarshalAsEmptyArrays(t *testing.T) {
	p := Post{ID: "p1", Comments: []*Comment{}, Sentiments: []*Sentiment{}, Reactions: []*Reaction{}}
	out, err := json.Marshal(p)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &decoded))
	for _, key := range []string{"comments", "sentiments", "reactions"} {
		assert.Equal(t, []interface{}{}, decoded[key], key)
	}

	c := Comment{ID: "c1", Sentiments: []*Sentiment{}, Reactions: []*Reaction{}}
	out, err = json.Marshal(c)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"sentiments":[]`)
	assert.Contains(t, string(out), `"reactions":[]`)

	pg := Page{ID: "pg1", Posts: []*Post{}}
	out, err = json.Marshal(pg)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"posts":[]`)
}
