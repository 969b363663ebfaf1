package types

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListOptionsNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   ListOptions
		want ListOptions
	}{
		{"defaults", ListOptions{}, ListOptions{Limit: DefaultLimit, OrderDirection: SortDesc}},
		{"zero limit means default", ListOptions{Limit: 0, Offset: 3}, ListOptions{Limit: DefaultLimit, Offset: 3, OrderDirection: SortDesc}},
		{"negative values", ListOptions{Limit: -5, Offset: -1}, ListOptions{Limit: DefaultLimit, OrderDirection: SortDesc}},
		{"capped", ListOptions{Limit: 5000, Offset: 10, OrderDirection: SortAsc}, ListOptions{Limit: MaxLimit, Offset: 10, OrderDirection: SortAsc}},
		{"bad direction", ListOptions{Limit: 5, OrderDirection: "sideways"}, ListOptions{Limit: 5, OrderDirection: SortDesc}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestParseListOptions_ZeroLimit(t *testing.T) {
	for _, raw := range []string{"limit=0", "limit=-3", "limit=abc", ""} {
		q, err := url.ParseQuery(raw)
		require.NoError(t, err)
		assert.Equal(t, DefaultLimit, ParseListOptions(q).Limit, raw)
	}
}

func TestParsePostQueryOptions(t *testing.T) {
	q, err := url.ParseQuery("limit=10&offset=abc&orderBy=engagementScore&orderDirection=asc" +
		"&pageId=p1&search=%20hello%20&sentiment=positive&includeComments=true&include_page=1&includeReactions=nope")
	require.NoError(t, err)

	opts := ParsePostQueryOptions(q)
	assert.Equal(t, 10, opts.Limit)
	assert.Equal(t, 0, opts.Offset)
	assert.Equal(t, "engagementScore", opts.OrderBy)
	assert.Equal(t, SortAsc, opts.OrderDirection)
	assert.Equal(t, "p1", opts.PageID)
	assert.Equal(t, "hello", opts.Search)
	assert.Equal(t, "positive", opts.Sentiment)
	assert.True(t, opts.IncludeComments)
	assert.True(t, opts.IncludePage)
	assert.False(t, opts.IncludeReactions)
	assert.False(t, opts.IncludeSentiments)
}

func TestParseSentimentQueryOptions(t *testing.T) {
	opts := ParseSentimentQueryOptions(url.Values{"minConfidence": {"0.75"}})
	assert.Equal(t, LevelPost, opts.Level)
	require.NotNil(t, opts.MinConfidence)
	assert.Equal(t, 0.75, *opts.MinConfidence)

	opts = ParseSentimentQueryOptions(url.Values{"minConfidence": {"2"}, "level": {"ALL"}})
	assert.Nil(t, opts.MinConfidence)
	assert.Equal(t, LevelAll, opts.Level)

	// a comment id forces comment level unless all was asked for
	opts = ParseSentimentQueryOptions(url.Values{"commentId": {"c1"}})
	assert.Equal(t, LevelComment, opts.Level)
	opts = ParseSentimentQueryOptions(url.Values{"commentId": {"c1"}, "level": {"all"}})
	assert.Equal(t, LevelAll, opts.Level)
}

func TestParseTrendOptions(t *testing.T) {
	assert.Equal(t, DefaultTrendDays, ParseTrendOptions(url.Values{}).Days)
	assert.Equal(t, MaxTrendDays, ParseTrendOptions(url.Values{"days": {"365"}}).Days)
	assert.Equal(t, 14, ParseTrendOptions(url.Values{"days": {"14"}}).Days)
}

func TestParseSortDirection(t *testing.T) {
	assert.Equal(t, SortAsc, ParseSortDirection(" Asc "))
	assert.Equal(t, SortDesc, ParseSortDirection(""))
	assert.Equal(t, SortDesc, ParseSortDirection("random"))
}

func TestViewerContext(t *testing.T) {
	_, ok := ViewerFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithViewer(context.Background(), Viewer{UserID: "u", Role: RoleAdmin})
	v, ok := ViewerFromContext(ctx)
	require.True(t, ok)
	assert.True(t, v.IsAdmin())
	assert.False(t, ValidRole("root"))
}
