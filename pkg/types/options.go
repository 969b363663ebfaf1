package types

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultLimit = 100
	MaxLimit     = 1000

	DefaultTrendDays = 7
	MaxTrendDays     = 90
)

type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// ParseSortDirection accepts asc/desc in any case; everything else is DESC.
func ParseSortDirection(s string) SortDirection {
	if strings.EqualFold(strings.TrimSpace(s), string(SortAsc)) {
		return SortAsc
	}
	return SortDesc
}

// ListOptions carries the pagination and ordering shared by every reader.
type ListOptions struct {
	Limit          int           `json:"limit"`
	Offset         int           `json:"offset"`
	OrderBy        string        `json:"order_by,omitempty"`
	OrderDirection SortDirection `json:"order_direction"`
}

// Normalize applies defaults. Out-of-range values are treated as not provided.
func (o ListOptions) Normalize() ListOptions {
	// limit=0 means "not provided" and returns DefaultLimit rows, never zero.
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Limit > MaxLimit {
		o.Limit = MaxLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	if o.OrderDirection != SortAsc {
		o.OrderDirection = SortDesc
	}
	return o
}

type PostQueryOptions struct {
	ListOptions
	PageID    string
	PageURL   string
	PageName  string
	URL       string
	Search    string
	Sentiment string

	IncludePage       bool
	IncludeComments   bool
	IncludeSentiments bool
	IncludeReactions  bool
}

type CommentQueryOptions struct {
	ListOptions
	PostID    string
	UserID    string
	Search    string
	Sentiment string

	IncludeUser       bool
	IncludePost       bool
	IncludeSentiments bool
	IncludeReactions  bool
}

// SentimentLevel selects which sentiment targets a query covers.
type SentimentLevel string

const (
	LevelPost    SentimentLevel = "post"
	LevelComment SentimentLevel = "comment"
	LevelAll     SentimentLevel = "all"
)

func ParseSentimentLevel(s string) SentimentLevel {
	switch SentimentLevel(strings.ToLower(strings.TrimSpace(s))) {
	case LevelComment:
		return LevelComment
	case LevelAll:
		return LevelAll
	default:
		return LevelPost
	}
}

type SentimentQueryOptions struct {
	ListOptions
	PostID        string
	CommentID     string
	Sentiment     string
	Category      string
	Level         SentimentLevel
	MinConfidence *float64
}

type UserQueryOptions struct {
	ListOptions
	Search       string
	ProfileID    string
	IncludeStats bool
}

type PageQueryOptions struct {
	ListOptions
	Search       string
	URL          string
	IncludePosts bool
}

type CommenterQueryOptions struct {
	ListOptions
}

type UserPostQueryOptions struct {
	ListOptions
}

type TrendOptions struct {
	Days int
}

func (o TrendOptions) Normalize() TrendOptions {
	if o.Days <= 0 {
		o.Days = DefaultTrendDays
	}
	if o.Days > MaxTrendDays {
		o.Days = MaxTrendDays
	}
	return o
}

// ParseListOptions reads limit, offset, orderBy and orderDirection.
// A missing, zero, negative or non-numeric limit yields DefaultLimit (100);
// clients that want an empty page must not rely on limit=0.
func ParseListOptions(q url.Values) ListOptions {
	return ListOptions{
		Limit:          queryInt(q, "limit"),
		Offset:         queryInt(q, "offset"),
		OrderBy:        queryString(q, "orderBy", "order_by"),
		OrderDirection: ParseSortDirection(queryString(q, "orderDirection", "order_direction")),
	}.Normalize()
}

func ParsePostQueryOptions(q url.Values) PostQueryOptions {
	return PostQueryOptions{
		ListOptions:       ParseListOptions(q),
		PageID:            queryString(q, "pageId", "page_id"),
		PageURL:           queryString(q, "pageUrl", "page_url"),
		PageName:          queryString(q, "pageName", "page_name"),
		URL:               queryString(q, "url", "postUrl", "post_url"),
		Search:            queryString(q, "search"),
		Sentiment:         queryString(q, "sentiment"),
		IncludePage:       queryBool(q, "includePage", "include_page"),
		IncludeComments:   queryBool(q, "includeComments", "include_comments"),
		IncludeSentiments: queryBool(q, "includeSentiments", "include_sentiments"),
		IncludeReactions:  queryBool(q, "includeReactions", "include_reactions"),
	}
}

func ParseCommentQueryOptions(q url.Values) CommentQueryOptions {
	return CommentQueryOptions{
		ListOptions:       ParseListOptions(q),
		PostID:            queryString(q, "postId", "post_id"),
		UserID:            queryString(q, "userId", "user_id"),
		Search:            queryString(q, "search"),
		Sentiment:         queryString(q, "sentiment"),
		IncludeUser:       queryBool(q, "includeUser", "include_user"),
		IncludePost:       queryBool(q, "includePost", "include_post"),
		IncludeSentiments: queryBool(q, "includeSentiments", "include_sentiments"),
		IncludeReactions:  queryBool(q, "includeReactions", "include_reactions"),
	}
}

func ParseSentimentQueryOptions(q url.Values) SentimentQueryOptions {
	opts := SentimentQueryOptions{
		ListOptions: ParseListOptions(q),
		PostID:      queryString(q, "postId", "post_id"),
		CommentID:   queryString(q, "commentId", "comment_id"),
		Sentiment:   queryString(q, "sentiment"),
		Category:    queryString(q, "category", "sentimentCategory", "sentiment_category"),
		Level:       ParseSentimentLevel(queryString(q, "level")),
	}
	if raw := queryString(q, "minConfidence", "min_confidence"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v >= 0 && v <= 1 {
			opts.MinConfidence = &v
		}
	}
	// a comment id only makes sense on comment-level rows
	if opts.CommentID != "" && opts.Level == LevelPost {
		opts.Level = LevelComment
	}
	return opts
}

func ParseUserQueryOptions(q url.Values) UserQueryOptions {
	return UserQueryOptions{
		ListOptions:  ParseListOptions(q),
		Search:       queryString(q, "search"),
		ProfileID:    queryString(q, "profileId", "profile_id"),
		IncludeStats: queryBool(q, "includeStats", "include_stats"),
	}
}

func ParsePageQueryOptions(q url.Values) PageQueryOptions {
	return PageQueryOptions{
		ListOptions:  ParseListOptions(q),
		Search:       queryString(q, "search"),
		URL:          queryString(q, "url"),
		IncludePosts: queryBool(q, "includePosts", "include_posts"),
	}
}

func ParseTrendOptions(q url.Values) TrendOptions {
	return TrendOptions{Days: queryInt(q, "days")}.Normalize()
}

func queryString(q url.Values, keys ...string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(q.Get(key)); v != "" {
			return v
		}
	}
	return ""
}

func queryInt(q url.Values, keys ...string) int {
	raw := queryString(q, keys...)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return v
}

func queryBool(q url.Values, keys ...string) bool {
	switch strings.ToLower(queryString(q, keys...)) {
	case "true", "1", "yes":
		return true
	default:
		return false
	}
}
