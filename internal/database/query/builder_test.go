package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentiment-dashboard/pkg/types"
)

func TestBuilder_Empty(t *testing.T) {
	b := NewBuilder()

	assert.True(t, b.IsEmpty())
	where, args := b.Build()
	assert.Equal(t, "1=1", where)
	assert.Empty(t, args)

	prefixed, _ := b.BuildWithPrefix()
	assert.Equal(t, "WHERE 1=1", prefixed)
}

func TestBuilder_SkipsEmptyValues(t *testing.T) {
	b := NewBuilder()
	b.AddEquals("p.url", "").
		AddUUIDEquals("p.page_id", "").
		AddContains("p.content", "").
		AddEqualFold("pg.name", "")

	assert.True(t, b.IsEmpty())
	assert.Empty(t, b.Args())
}

func TestBuilder_PlaceholdersAreSequential(t *testing.T) {
	b := NewBuilder()
	b.AddEquals("p.url", "https://fb.com/1")
	b.AddUUIDEquals("p.page_id", "8b0f7c1e-3c1e-4a55-9a57-2f3c0e1a4b10")
	b.AddEqualFold("pg.name", "News")

	where, args := b.Build()
	assert.Equal(t, "p.url = $1 AND p.page_id = $2 AND LOWER(pg.name) = LOWER($3)", where)
	require.Len(t, args, 3)
	assert.Equal(t, "News", args[2])
}

func TestBuilder_ArgCanBeReused(t *testing.T) {
	b := NewBuilder()
	ph := b.Arg("positive")
	b.AddClause("(a = " + ph + " OR b = " + ph + ")")

	where, args := b.Build()
	assert.Equal(t, "(a = $1 OR b = $1)", where)
	assert.Len(t, args, 1)
}

func TestBuilder_MalformedIDMatchesNothing(t *testing.T) {
	b := NewBuilder()
	b.AddUUIDEquals("c.post_id", "not-a-uuid")

	where, args := b.Build()
	assert.Equal(t, "FALSE", where)
	assert.Empty(t, args)
}

func TestBuilder_ContainsEscapesWildcards(t *testing.T) {
	b := NewBuilder()
	b.AddContains("p.content", "100%_off")

	where, args := b.Build()
	assert.Equal(t, `p.content ILIKE '%' || $1 || '%' ESCAPE '\'`, where)
	assert.Equal(t, `100\%\_off`, args[0])
}

func TestBuilder_Paginate(t *testing.T) {
	b := NewBuilder()
	b.AddEquals("p.url", "x")

	frag := b.Paginate(types.ListOptions{Limit: 0, Offset: -3})
	assert.Equal(t, "LIMIT $2 OFFSET $3", frag)
	assert.Equal(t, []interface{}{"x", types.DefaultLimit, 0}, b.Args())
}

func TestResolveOrder(t *testing.T) {
	allowed := OrderMap{
		"created_at":    "p.created_at",
		"comment_count": "cc.comment_count",
	}

	tests := []struct {
		name string
		key  string
		dir  types.SortDirection
		want string
	}{
		{"known key asc", "comment_count", types.SortAsc, "ORDER BY cc.comment_count ASC NULLS FIRST, p.id ASC"},
		{"unknown key falls back", "content; DROP TABLE posts", types.SortDesc, "ORDER BY p.created_at DESC NULLS LAST, p.id DESC"},
		{"empty key falls back", "", types.SortDesc, "ORDER BY p.created_at DESC NULLS LAST, p.id DESC"},
		{"bogus direction is desc", "created_at", types.SortDirection("sideways"), "ORDER BY p.created_at DESC NULLS LAST, p.id DESC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveOrder(allowed, tt.key, "created_at", tt.dir, "p.id")
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidID(t *testing.T) {
	assert.True(t, ValidID("8b0f7c1e-3c1e-4a55-9a57-2f3c0e1a4b10"))
	assert.False(t, ValidID(""))
	assert.False(t, ValidID("42"))
	assert.False(t, ValidID("' OR 1=1 --"))
}

func TestResolveOrder_AcceptsCamelCase(t *testing.T) {
	allowed := OrderMap{"engagement_score": "(cc.comment_count + rc.reaction_count)", "created_at": "p.created_at"}

	got := ResolveOrder(allowed, "engagementScore", "created_at", types.SortDesc, "p.id")
	assert.Equal(t, "ORDER BY (cc.comment_count + rc.reaction_count) DESC NULLS LAST, p.id DESC", got)
}

func TestSnakeCase(t *testing.T) {
	assert.Equal(t, "comment_count", SnakeCase("commentCount"))
	assert.Equal(t, "comment_count", SnakeCase("comment_count"))
	assert.Equal(t, "last_comment_at", SnakeCase("lastCommentAt"))
	assert.Equal(t, "", SnakeCase(""))
}

func TestNormalizeID(t *testing.T) {
	assert.Equal(t, "8b0f7c1e-3c1e-4a55-9a57-2f3c0e1a4b10", NormalizeID("8B0F7C1E-3C1E-4A55-9A57-2F3C0E1A4B10"))
	assert.Equal(t, "nope", NormalizeID("nope"))
}
