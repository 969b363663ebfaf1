// Package query composes parameterized PostgreSQL fragments.
//
// Every user-supplied value goes through Arg and is bound as a $n placeholder.
// Column names and ORDER BY expressions only ever come from the caller's own
// constants or allow-lists.
package query

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"sentiment-dashboard/pkg/types"
)

// Builder collects WHERE clauses and their positional arguments.
//
//	b := query.NewBuilder()
//	b.AddEquals("p.url", opts.URL)
//	b.AddContains("p.content", opts.Search)
//	where, args := b.BuildWithPrefix()
//	// WHERE p.url = $1 AND p.content ILIKE '%' || $2 || '%' ESCAPE '\'
type Builder struct {
	clauses []string
	args    []interface{}
}

func NewBuilder() *Builder {
	return &Builder{
		clauses: []string{},
		args:    []interface{}{},
	}
}

// Arg binds a value and returns its placeholder. The same placeholder may be
// used more than once in a clause.
func (b *Builder) Arg(value interface{}) string {
	b.args = append(b.args, value)
	return fmt.Sprintf("$%d", len(b.args))
}

// AddClause adds a raw condition. Placeholders inside must come from Arg.
func (b *Builder) AddClause(clause string) *Builder {
	if clause != "" {
		b.clauses = append(b.clauses, clause)
	}
	return b
}

// AddEquals adds "column = $n" when value is non-empty.
func (b *Builder) AddEquals(column, value string) *Builder {
	if value == "" {
		return b
	}
	return b.AddClause(fmt.Sprintf("%s = %s", column, b.Arg(value)))
}

// AddUUIDEquals adds "column = $n" for an id filter. A malformed id can match
// nothing, so it becomes FALSE instead of reaching the uuid cast.
func (b *Builder) AddUUIDEquals(column, value string) *Builder {
	if value == "" {
		return b
	}
	if !ValidID(value) {
		return b.AddClause("FALSE")
	}
	return b.AddClause(fmt.Sprintf("%s = %s", column, b.Arg(value)))
}

// AddEqualFold adds a case-insensitive equality match.
func (b *Builder) AddEqualFold(column, value string) *Builder {
	if value == "" {
		return b
	}
	return b.AddClause(fmt.Sprintf("LOWER(%s) = LOWER(%s)", column, b.Arg(value)))
}

// AddContains adds a case-insensitive substring match with LIKE wildcards escaped.
func (b *Builder) AddContains(column, value string) *Builder {
	if value == "" {
		return b
	}
	return b.AddClause(fmt.Sprintf(`%s ILIKE '%%' || %s || '%%' ESCAPE '\'`, column, b.Arg(EscapeLike(value))))
}

// Build joins the clauses with AND. Returns "1=1" when empty.
func (b *Builder) Build() (string, []interface{}) {
	if b.IsEmpty() {
		return "1=1", b.args
	}
	return strings.Join(b.clauses, " AND "), b.args
}

// BuildWithPrefix returns the WHERE clause with the "WHERE " keyword.
func (b *Builder) BuildWithPrefix() (string, []interface{}) {
	where, args := b.Build()
	return "WHERE " + where, args
}

// Args returns the bound arguments collected so far.
func (b *Builder) Args() []interface{} {
	return b.args
}

// Paginate binds limit and offset and returns the LIMIT/OFFSET fragment.
func (b *Builder) Paginate(opts types.ListOptions) string {
	opts = opts.Normalize()
	return fmt.Sprintf("LIMIT %s OFFSET %s", b.Arg(opts.Limit), b.Arg(opts.Offset))
}

func (b *Builder) IsEmpty() bool {
	return len(b.clauses) == 0
}

// EscapeLike escapes the LIKE metacharacters so a search term matches literally.
func EscapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// ValidID reports whether s is a well-formed UUID.
func ValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// NormalizeID returns the canonical lower-case form of a UUID, or s
// unchanged when it does not parse.
func NormalizeID(s string) string {
	id, err := uuid.Parse(s)
	if err != nil {
		return s
	}
	return id.String()
}

// OrderMap maps public orderBy keys to SQL expressions.
type OrderMap map[string]string

// ResolveOrder builds an ORDER BY fragment. Unknown keys fall back to
// fallbackKey; the tie-breaker keeps pagination stable.
func ResolveOrder(allowed OrderMap, key, fallbackKey string, dir types.SortDirection, tieBreaker string) string {
	expr, ok := allowed[SnakeCase(key)]
	if !ok {
		expr = allowed[fallbackKey]
	}
	if dir != types.SortAsc {
		dir = types.SortDesc
	}
	nulls := "NULLS LAST"
	if dir == types.SortAsc {
		nulls = "NULLS FIRST"
	}
	clause := fmt.Sprintf("ORDER BY %s %s %s", expr, dir, nulls)
	if tieBreaker != "" && tieBreaker != expr {
		clause += fmt.Sprintf(", %s %s", tieBreaker, dir)
	}
	return clause
}

// SnakeCase turns "commentCount" into "comment_count" so either spelling of an
// orderBy key resolves.
func SnakeCase(s string) string {
	var sb strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				sb.WriteByte('_')
			}
			sb.WriteRune(r + ('a' - 'A'))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
