package database

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"sentiment-dashboard/internal/database/models"
	"sentiment-dashboard/internal/database/query"
	"sentiment-dashboard/pkg/types"
)

// recentPostsPerPage bounds includePosts.
const recentPostsPerPage = 5

var pageOrderColumns = query.OrderMap{
	"created_at":    "pg.created_at",
	"name":          "pg.name",
	"url":           "pg.url",
	"post_count":    "pc.post_count",
	"comment_count": "pc.comment_count",
}

const pageColumns = "pg.id, pg.url, pg.name, pg.created_at, pc.post_count, pc.comment_count"

func pageSelect(b *query.Builder, viewer types.Viewer, columns string) string {
	access := orTrue(postAccessClause(b, "p.id", viewer))
	return fmt.Sprintf(`
	SELECT %s
	FROM pages pg
	CROSS JOIN LATERAL (
		SELECT COUNT(*) AS post_count,
		       COALESCE(SUM(pcc.n), 0)::bigint AS comment_count
		FROM posts p
		CROSS JOIN LATERAL (SELECT COUNT(*) AS n FROM comments c WHERE c.post_id = p.id) pcc
		WHERE p.page_id = pg.id AND %s
	) pc`, columns, access)
}

func pageFilters(b *query.Builder, opts types.PageQueryOptions, viewer types.Viewer) {
	b.AddContains("pg.name", opts.Search)
	b.AddEquals("pg.url", opts.URL)
	if !viewer.IsAdmin() {
		b.AddClause("pc.post_count > 0")
	}
}

func queryPages(ctx context.Context, q querier, stmt string, args ...interface{}) ([]*models.Page, error) {
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	pages := []*models.Page{}
	for rows.Next() {
		pg := &models.Page{}
		var posts, comments int
		if err := rows.Scan(&pg.ID, &pg.URL, &pg.Name, &pg.CreatedAt, &posts, &comments); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		pg.PostCount = &posts
		pg.CommentCount = &comments
		pages = append(pages, pg)
	}
	return pages, rows.Err()
}

// attachRecentPosts loads up to recentPostsPerPage visible posts for every
// page in one statement.
func attachRecentPosts(ctx context.Context, q querier, pages []*models.Page, viewer types.Viewer) error {
	if len(pages) == 0 {
		return nil
	}
	ids := make([]string, len(pages))
	for i, pg := range pages {
		ids[i] = pg.ID
		pg.Posts = []*models.Post{}
	}

	b := query.NewBuilder()
	idsArg := b.Arg(pq.Array(ids))
	limitArg := b.Arg(recentPostsPerPage)
	access := orTrue(postAccessClause(b, "rp.id", viewer))
	stmt := postSelect + fmt.Sprintf(`
	WHERE p.id IN (
		SELECT ranked.id FROM (
			SELECT rp.id, ROW_NUMBER() OVER (
				PARTITION BY rp.page_id
				ORDER BY COALESCE(rp.posted_at, rp.created_at) DESC, rp.id DESC
			) AS rn
			FROM posts rp
			WHERE rp.page_id = ANY(%s::uuid[]) AND %s
		) ranked
		WHERE ranked.rn <= %s
	)
	ORDER BY COALESCE(p.posted_at, p.created_at) DESC, p.id DESC`, idsArg, access, limitArg)

	posts, err := scanPosts(ctx, q, stmt, b.Args()...)
	if err != nil {
		return err
	}

	byPage := make(map[string]*models.Page, len(pages))
	for _, pg := range pages {
		byPage[pg.ID] = pg
	}
	for _, p := range posts {
		p.Page = nil
		if pg, ok := byPage[derefID(p.PageID)]; ok {
			pg.Posts = append(pg.Posts, p)
		}
	}
	return nil
}

// FindAllPagesWithAccess lists pages that hold at least one visible post
// (all pages for admins).
func (db *DB) FindAllPagesWithAccess(ctx context.Context, viewer types.Viewer, opts types.PageQueryOptions) ([]*models.Page, error) {
	opts.ListOptions = opts.ListOptions.Normalize()

	var pages []*models.Page
	err := db.withConn(ctx, "find_pages", func(q querier) error {
		b := query.NewBuilder()
		from := pageSelect(b, viewer, pageColumns)
		pageFilters(b, opts, viewer)
		where, _ := b.BuildWithPrefix()
		order := query.ResolveOrder(pageOrderColumns, opts.OrderBy, "created_at", opts.OrderDirection, "pg.id")
		page := b.Paginate(opts.ListOptions)

		var err error
		pages, err = queryPages(ctx, q, from+"\n"+where+"\n"+order+"\n"+page, b.Args()...)
		if err != nil || !opts.IncludePosts {
			return err
		}
		return attachRecentPosts(ctx, q, pages, viewer)
	})
	if err != nil {
		return nil, err
	}
	return pages, nil
}

func (db *DB) CountPagesWithAccess(ctx context.Context, viewer types.Viewer, opts types.PageQueryOptions) (int, error) {
	var count int
	err := db.withConn(ctx, "count_pages", func(q querier) error {
		b := query.NewBuilder()
		from := pageSelect(b, viewer, "COUNT(*)")
		pageFilters(b, opts, viewer)
		where, args := b.BuildWithPrefix()
		return q.QueryRowContext(ctx, from+"\n"+where, args...).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get pages count: %w", err)
	}
	return count, nil
}

func (db *DB) FindPageByIDWithAccess(ctx context.Context, id string, viewer types.Viewer, opts types.PageQueryOptions) (*models.Page, error) {
	if !query.ValidID(id) {
		return nil, ErrNotFound
	}

	var pages []*models.Page
	err := db.withConn(ctx, "find_page", func(q querier) error {
		b := query.NewBuilder()
		from := pageSelect(b, viewer, pageColumns)
		b.AddClause("pg.id = " + b.Arg(id))
		pageFilters(b, types.PageQueryOptions{}, viewer)
		where, args := b.BuildWithPrefix()

		var err error
		pages, err = queryPages(ctx, q, from+"\n"+where, args...)
		if err != nil || len(pages) == 0 || !opts.IncludePosts {
			return err
		}
		return attachRecentPosts(ctx, q, pages, viewer)
	})
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, ErrNotFound
	}
	return pages[0], nil
}
