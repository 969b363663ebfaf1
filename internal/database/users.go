package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"sentiment-dashboard/internal/database/models"
	"sentiment-dashboard/internal/database/query"
	"sentiment-dashboard/internal/monitoring"
	"sentiment-dashboard/pkg/types"
)

const topPagesLimit = 3

var userOrderColumns = query.OrderMap{
	"created_at":    "u.created_at",
	"name":          "u.name",
	"profile_id":    "u.profile_id",
	"comment_count": "uc.comment_count",
}

// userSelect counts only comments on posts the viewer can see; for a
// non-admin a user with zero such comments is not visible at all.
func userSelect(b *query.Builder, viewer types.Viewer, columns string) string {
	access := orTrue(postAccessClause(b, "c.post_id", viewer))
	return fmt.Sprintf(`
	SELECT %s
	FROM users u
	CROSS JOIN LATERAL (
		SELECT COUNT(*) AS comment_count
		FROM comments c
		WHERE c.user_id = u.id AND %s
	) uc`, columns, access)
}

func userFilters(b *query.Builder, opts types.UserQueryOptions, viewer types.Viewer) {
	b.AddContains("u.name", opts.Search)
	b.AddEquals("u.profile_id", opts.ProfileID)
	if !viewer.IsAdmin() {
		b.AddClause("uc.comment_count > 0")
	}
}

func queryUsers(ctx context.Context, q querier, stmt string, args ...interface{}) ([]*models.User, error) {
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	users := []*models.User{}
	for rows.Next() {
		u := &models.User{}
		var count int
		if err := rows.Scan(&u.ID, &u.ProfileID, &u.Name, &u.CreatedAt, &count); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.CommentCount = &count
		users = append(users, u)
	}
	return users, rows.Err()
}

const userColumns = "u.id, u.profile_id, u.name, u.created_at, uc.comment_count"

// FindAllUsersWithAccess lists scraped users. Non-admins see users who
// commented on at least one post granted to them.
func (db *DB) FindAllUsersWithAccess(ctx context.Context, viewer types.Viewer, opts types.UserQueryOptions) ([]*models.User, error) {
	opts.ListOptions = opts.ListOptions.Normalize()

	var users []*models.User
	err := db.withConn(ctx, "find_users", func(q querier) error {
		b := query.NewBuilder()
		from := userSelect(b, viewer, userColumns)
		userFilters(b, opts, viewer)
		where, _ := b.BuildWithPrefix()
		order := query.ResolveOrder(userOrderColumns, opts.OrderBy, "created_at", opts.OrderDirection, "u.id")
		page := b.Paginate(opts.ListOptions)

		var err error
		users, err = queryUsers(ctx, q, from+"\n"+where+"\n"+order+"\n"+page, b.Args()...)
		if err != nil {
			return err
		}
		if !opts.IncludeStats {
			return nil
		}
		for _, u := range users {
			if u.Stats, err = userStats(ctx, q, u.ID, viewer); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return users, nil
}

func (db *DB) CountUsersWithAccess(ctx context.Context, viewer types.Viewer, opts types.UserQueryOptions) (int, error) {
	var count int
	err := db.withConn(ctx, "count_users", func(q querier) error {
		b := query.NewBuilder()
		from := userSelect(b, viewer, "COUNT(*)")
		userFilters(b, opts, viewer)
		where, args := b.BuildWithPrefix()
		return q.QueryRowContext(ctx, from+"\n"+where, args...).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("failed to get users count: %w", err)
	}
	return count, nil
}

// FindUserByIDWithAccess returns ErrNotFound for missing users and for users
// with no comment on a visible post.
func (db *DB) FindUserByIDWithAccess(ctx context.Context, id string, viewer types.Viewer, opts types.UserQueryOptions) (*models.User, error) {
	if !query.ValidID(id) {
		return nil, ErrNotFound
	}
	if !viewer.IsAdmin() && !query.ValidID(viewer.UserID) {
		return nil, ErrNotFound
	}

	var users []*models.User
	err := db.withConn(ctx, "find_user", func(q querier) error {
		b := query.NewBuilder()
		from := userSelect(b, viewer, userColumns)
		b.AddClause("u.id = " + b.Arg(id))
		userFilters(b, types.UserQueryOptions{}, viewer)
		where, args := b.BuildWithPrefix()

		var err error
		users, err = queryUsers(ctx, q, from+"\n"+where, args...)
		if err != nil || len(users) == 0 || !opts.IncludeStats {
			return err
		}
		users[0].Stats, err = userStats(ctx, q, id, viewer)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		if !viewer.IsAdmin() {
			monitoring.RecordAccessDenied("user")
		}
		return nil, ErrNotFound
	}
	return users[0], nil
}

// canSeeUser reports whether the scraped user exists and, for non-admins,
// commented on a visible post.
func canSeeUser(ctx context.Context, q querier, userID string, viewer types.Viewer) (bool, error) {
	b := query.NewBuilder()
	idArg := b.Arg(userID)
	var stmt string
	if viewer.IsAdmin() {
		stmt = "SELECT EXISTS (SELECT 1 FROM users WHERE id = " + idArg + ")"
	} else {
		stmt = fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM comments c WHERE c.user_id = %s AND %s)",
			idArg, postAccessClause(b, "c.post_id", viewer))
	}

	var ok bool
	if err := q.QueryRowContext(ctx, stmt, b.Args()...).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check user visibility: %w", err)
	}
	return ok, nil
}

// userStats computes the per-user projection over comments on visible posts.
func userStats(ctx context.Context, q querier, userID string, viewer types.Viewer) (*models.UserStats, error) {
	stats := &models.UserStats{TopPages: []models.PageActivity{}}

	b := query.NewBuilder()
	idArg := b.Arg(userID)
	access := orTrue(postAccessClause(b, "c.post_id", viewer))
	err := q.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(c.id), COUNT(DISTINCT c.post_id)
		FROM comments c
		WHERE c.user_id = %s AND %s`, idArg, access), b.Args()...).
		Scan(&stats.TotalComments, &stats.PostsCommented)
	if err != nil {
		return nil, fmt.Errorf("failed to get user comment totals: %w", err)
	}

	b = query.NewBuilder()
	idArg = b.Arg(userID)
	access = orTrue(postAccessClause(b, "COALESCE(r.post_id, rc.post_id)", viewer))
	err = q.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*)
		FROM reactions r
		LEFT JOIN comments rc ON rc.id = r.comment_id
		WHERE r.user_id = %s AND %s`, idArg, access), b.Args()...).
		Scan(&stats.TotalReactions)
	if err != nil {
		return nil, fmt.Errorf("failed to get user reaction total: %w", err)
	}

	b = query.NewBuilder()
	idArg = b.Arg(userID)
	access = orTrue(postAccessClause(b, "c.post_id", viewer))
	breakdown, err := scanBreakdown(ctx, q, fmt.Sprintf(`
		SELECT '' AS key, LOWER(s.sentiment), COUNT(*), AVG(s.polarity)
		FROM sentiments s
		JOIN comments c ON c.id = s.comment_id
		WHERE c.user_id = %s AND %s
		GROUP BY LOWER(s.sentiment)`, idArg, access), b.Args()...)
	if err != nil {
		return nil, err
	}
	if agg, ok := breakdown[""]; ok {
		stats.Sentiment = agg.breakdown()
	}

	b = query.NewBuilder()
	idArg = b.Arg(userID)
	access = orTrue(postAccessClause(b, "c.post_id", viewer))
	rows, err := q.QueryContext(ctx, fmt.Sprintf(`
		SELECT pg.id, pg.name, COUNT(c.id) AS comment_count
		FROM comments c
		JOIN posts p ON p.id = c.post_id
		JOIN pages pg ON pg.id = p.page_id
		WHERE c.user_id = %s AND %s
		GROUP BY pg.id, pg.name
		ORDER BY comment_count DESC, pg.id ASC
		LIMIT %d`, idArg, access, topPagesLimit), b.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to get user top pages: %w", err)
	}
	pageIDs := []string{}
	for rows.Next() {
		var pa models.PageActivity
		if err := rows.Scan(&pa.PageID, &pa.PageName, &pa.CommentCount); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan page activity: %w", err)
		}
		stats.TopPages = append(stats.TopPages, pa)
		pageIDs = append(pageIDs, pa.PageID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read user top pages: %w", err)
	}
	if len(pageIDs) == 0 {
		return stats, nil
	}

	b = query.NewBuilder()
	idArg = b.Arg(userID)
	pagesArg := b.Arg(pq.Array(pageIDs))
	access = orTrue(postAccessClause(b, "c.post_id", viewer))
	perPage, err := scanBreakdown(ctx, q, fmt.Sprintf(`
		SELECT p.page_id::text, LOWER(s.sentiment), COUNT(*), AVG(s.polarity)
		FROM sentiments s
		JOIN comments c ON c.id = s.comment_id
		JOIN posts p ON p.id = c.post_id
		WHERE c.user_id = %s AND p.page_id = ANY(%s::uuid[]) AND %s
		GROUP BY p.page_id, LOWER(s.sentiment)`, idArg, pagesArg, access), b.Args()...)
	if err != nil {
		return nil, err
	}
	for i := range stats.TopPages {
		if agg, ok := perPage[stats.TopPages[i].PageID]; ok {
			stats.TopPages[i].Sentiment = agg.breakdown()
		}
	}
	return stats, nil
}

func orTrue(clause string) string {
	if clause == "" {
		return "TRUE"
	}
	return clause
}

// breakdownAgg folds grouped (label, count, avg polarity) rows into a
// breakdown whose average polarity is weighted by count.
type breakdownAgg struct {
	b           models.SentimentBreakdown
	polaritySum float64
	polarityN   int
}

func (a *breakdownAgg) add(label string, n int, avg sql.NullFloat64) {
	a.b.Add(label, n)
	if avg.Valid && n > 0 {
		a.polaritySum += avg.Float64 * float64(n)
		a.polarityN += n
	}
}

func (a *breakdownAgg) breakdown() models.SentimentBreakdown {
	out := a.b
	if a.polarityN > 0 {
		avg := a.polaritySum / float64(a.polarityN)
		out.AvgPolarity = &avg
	}
	return out
}

func scanBreakdown(ctx context.Context, q querier, stmt string, args ...interface{}) (map[string]*breakdownAgg, error) {
	rows, err := q.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sentiment breakdown: %w", err)
	}
	defer rows.Close()

	out := make(map[string]*breakdownAgg)
	for rows.Next() {
		var key, label string
		var n int
		var avg sql.NullFloat64
		if err := rows.Scan(&key, &label, &n, &avg); err != nil {
			return nil, fmt.Errorf("failed to scan sentiment breakdown: %w", err)
		}
		agg, ok := out[key]
		if !ok {
			agg = &breakdownAgg{}
			out[key] = agg
		}
		agg.add(label, n, avg)
	}
	return out, rows.Err()
}
