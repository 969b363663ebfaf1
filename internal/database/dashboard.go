package database

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"sentiment-dashboard/internal/database/models"
	"sentiment-dashboard/internal/database/query"
	"sentiment-dashboard/internal/utils"
	"sentiment-dashboard/pkg/types"
)

const (
	trendHours = 24

	// engagementDisplayScale multiplies the summed per-post averages into
	// the dashboard's engagement figure.
	engagementDisplayScale = 10
)

var trendCategories = []string{models.SentimentPositive, models.SentimentNegative, models.SentimentNeutral}

type trendRow struct {
	Bucket   time.Time
	Category string
	Count    int
}

// queryTrendRows counts post-level sentiments of visible posts per UTC
// bucket ("hour" or "day") and lower-cased category, from since onwards.
func queryTrendRows(ctx context.Context, q querier, unit string, since time.Time, viewer types.Viewer) ([]trendRow, error) {
	b := query.NewBuilder()
	sinceArg := b.Arg(since)
	access := orTrue(postAccessClause(b, "s.post_id", viewer))

	rows, err := q.QueryContext(ctx, fmt.Sprintf(`
		SELECT date_trunc('%s', s.created_at AT TIME ZONE 'UTC') AS bucket,
		       LOWER(s.sentiment_category) AS category,
		       COUNT(*)
		FROM sentiments s
		WHERE s.comment_id IS NULL AND s.created_at >= %s AND %s
		GROUP BY bucket, category`, unit, sinceArg, access), b.Args()...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sentiment trend: %w", err)
	}
	defer rows.Close()

	out := []trendRow{}
	for rows.Next() {
		var r trendRow
		if err := rows.Scan(&r.Bucket, &r.Category, &r.Count); err != nil {
			return nil, fmt.Errorf("failed to scan trend row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// buildTrend seeds one zeroed bucket per start and overwrites it with the
// rows that fall on the same UTC wall-clock instant. Rows outside the window
// are dropped.
func buildTrend(starts []time.Time, rows []trendRow) []models.TrendBucket {
	buckets := make([]models.TrendBucket, len(starts))
	index := make(map[int64]int, len(starts))
	for i, start := range starts {
		counts := make(map[string]int, len(trendCategories))
		for _, c := range trendCategories {
			counts[c] = 0
		}
		buckets[i] = models.TrendBucket{Time: start.UTC(), Counts: counts}
		index[start.Unix()] = i
	}

	for _, r := range rows {
		// the driver returns "timestamp without time zone" values with a
		// zero offset that is not time.UTC, so rebuild the key from fields
		key := time.Date(r.Bucket.Year(), r.Bucket.Month(), r.Bucket.Day(), r.Bucket.Hour(), 0, 0, 0, time.UTC)
		i, ok := index[key.Unix()]
		if !ok {
			continue
		}
		buckets[i].Counts[strings.ToLower(r.Category)] = r.Count
	}
	return buckets
}

// buildHourlyTrend returns the trailing 24 UTC hours ending with the hour
// containing now.
func buildHourlyTrend(now time.Time, rows []trendRow) []models.TrendBucket {
	return buildTrend(utils.Buckets(utils.HourStart(now), time.Hour, trendHours), rows)
}

func averageEngagement(avgComments, avgReactions float64) float64 {
	return round1(engagementDisplayScale * (avgComments + avgReactions))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// DashboardStats computes the dashboard KPIs over the posts visible to viewer.
// Every statement runs on one connection; any failure fails the whole call.
func (db *DB) DashboardStats(ctx context.Context, viewer types.Viewer) (*models.DashboardStats, error) {
	now := time.Now().UTC()
	stats := &models.DashboardStats{
		SentimentCounts: map[string]int{},
		GeneratedAt:     now,
	}
	for _, c := range trendCategories {
		stats.SentimentCounts[c] = 0
	}

	err := db.withConn(ctx, "dashboard_stats", func(q querier) error {
		if err := dashboardPostTotals(ctx, q, now, viewer, stats); err != nil {
			return err
		}
		if err := dashboardSentiments(ctx, q, viewer, stats); err != nil {
			return err
		}
		if err := dashboardCommenters(ctx, q, viewer, stats); err != nil {
			return err
		}
		if err := dashboardPages(ctx, q, now, viewer, stats); err != nil {
			return err
		}

		rows, err := queryTrendRows(ctx, q, "hour", utils.HourStart(now).Add(-(trendHours-1)*time.Hour), viewer)
		if err != nil {
			return err
		}
		stats.Trend = buildHourlyTrend(now, rows)
		return nil
	})
	if err != nil {
		return nil, err
	}

	stats.AverageEngagement = averageEngagement(stats.PostSummary.AvgCommentsPerPost, stats.PostSummary.AvgReactionsPerPost)
	return stats, nil
}

func dashboardPostTotals(ctx context.Context, q querier, now time.Time, viewer types.Viewer, stats *models.DashboardStats) error {
	b := query.NewBuilder()
	dayArg := b.Arg(now.Add(-24 * time.Hour))
	weekArg := b.Arg(utils.GetDateDaysAgo(now, 7))
	access := orTrue(postAccessClause(b, "p.id", viewer))

	err := q.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE COALESCE(p.posted_at, p.created_at) >= %s),
		       COUNT(*) FILTER (WHERE COALESCE(p.posted_at, p.created_at) >= %s),
		       COALESCE(AVG(cc.n), 0)::float8,
		       COALESCE(AVG(rc.n), 0)::float8
		FROM posts p
		CROSS JOIN LATERAL (SELECT COUNT(*) AS n FROM comments c WHERE c.post_id = p.id) cc
		CROSS JOIN LATERAL (SELECT COUNT(*) AS n FROM reactions r WHERE r.post_id = p.id) rc
		WHERE %s`, dayArg, weekArg, access), b.Args()...).Scan(
		&stats.TotalPosts,
		&stats.PostSummary.PostsLast24h,
		&stats.PostSummary.PostsLast7d,
		&stats.PostSummary.AvgCommentsPerPost,
		&stats.PostSummary.AvgReactionsPerPost,
	)
	if err != nil {
		return fmt.Errorf("failed to get post totals: %w", err)
	}
	return nil
}

func dashboardSentiments(ctx context.Context, q querier, viewer types.Viewer, stats *models.DashboardStats) error {
	b := query.NewBuilder()
	access := orTrue(postAccessClause(b, "s.post_id", viewer))

	rows, err := q.QueryContext(ctx, `
		SELECT LOWER(s.sentiment_category), COUNT(*)
		FROM sentiments s
		WHERE s.comment_id IS NULL AND `+access+`
		GROUP BY LOWER(s.sentiment_category)`, b.Args()...)
	if err != nil {
		return fmt.Errorf("failed to get sentiment counts: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return fmt.Errorf("failed to scan sentiment count: %w", err)
		}
		stats.SentimentCounts[category] = n
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read sentiment counts: %w", err)
	}

	err = q.QueryRowContext(ctx, `
		SELECT COALESCE(AVG(s.confidence), 0)
		FROM sentiments s
		WHERE s.comment_id IS NULL AND `+access, b.Args()...).Scan(&stats.PostSummary.AvgSentimentConfidence)
	if err != nil {
		return fmt.Errorf("failed to get average sentiment confidence: %w", err)
	}
	return nil
}

func dashboardCommenters(ctx context.Context, q querier, viewer types.Viewer, stats *models.DashboardStats) error {
	b := query.NewBuilder()
	access := orTrue(postAccessClause(b, "c.post_id", viewer))

	err := q.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT c.user_id)
		FROM comments c
		WHERE c.post_id IS NOT NULL AND `+access, b.Args()...).Scan(&stats.PostSummary.UniqueCommenters)
	if err != nil {
		return fmt.Errorf("failed to get unique commenters: %w", err)
	}
	return nil
}

// dashboardPages reuses the page reader's projection so a non-admin only
// counts pages that hold a visible post.
func dashboardPages(ctx context.Context, q querier, now time.Time, viewer types.Viewer, stats *models.DashboardStats) error {
	b := query.NewBuilder()
	weekArg := b.Arg(utils.GetDateDaysAgo(now, 7))
	monthArg := b.Arg(utils.GetDateDaysAgo(now, 30))
	activeAccess := orTrue(postAccessClause(b, "ap.id", viewer))
	columns := fmt.Sprintf(`COUNT(*),
		COUNT(*) FILTER (WHERE EXISTS (
			SELECT 1 FROM posts ap
			WHERE ap.page_id = pg.id AND COALESCE(ap.posted_at, ap.created_at) >= %s AND %s
		)),
		COUNT(*) FILTER (WHERE pg.created_at >= %s),
		COALESCE(AVG(pc.post_count), 0)::float8,
		COALESCE(AVG(pc.comment_count), 0)::float8`, weekArg, activeAccess, monthArg)
	from := pageSelect(b, viewer, columns)
	pageFilters(b, types.PageQueryOptions{}, viewer)
	where, args := b.BuildWithPrefix()

	ps := &stats.PageSummary
	err := q.QueryRowContext(ctx, from+"\n"+where, args...).Scan(
		&ps.TotalPages, &ps.ActivePages7d, &ps.NewPages30d, &ps.AvgPostsPerPage, &ps.AvgCommentsPerPage)
	if err != nil {
		return fmt.Errorf("failed to get page summary: %w", err)
	}
	return nil
}
