// Package testutil provides a Postgres-backed store and fixture helpers for
// integration tests. Tests are skipped unless TEST_DATABASE_URL is set.
package testutil

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus/hooks/test"

	"sentiment-dashboard/internal/database"
	"sentiment-dashboard/pkg/types"
)

const dbURLEnv = "TEST_DATABASE_URL"

// SetupTestDB returns a migrated, empty store and a raw handle for fixtures.
func SetupTestDB(t *testing.T) (*database.DB, *sql.DB) {
	t.Helper()

	dsn := os.Getenv(dbURLEnv)
	if dsn == "" {
		t.Skipf("%s not set; skipping database test", dbURLEnv)
	}

	logger, _ := test.NewNullLogger()
	store, err := database.Open(dsn, logger)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	ctx := context.Background()
	if err := store.RunMigrations(ctx); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	raw, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("Failed to open raw connection: %v", err)
	}

	_, err = raw.ExecContext(ctx, `
		TRUNCATE scrape_jobs, user_post_access, reactions, sentiments, comments,
		         posts, users, pages, auth_users CASCADE`)
	if err != nil {
		t.Fatalf("Failed to clean database: %v", err)
	}

	t.Cleanup(func() {
		raw.Close()
		store.Close()
	})
	return store, raw
}

func insertID(t *testing.T, db *sql.DB, stmt string, args ...interface{}) string {
	t.Helper()
	var id string
	if err := db.QueryRow(stmt, args...).Scan(&id); err != nil {
		t.Fatalf("Failed to insert fixture: %v\n%s", err, stmt)
	}
	return id
}

func InsertPage(t *testing.T, db *sql.DB, name string) string {
	t.Helper()
	return InsertPageAt(t, db, name, time.Now())
}

// InsertPageAt creates a page with an explicit created_at.
func InsertPageAt(t *testing.T, db *sql.DB, name string, createdAt time.Time) string {
	t.Helper()
	return insertID(t, db,
		`INSERT INTO pages (url, name, created_at) VALUES ($1, $2, $3) RETURNING id`,
		"https://facebook.com/"+name, name, createdAt)
}

// InsertPost creates a post; pageID may be empty.
func InsertPost(t *testing.T, db *sql.DB, pageID, content string, createdAt time.Time) string {
	t.Helper()
	var page interface{}
	if pageID != "" {
		page = pageID
	}
	return insertID(t, db,
		`INSERT INTO posts (page_id, url, content, posted_at, created_at)
		 VALUES ($1, $2, $3, $4, $4) RETURNING id`,
		page, "https://facebook.com/posts/"+content, content, createdAt)
}

func InsertUser(t *testing.T, db *sql.DB, name string) string {
	t.Helper()
	return insertID(t, db,
		`INSERT INTO users (profile_id, name) VALUES ($1, $2) RETURNING id`, "profile-"+name, name)
}

func InsertComment(t *testing.T, db *sql.DB, postID, userID, content string, createdAt time.Time) string {
	t.Helper()
	return insertID(t, db,
		`INSERT INTO comments (post_id, user_id, content, created_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		postID, userID, content, createdAt)
}

// InsertPostSentiment attaches a post-level sentiment.
func InsertPostSentiment(t *testing.T, db *sql.DB, postID, label string, confidence, polarity float64, createdAt time.Time) string {
	t.Helper()
	return insertID(t, db,
		`INSERT INTO sentiments (post_id, sentiment, sentiment_category, confidence, polarity, created_at)
		 VALUES ($1, $2, $2, $3, $4, $5) RETURNING id`,
		postID, label, confidence, polarity, createdAt)
}

// InsertCommentSentiment attaches a comment-level sentiment.
func InsertCommentSentiment(t *testing.T, db *sql.DB, commentID, label string, confidence, polarity float64, createdAt time.Time) string {
	t.Helper()
	return insertID(t, db,
		`INSERT INTO sentiments (comment_id, sentiment, sentiment_category, confidence, polarity, created_at)
		 VALUES ($1, $2, $2, $3, $4, $5) RETURNING id`,
		commentID, label, confidence, polarity, createdAt)
}

func InsertPostReaction(t *testing.T, db *sql.DB, postID, userID, reactionType string) string {
	t.Helper()
	return insertID(t, db,
		`INSERT INTO reactions (post_id, user_id, reaction_type) VALUES ($1, $2, $3) RETURNING id`,
		postID, userID, reactionType)
}

func InsertCommentReaction(t *testing.T, db *sql.DB, commentID, userID, reactionType string) string {
	t.Helper()
	return insertID(t, db,
		`INSERT INTO reactions (comment_id, user_id, reaction_type) VALUES ($1, $2, $3) RETURNING id`,
		commentID, userID, reactionType)
}

// InsertAuthUser creates a dashboard login and returns the viewer for it.
func InsertAuthUser(t *testing.T, db *sql.DB, username, role string) types.Viewer {
	t.Helper()
	id := insertID(t, db,
		`INSERT INTO auth_users (username, email, password_hash, role) VALUES ($1, $2, 'x', $3) RETURNING id`,
		username, username+"@example.com", role)
	return types.Viewer{UserID: id, Role: role}
}

func Grant(t *testing.T, db *sql.DB, authUserID, postID string) {
	t.Helper()
	if _, err := db.Exec(
		`INSERT INTO user_post_access (auth_user_id, post_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		authUserID, postID); err != nil {
		t.Fatalf("Failed to grant fixture access: %v", err)
	}
}

func CountGrants(t *testing.T, db *sql.DB, authUserID string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM user_post_access WHERE auth_user_id = $1`, authUserID).Scan(&n); err != nil {
		t.Fatalf("Failed to count grants: %v", err)
	}
	return n
}
