package api

import (
	"context"

	"sentiment-dashboard/internal/database"
	"sentiment-dashboard/internal/database/models"
	"sentiment-dashboard/pkg/types"
)

// Store is the part of *database.DB the HTTP layer calls.
type Store interface {
	FindAllPostsWithAccess(ctx context.Context, viewer types.Viewer, opts types.PostQueryOptions) ([]*models.Post, error)
	CountPostsWithAccess(ctx context.Context, viewer types.Viewer, opts types.PostQueryOptions) (int, error)
	FindPostByIDWithAccess(ctx context.Context, id string, viewer types.Viewer, opts types.PostQueryOptions) (*models.Post, error)
	PostCommenters(ctx context.Context, postID string, viewer types.Viewer, opts types.CommenterQueryOptions) ([]models.Commenter, error)
	PostSentimentSummary(ctx context.Context, postID string, viewer types.Viewer) (*models.SentimentSummary, error)

	FindAllCommentsWithAccess(ctx context.Context, viewer types.Viewer, opts types.CommentQueryOptions) ([]*models.Comment, error)
	CountCommentsWithAccess(ctx context.Context, viewer types.Viewer, opts types.CommentQueryOptions) (int, error)
	FindCommentByIDWithAccess(ctx context.Context, id string, viewer types.Viewer, opts types.CommentQueryOptions) (*models.Comment, error)

	FindAllSentimentsWithAccess(ctx context.Context, viewer types.Viewer, opts types.SentimentQueryOptions) ([]*models.Sentiment, error)
	CountSentimentsWithAccess(ctx context.Context, viewer types.Viewer, opts types.SentimentQueryOptions) (int, error)
	FindSentimentByIDWithAccess(ctx context.Context, id string, viewer types.Viewer) (*models.Sentiment, error)
	SentimentTrend(ctx context.Context, viewer types.Viewer, opts types.TrendOptions) ([]models.TrendBucket, error)

	FindAllUsersWithAccess(ctx context.Context, viewer types.Viewer, opts types.UserQueryOptions) ([]*models.User, error)
	CountUsersWithAccess(ctx context.Context, viewer types.Viewer, opts types.UserQueryOptions) (int, error)
	FindUserByIDWithAccess(ctx context.Context, id string, viewer types.Viewer, opts types.UserQueryOptions) (*models.User, error)
	UserCommentedPosts(ctx context.Context, userID string, viewer types.Viewer, opts types.UserPostQueryOptions) ([]models.UserPostActivity, error)

	FindAllPagesWithAccess(ctx context.Context, viewer types.Viewer, opts types.PageQueryOptions) ([]*models.Page, error)
	CountPagesWithAccess(ctx context.Context, viewer types.Viewer, opts types.PageQueryOptions) (int, error)
	FindPageByIDWithAccess(ctx context.Context, id string, viewer types.Viewer, opts types.PageQueryOptions) (*models.Page, error)

	DashboardStats(ctx context.Context, viewer types.Viewer) (*models.DashboardStats, error)

	GrantAccess(ctx context.Context, authUserID, postID, grantedBy string) error
	RevokeAccess(ctx context.Context, authUserID, postID string) error
	ListGrantsForUser(ctx context.Context, authUserID string) ([]*models.AccessGrant, error)
	ListGrantsForPost(ctx context.Context, postID string) ([]*models.AccessGrant, error)
	BulkGrantUsersToPost(ctx context.Context, authUserIDs []string, postID, grantedBy string) (int, error)
	BulkGrantPostsToUser(ctx context.Context, authUserID string, postIDs []string, grantedBy string) (int, error)

	CreateAuthUser(ctx context.Context, username, email, passwordHash, role string) (*models.AuthUser, error)
	FindAuthUserByEmail(ctx context.Context, email string) (*models.AuthUser, error)
	FindAuthUserByID(ctx context.Context, id string) (*models.AuthUser, error)
	ListAuthUsers(ctx context.Context) ([]*models.AuthUser, error)

	CreateScrapeJob(ctx context.Context, requestedBy, targetURL, targetType string, maxPosts int) (*models.ScrapeJob, error)
	UpdateScrapeJob(ctx context.Context, id, status, executionID, jobErr string) (*models.ScrapeJob, error)
	FindScrapeJob(ctx context.Context, id string, viewer types.Viewer) (*models.ScrapeJob, error)
	ListScrapeJobs(ctx context.Context, viewer types.Viewer, opts types.ListOptions) ([]*models.ScrapeJob, error)

	SeedDemoData(ctx context.Context) (*database.SeedSummary, error)
	ClearData(ctx context.Context) error
}

var _ Store = (*database.DB)(nil)

// Workflow starts scrape executions on the external engine.
type Workflow interface {
	Enabled() bool
	Trigger(ctx context.Context, job *models.ScrapeJob) (string, error)
}
