package api

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"sentiment-dashboard/internal/database/models"
	"sentiment-dashboard/internal/utils"
	"sentiment-dashboard/pkg/types"
)

// serveList runs the page query and the matching count, then writes both.
func serveList[T any](s *Server, w http.ResponseWriter, r *http.Request, opts types.ListOptions,
	find func(context.Context) ([]T, error), count func(context.Context) (int, error)) {
	items, err := find(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	total, err := count(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if items == nil {
		items = []T{}
	}
	s.writeList(w, items, len(items), total, opts)
}

func serveOne[T any](s *Server, w http.ResponseWriter, r *http.Request, find func(context.Context) (T, error)) {
	item, err := find(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, item)
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r)
	opts := types.ParsePostQueryOptions(r.URL.Query())
	serveList(s, w, r, opts.ListOptions,
		func(ctx context.Context) ([]*models.Post, error) {
			return s.store.FindAllPostsWithAccess(ctx, viewer, opts)
		},
		func(ctx context.Context) (int, error) {
			return s.store.CountPostsWithAccess(ctx, viewer, opts)
		})
}

func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r)
	opts := types.ParsePostQueryOptions(r.URL.Query())
	id := chi.URLParam(r, "id")
	serveOne(s, w, r, func(ctx context.Context) (*models.Post, error) {
		return s.store.FindPostByIDWithAccess(ctx, id, viewer, opts)
	})
}

func (s *Server) handlePostCommenters(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r)
	opts := types.CommenterQueryOptions{ListOptions: types.ParseListOptions(r.URL.Query())}
	commenters, err := s.store.PostCommenters(r.Context(), chi.URLParam(r, "id"), viewer, opts)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if commenters == nil {
		commenters = []models.Commenter{}
	}
	s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: commenters, Count: len(commenters)})
}

func (s *Server) handlePostSentimentSummary(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r)
	id := chi.URLParam(r, "id")
	serveOne(s, w, r, func(ctx context.Context) (*models.SentimentSummary, error) {
		return s.store.PostSentimentSummary(ctx, id, viewer)
	})
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r)
	opts := types.ParseCommentQueryOptions(r.URL.Query())
	serveList(s, w, r, opts.ListOptions,
		func(ctx context.Context) ([]*models.Comment, error) {
			return s.store.FindAllCommentsWithAccess(ctx, viewer, opts)
		},
		func(ctx context.Context) (int, error) {
			return s.store.CountCommentsWithAccess(ctx, viewer, opts)
		})
}

func (s *Server) handleGetComment(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r)
	opts := types.ParseCommentQueryOptions(r.URL.Query())
	id := chi.URLParam(r, "id")
	serveOne(s, w, r, func(ctx context.Context) (*models.Comment, error) {
		return s.store.FindCommentByIDWithAccess(ctx, id, viewer, opts)
	})
}

func (s *Server) handleListSentiments(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r)
	opts := types.ParseSentimentQueryOptions(r.URL.Query())
	serveList(s, w, r, opts.ListOptions,
		func(ctx context.Context) ([]*models.Sentiment, error) {
			return s.store.FindAllSentimentsWithAccess(ctx, viewer, opts)
		},
		func(ctx context.Context) (int, error) {
			return s.store.CountSentimentsWithAccess(ctx, viewer, opts)
		})
}

func (s *Server) handleGetSentiment(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r)
	id := chi.URLParam(r, "id")
	serveOne(s, w, r, func(ctx context.Context) (*models.Sentiment, error) {
		return s.store.FindSentimentByIDWithAccess(ctx, id, viewer)
	})
}

func (s *Server) handleSentimentTrend(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r)
	opts := types.ParseTrendOptions(r.URL.Query())
	trend, err := s.store.SentimentTrend(r.Context(), viewer, opts)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: trend, Count: len(trend)})
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r)
	opts := types.ParseUserQueryOptions(r.URL.Query())
	serveList(s, w, r, opts.ListOptions,
		func(ctx context.Context) ([]*models.User, error) {
			return s.store.FindAllUsersWithAccess(ctx, viewer, opts)
		},
		func(ctx context.Context) (int, error) {
			return s.store.CountUsersWithAccess(ctx, viewer, opts)
		})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r)
	opts := types.ParseUserQueryOptions(r.URL.Query())
	id := chi.URLParam(r, "id")
	serveOne(s, w, r, func(ctx context.Context) (*models.User, error) {
		return s.store.FindUserByIDWithAccess(ctx, id, viewer, opts)
	})
}

func (s *Server) handleUserPosts(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r)
	opts := types.UserPostQueryOptions{ListOptions: types.ParseListOptions(r.URL.Query())}
	posts, err := s.store.UserCommentedPosts(r.Context(), chi.URLParam(r, "id"), viewer, opts)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if posts == nil {
		posts = []models.UserPostActivity{}
	}
	s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: posts, Count: len(posts)})
}

func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r)
	opts := types.ParsePageQueryOptions(r.URL.Query())
	serveList(s, w, r, opts.ListOptions,
		func(ctx context.Context) ([]*models.Page, error) {
			return s.store.FindAllPagesWithAccess(ctx, viewer, opts)
		},
		func(ctx context.Context) (int, error) {
			return s.store.CountPagesWithAccess(ctx, viewer, opts)
		})
}

func (s *Server) handleGetPage(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r)
	opts := types.ParsePageQueryOptions(r.URL.Query())
	id := chi.URLParam(r, "id")
	serveOne(s, w, r, func(ctx context.Context) (*models.Page, error) {
		return s.store.FindPageByIDWithAccess(ctx, id, viewer, opts)
	})
}

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r)
	serveOne(s, w, r, func(ctx context.Context) (*models.DashboardStats, error) {
		return s.store.DashboardStats(ctx, viewer)
	})
}

// handleExportPosts streams the caller's visible posts as CSV.
func (s *Server) handleExportPosts(w http.ResponseWriter, r *http.Request) {
	viewer := viewerFrom(r)
	opts := types.ParsePostQueryOptions(r.URL.Query())
	if r.URL.Query().Get("limit") == "" {
		opts.Limit = types.MaxLimit
	}
	opts.IncludePage = true

	posts, err := s.store.FindAllPostsWithAccess(r.Context(), viewer, opts)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=posts_%s.csv", time.Now().UTC().Format("2006-01-02")))

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"ID", "Page", "URL", "Content", "Comments", "Reactions", "Engagement", "Posted At"})
	for _, p := range posts {
		pageName := ""
		if p.Page != nil {
			pageName = deref(p.Page.Name)
		}
		postedAt := ""
		if p.PostedAt != nil {
			postedAt = utils.FormatTimestamp(*p.PostedAt)
		}
		_ = cw.Write([]string{
			p.ID,
			pageName,
			deref(p.URL),
			deref(p.Content),
			strconv.Itoa(p.CommentCount),
			strconv.Itoa(p.ReactionCount),
			strconv.Itoa(p.EngagementScore),
			postedAt,
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		s.logger.WithError(err).Debug("Failed to write CSV export")
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
