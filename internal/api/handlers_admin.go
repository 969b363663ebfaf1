package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"sentiment-dashboard/internal/auth"
	"sentiment-dashboard/internal/database/models"
	"sentiment-dashboard/pkg/types"
)

type grantRequest struct {
	AuthUserID string `json:"auth_user_id" validate:"required,uuid"`
	PostID     string `json:"post_id" validate:"required,uuid"`
}

type bulkUsersRequest struct {
	PostID      string   `json:"post_id" validate:"required"`
	AuthUserIDs []string `json:"user_ids" validate:"required,min=1,dive,required"`
}

type bulkPostsRequest struct {
	AuthUserID string   `json:"auth_user_id" validate:"required"`
	PostIDs    []string `json:"post_ids" validate:"required,min=1,dive,required"`
}

type createAuthUserRequest struct {
	Username string `json:"username" validate:"required,min=3,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	Role     string `json:"role" validate:"omitempty,oneof=user admin"`
}

type bulkResult struct {
	Granted int `json:"granted"`
}

func (s *Server) handleGrant(w http.ResponseWriter, r *http.Request) {
	var req grantRequest
	if err := decodeAndValidate(r, &req); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	admin := viewerFrom(r)
	if err := s.store.GrantAccess(r.Context(), req.AuthUserID, req.PostID, admin.UserID); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.logger.WithFields(logrus.Fields{
		"auth_user_id": req.AuthUserID,
		"post_id":      req.PostID,
		"granted_by":   admin.UserID,
	}).Info("Granted post access")
	s.writeData(w, http.StatusCreated, req)
}

func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request) {
	userID, postID := chi.URLParam(r, "userID"), chi.URLParam(r, "postID")
	if err := s.store.RevokeAccess(r.Context(), userID, postID); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGrantsForUser(w http.ResponseWriter, r *http.Request) {
	s.writeGrants(w, r, func() ([]*models.AccessGrant, error) {
		return s.store.ListGrantsForUser(r.Context(), chi.URLParam(r, "id"))
	})
}

func (s *Server) handleGrantsForPost(w http.ResponseWriter, r *http.Request) {
	s.writeGrants(w, r, func() ([]*models.AccessGrant, error) {
		return s.store.ListGrantsForPost(r.Context(), chi.URLParam(r, "id"))
	})
}

func (s *Server) writeGrants(w http.ResponseWriter, r *http.Request, list func() ([]*models.AccessGrant, error)) {
	grants, err := list()
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if grants == nil {
		grants = []*models.AccessGrant{}
	}
	s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: grants, Count: len(grants)})
}

func (s *Server) handleBulkGrantUsers(w http.ResponseWriter, r *http.Request) {
	var req bulkUsersRequest
	if err := decodeAndValidate(r, &req); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	n, err := s.store.BulkGrantUsersToPost(r.Context(), req.AuthUserIDs, req.PostID, viewerFrom(r).UserID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, bulkResult{Granted: n})
}

func (s *Server) handleBulkGrantPosts(w http.ResponseWriter, r *http.Request) {
	var req bulkPostsRequest
	if err := decodeAndValidate(r, &req); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	n, err := s.store.BulkGrantPostsToUser(r.Context(), req.AuthUserID, req.PostIDs, viewerFrom(r).UserID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, bulkResult{Granted: n})
}

func (s *Server) handleListAuthUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.store.ListAuthUsers(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if users == nil {
		users = []*models.AuthUser{}
	}
	s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: users, Count: len(users)})
}

func (s *Server) handleCreateAuthUser(w http.ResponseWriter, r *http.Request) {
	var req createAuthUserRequest
	if err := decodeAndValidate(r, &req); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if req.Role == "" {
		req.Role = types.RoleUser
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	user, err := s.store.CreateAuthUser(r.Context(), req.Username, req.Email, hash, req.Role)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeData(w, http.StatusCreated, user)
}

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	summary, err := s.store.SeedDemoData(r.Context())
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.logger.WithField("admin", viewerFrom(r).UserID).Info("Seeded demo data")
	s.writeData(w, http.StatusCreated, summary)
}

func (s *Server) handleClearData(w http.ResponseWriter, r *http.Request) {
	if err := s.store.ClearData(r.Context()); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.logger.WithField("admin", viewerFrom(r).UserID).Warn("Cleared dashboard data")
	w.WriteHeader(http.StatusNoContent)
}
