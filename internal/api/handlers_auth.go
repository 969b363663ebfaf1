package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"sentiment-dashboard/internal/auth"
	"sentiment-dashboard/internal/database"
	"sentiment-dashboard/internal/database/models"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token     string           `json:"token"`
	ExpiresAt time.Time        `json:"expires_at"`
	User      *models.AuthUser `json:"user"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeAndValidate(r, &req); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	user, err := s.store.FindAuthUserByEmail(r.Context(), strings.ToLower(req.Email))
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		s.writeStoreError(w, r, err)
		return
	}
	// unknown email and wrong password look the same
	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		s.writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid email or password")
		return
	}

	token, expires, err := s.tokens.GenerateToken(user)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	s.logger.WithField("user_id", user.ID).Info("User logged in")
	s.writeData(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expires, User: user})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	user, err := s.store.FindAuthUserByID(r.Context(), viewerFrom(r).UserID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, user)
}
