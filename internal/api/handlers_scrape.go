package api

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"sentiment-dashboard/internal/database/models"
	"sentiment-dashboard/pkg/types"
)

const (
	workflowSecretHeader = "X-Workflow-Secret"
	defaultMaxPosts      = 20
)

type scrapeRequest struct {
	URL      string `json:"url" validate:"required,url"`
	Type     string `json:"type" validate:"required,oneof=page post"`
	MaxPosts int    `json:"max_posts" validate:"omitempty,min=1,max=500"`
}

type workflowCallback struct {
	JobID       string `json:"job_id" validate:"required,uuid"`
	Status      string `json:"status" validate:"required,oneof=running completed failed"`
	ExecutionID string `json:"execution_id"`
	Error       string `json:"error"`
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	if s.workflow == nil || !s.workflow.Enabled() {
		s.writeError(w, http.StatusServiceUnavailable, CodeUnavailable, "scraping is not configured")
		return
	}

	var req scrapeRequest
	if err := decodeAndValidate(r, &req); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if req.MaxPosts == 0 {
		req.MaxPosts = defaultMaxPosts
	}

	viewer := viewerFrom(r)
	job, err := s.store.CreateScrapeJob(r.Context(), viewer.UserID, req.URL, req.Type, req.MaxPosts)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	executionID, triggerErr := s.workflow.Trigger(r.Context(), job)
	if triggerErr != nil {
		if updated, err := s.store.UpdateScrapeJob(r.Context(), job.ID, models.JobFailed, "", triggerErr.Error()); err == nil {
			job = updated
		}
		s.writeJSON(w, http.StatusBadGateway, APIResponse{
			Success: false,
			Data:    job,
			Error:   "failed to start scrape",
			Code:    CodeUpstream,
		})
		return
	}

	job, err = s.store.UpdateScrapeJob(r.Context(), job.ID, models.JobRunning, executionID, "")
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeData(w, http.StatusAccepted, job)
}

func (s *Server) handleListScrapeJobs(w http.ResponseWriter, r *http.Request) {
	opts := types.ParseListOptions(r.URL.Query())
	jobs, err := s.store.ListScrapeJobs(r.Context(), viewerFrom(r), opts)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if jobs == nil {
		jobs = []*models.ScrapeJob{}
	}
	s.writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: jobs, Count: len(jobs)})
}

func (s *Server) handleGetScrapeJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.store.FindScrapeJob(r.Context(), chi.URLParam(r, "id"), viewerFrom(r))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.writeData(w, http.StatusOK, job)
}

// handleWorkflowCallback is called by the workflow engine, not by users.
func (s *Server) handleWorkflowCallback(w http.ResponseWriter, r *http.Request) {
	got := r.Header.Get(workflowSecretHeader)
	if s.callbackSecret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(s.callbackSecret)) != 1 {
		s.writeError(w, http.StatusUnauthorized, CodeUnauthorized, "invalid workflow secret")
		return
	}

	var req workflowCallback
	if err := decodeAndValidate(r, &req); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	job, err := s.store.UpdateScrapeJob(r.Context(), req.JobID, req.Status, req.ExecutionID, req.Error)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.logger.WithFields(logrus.Fields{
		"job_id": job.ID,
		"status": job.Status,
	}).Info("Scrape job updated by workflow")
	s.writeData(w, http.StatusOK, job)
}
