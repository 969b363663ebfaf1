package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"sentiment-dashboard/internal/database/models"
	"sentiment-dashboard/internal/database/query"
	"sentiment-dashboard/pkg/types"
)

const jobColumns = `id, requested_by, target_url, target_type, max_posts, status, execution_id, error, created_at, updated_at`

func scanJob(row interface{ Scan(...interface{}) error }) (*models.ScrapeJob, error) {
	j := &models.ScrapeJob{}
	err := row.Scan(&j.ID, &j.RequestedBy, &j.TargetURL, &j.TargetType, &j.MaxPosts,
		&j.Status, &j.ExecutionID, &j.Error, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return j, nil
}

// CreateScrapeJob records a pending scrape request.
func (db *DB) CreateScrapeJob(ctx context.Context, requestedBy, targetURL, targetType string, maxPosts int) (*models.ScrapeJob, error) {
	var job *models.ScrapeJob
	err := db.withConn(ctx, "create_scrape_job", func(q querier) error {
		var err error
		job, err = scanJob(q.QueryRowContext(ctx, `
			INSERT INTO scrape_jobs (requested_by, target_url, target_type, max_posts, status)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING `+jobColumns, requestedBy, targetURL, targetType, maxPosts, models.JobPending))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create scrape job: %w", err)
	}
	return job, nil
}

// UpdateScrapeJob moves a job to status. executionID and jobErr are only
// written when non-empty.
func (db *DB) UpdateScrapeJob(ctx context.Context, id, status, executionID, jobErr string) (*models.ScrapeJob, error) {
	if !query.ValidID(id) {
		return nil, ErrNotFound
	}
	switch status {
	case models.JobPending, models.JobRunning, models.JobCompleted, models.JobFailed:
	default:
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
	}

	var job *models.ScrapeJob
	err := db.withConn(ctx, "update_scrape_job", func(q querier) error {
		var err error
		job, err = scanJob(q.QueryRowContext(ctx, `
			UPDATE scrape_jobs
			SET status = $2,
			    execution_id = COALESCE(NULLIF($3, ''), execution_id),
			    error = COALESCE(NULLIF($4, ''), error),
			    updated_at = NOW()
			WHERE id = $1
			RETURNING `+jobColumns, id, status, executionID, jobErr))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update scrape job: %w", err)
	}
	return job, nil
}

// FindScrapeJob returns ErrNotFound when a non-admin asks for another user's job.
func (db *DB) FindScrapeJob(ctx context.Context, id string, viewer types.Viewer) (*models.ScrapeJob, error) {
	if !query.ValidID(id) {
		return nil, ErrNotFound
	}

	b := query.NewBuilder()
	b.AddClause("id = " + b.Arg(id))
	if !viewer.IsAdmin() {
		b.AddUUIDEquals("requested_by", viewer.UserID)
		if viewer.UserID == "" {
			b.AddClause("FALSE")
		}
	}
	where, args := b.BuildWithPrefix()

	var job *models.ScrapeJob
	err := db.withConn(ctx, "find_scrape_job", func(q querier) error {
		var err error
		job, err = scanJob(q.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM scrape_jobs `+where, args...))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find scrape job: %w", err)
	}
	return job, nil
}

// ListScrapeJobs returns the viewer's own jobs, or every job for admins.
func (db *DB) ListScrapeJobs(ctx context.Context, viewer types.Viewer, opts types.ListOptions) ([]*models.ScrapeJob, error) {
	b := query.NewBuilder()
	if !viewer.IsAdmin() {
		if viewer.UserID == "" {
			b.AddClause("FALSE")
		}
		b.AddUUIDEquals("requested_by", viewer.UserID)
	}
	where, _ := b.BuildWithPrefix()
	page := b.Paginate(opts)

	jobs := []*models.ScrapeJob{}
	err := db.withConn(ctx, "list_scrape_jobs", func(q querier) error {
		rows, err := q.QueryContext(ctx, `SELECT `+jobColumns+` FROM scrape_jobs `+where+`
			ORDER BY created_at DESC, id DESC `+page, b.Args()...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			j, err := scanJob(rows)
			if err != nil {
				return err
			}
			jobs = append(jobs, j)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list scrape jobs: %w", err)
	}
	return jobs, nil
}
