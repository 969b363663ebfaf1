// Package workflow forwards scrape requests to the external workflow engine.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"

	"sentiment-dashboard/internal/config"
	"sentiment-dashboard/internal/database/models"
	"sentiment-dashboard/internal/monitoring"
)

var (
	ErrDisabled    = errors.New("workflow webhook is not configured")
	ErrUnavailable = errors.New("workflow engine unavailable")
)

// TriggerRequest is the payload the workflow engine receives.
type TriggerRequest struct {
	JobID       string `json:"job_id"`
	URL         string `json:"url"`
	Type        string `json:"type"`
	MaxPosts    int    `json:"max_posts"`
	CallbackURL string `json:"callback_url,omitempty"`
}

type triggerResponse struct {
	ExecutionID string `json:"execution_id"`
	ID          string `json:"id"`
}

type Client struct {
	http        *resty.Client
	cb          *gobreaker.CircuitBreaker[string]
	webhookURL  string
	callbackURL string
	logger      *logrus.Logger
}

// NewClient builds a client for cfg. Calls go through a circuit breaker
// that opens after five consecutive failures and lets a trial call through after 30s.
func NewClient(cfg config.WorkflowConfig, logger *logrus.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	httpClient := resty.New().
		SetTimeout(timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500*time.Millisecond).
		SetHeader("Content-Type", "application/json").
		SetJSONMarshaler(json.Marshal).
		SetJSONUnmarshaler(json.Unmarshal)

	c := &Client{
		http:        httpClient,
		webhookURL:  cfg.WebhookURL,
		callbackURL: cfg.CallbackURL,
		logger:      logger,
	}

	c.cb = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "workflow",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Workflow circuit breaker changed state")
		},
	})

	return c
}

// Enabled reports whether a webhook URL is configured.
func (c *Client) Enabled() bool {
	return c.webhookURL != ""
}

// BreakerState returns closed, half-open or open.
func (c *Client) BreakerState() string {
	return c.cb.State().String()
}

// Trigger starts a scrape for job and returns the engine's execution id.
func (c *Client) Trigger(ctx context.Context, job *models.ScrapeJob) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}

	payload := TriggerRequest{
		JobID:       job.ID,
		URL:         job.TargetURL,
		Type:        job.TargetType,
		MaxPosts:    job.MaxPosts,
		CallbackURL: c.callbackURL,
	}

	executionID, err := c.cb.Execute(func() (string, error) {
		return c.post(ctx, payload)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			monitoring.RecordWorkflowCall("rejected")
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		monitoring.RecordWorkflowCall("error")
		c.logger.WithError(err).WithField("job_id", job.ID).Error("Failed to trigger workflow")
		return "", err
	}

	monitoring.RecordWorkflowCall("success")
	c.logger.WithFields(logrus.Fields{
		"job_id":       job.ID,
		"execution_id": executionID,
	}).Info("Triggered scrape workflow")
	return executionID, nil
}

func (c *Client) post(ctx context.Context, payload TriggerRequest) (string, error) {
	var out triggerResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(&out).
		Post(c.webhookURL)
	if err != nil {
		return "", fmt.Errorf("failed to call workflow webhook: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("workflow webhook returned %d: %s", resp.StatusCode(), resp.String())
	}

	if out.ExecutionID != "" {
		return out.ExecutionID, nil
	}
	return out.ID, nil
}
