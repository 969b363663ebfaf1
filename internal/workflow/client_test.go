package workflow

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sentiment-dashboard/internal/config"
	"sentiment-dashboard/internal/database/models"
)

func testJob() *models.ScrapeJob {
	return &models.ScrapeJob{
		ID:         "job-1",
		TargetURL:  "https://facebook.com/somepage",
		TargetType: "page",
		MaxPosts:   20,
	}
}

func newTestClient(t *testing.T, url string) *Client {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return NewClient(config.WorkflowConfig{
		WebhookURL:  url,
		CallbackURL: "http://api.local/api/webhooks/workflow",
		Timeout:     2 * time.Second,
	}, logger)
}

func TestTrigger_Success(t *testing.T) {
	var got TriggerRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"execution_id":"exec-42"}`))
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	id, err := c.Trigger(context.Background(), testJob())
	require.NoError(t, err)

	assert.Equal(t, "exec-42", id)
	assert.Equal(t, "job-1", got.JobID)
	assert.Equal(t, "page", got.Type)
	assert.Equal(t, 20, got.MaxPosts)
	assert.Equal(t, "http://api.local/api/webhooks/workflow", got.CallbackURL)
	assert.Equal(t, "closed", c.BreakerState())
}

func TestTrigger_FallsBackToID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"exec-7"}`))
	}))
	defer server.Close()

	id, err := newTestClient(t, server.URL).Trigger(context.Background(), testJob())
	require.NoError(t, err)
	assert.Equal(t, "exec-7", id)
}

func TestTrigger_Disabled(t *testing.T) {
	c := newTestClient(t, "")
	assert.False(t, c.Enabled())

	_, err := c.Trigger(context.Background(), testJob())
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestTrigger_BreakerOpensAfterFailures(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	c := newTestClient(t, server.URL)
	for i := 0; i < 5; i++ {
		_, err := c.Trigger(context.Background(), testJob())
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrUnavailable))
	}
	assert.Equal(t, "open", c.BreakerState())

	_, err := c.Trigger(context.Background(), testJob())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls))
}
