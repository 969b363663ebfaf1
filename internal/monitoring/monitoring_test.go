package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

type fakeBreaker string

func (f fakeBreaker) BreakerState() string { return string(f) }

func TestObserveQuery_CountsErrors(t *testing.T) {
	before := testutil.ToFloat64(DBQueryErrors.WithLabelValues("test_op"))

	ObserveQuery("test_op", 5*time.Millisecond, nil)
	ObserveQuery("test_op", 5*time.Millisecond, errors.New("connection refused"))
	ObserveQuery("test_op", 5*time.Millisecond, context.Canceled)

	after := testutil.ToFloat64(DBQueryErrors.WithLabelValues("test_op"))
	assert.Equal(t, before+1, after)
}

func TestRecordAccessDenied(t *testing.T) {
	before := testutil.ToFloat64(AccessDenied.WithLabelValues("comment"))
	RecordAccessDenied("comment")
	RecordAccessDenied("comment")
	assert.Equal(t, before+2, testutil.ToFloat64(AccessDenied.WithLabelValues("comment")))
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/posts/{id}", "404"))
	RecordAPIRequest("GET", "/api/posts/{id}", 404, time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/posts/{id}", "404")))

	before = testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "unmatched", "404"))
	RecordAPIRequest("GET", "", 404, time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "unmatched", "404")))
}

func TestRecordWorkflowCall(t *testing.T) {
	before := testutil.ToFloat64(WorkflowCalls.WithLabelValues("rejected"))
	RecordWorkflowCall("rejected")
	assert.Equal(t, before+1, testutil.ToFloat64(WorkflowCalls.WithLabelValues("rejected")))
}

func TestHealthStatus(t *testing.T) {
	logger, _ := test.NewNullLogger()

	tests := []struct {
		name    string
		db      Pinger
		breaker BreakerReporter
		status  string
		checks  map[string]string
	}{
		{"all up", fakePinger{}, fakeBreaker("closed"), StatusHealthy, map[string]string{"database": "up", "workflow": "closed"}},
		{"no workflow", fakePinger{}, nil, StatusHealthy, map[string]string{"database": "up", "workflow": "disabled"}},
		{"breaker open", fakePinger{}, fakeBreaker("open"), StatusDegraded, map[string]string{"database": "up", "workflow": "open"}},
		{"database down", fakePinger{err: errors.New("refused")}, fakeBreaker("open"), StatusDown, map[string]string{"database": "down", "workflow": "open"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitor(logger, tt.db, tt.breaker)
			report := m.HealthStatus(context.Background())
			assert.Equal(t, tt.status, report.Status)
			assert.Equal(t, tt.checks, report.Checks)
		})
	}
}

func TestAlertManager(t *testing.T) {
	logger, hook := test.NewNullLogger()
	m := NewMonitor(logger, fakePinger{err: errors.New("refused")}, fakeBreaker("open"))
	am := NewAlertManager(m, logger)

	alerts := am.CheckAlerts(context.Background())
	require.Len(t, alerts, 2)
	assert.Contains(t, alerts[0], "database ping failed")

	am.SendAlerts(alerts)
	require.Len(t, hook.AllEntries(), 2)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
}

func TestGenerateReport(t *testing.T) {
	logger, _ := test.NewNullLogger()
	m := NewMonitor(logger, fakePinger{}, fakeBreaker("half-open"))

	out := m.GenerateReport(context.Background())
	assert.Contains(t, out, "Status: degraded")
	assert.Contains(t, out, "Workflow breaker: half-open")
}
