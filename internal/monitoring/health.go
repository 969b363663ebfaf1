package monitoring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
	StatusDown     = "unhealthy"
)

// Pinger is satisfied by *database.DB.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerReporter is satisfied by *workflow.Client.
type BreakerReporter interface {
	BreakerState() string
}

type HealthReport struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Uptime    string            `json:"uptime"`
	CheckedAt time.Time         `json:"checked_at"`
	Warnings  []string          `json:"warnings,omitempty"`
}

type Monitor struct {
	db      Pinger
	breaker BreakerReporter
	logger  *logrus.Logger
	started time.Time
}

// NewMonitor builds a health monitor. breaker may be nil when no workflow
// engine is configured.
func NewMonitor(logger *logrus.Logger, db Pinger, breaker BreakerReporter) *Monitor {
	return &Monitor{
		db:      db,
		breaker: breaker,
		logger:  logger,
		started: time.Now(),
	}
}

// HealthStatus pings the database and reads the breaker. A database failure
// makes the service unhealthy; an open breaker only degrades it.
func (m *Monitor) HealthStatus(ctx context.Context) HealthReport {
	report := HealthReport{
		Status:    StatusHealthy,
		Checks:    map[string]string{},
		Uptime:    time.Since(m.started).Round(time.Second).String(),
		CheckedAt: time.Now().UTC(),
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := m.db.Ping(pingCtx); err != nil {
		report.Status = StatusDown
		report.Checks["database"] = "down"
		report.Warnings = append(report.Warnings, fmt.Sprintf("database ping failed: %v", err))
	} else {
		report.Checks["database"] = "up"
	}

	if m.breaker == nil {
		report.Checks["workflow"] = "disabled"
		return report
	}
	state := m.breaker.BreakerState()
	report.Checks["workflow"] = state
	if state != "closed" {
		if report.Status == StatusHealthy {
			report.Status = StatusDegraded
		}
		report.Warnings = append(report.Warnings, "workflow circuit breaker is "+state)
	}
	return report
}

// GenerateReport renders a health report for terminals.
func (m *Monitor) GenerateReport(ctx context.Context) string {
	report := m.HealthStatus(ctx)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Sentiment Dashboard Health Report\n")
	fmt.Fprintf(&sb, "=================================\n")
	fmt.Fprintf(&sb, "Generated: %s\n\n", report.CheckedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&sb, "- Status: %s\n", report.Status)
	fmt.Fprintf(&sb, "- Database: %s\n", report.Checks["database"])
	fmt.Fprintf(&sb, "- Workflow breaker: %s\n", report.Checks["workflow"])
	for _, w := range report.Warnings {
		fmt.Fprintf(&sb, "- Warning: %s\n", w)
	}
	return sb.String()
}

// AlertManager turns health warnings into alerts.
type AlertManager struct {
	monitor *Monitor
	logger  *logrus.Logger
}

func NewAlertManager(monitor *Monitor, logger *logrus.Logger) *AlertManager {
	return &AlertManager{
		monitor: monitor,
		logger:  logger,
	}
}

func (am *AlertManager) CheckAlerts(ctx context.Context) []string {
	report := am.monitor.HealthStatus(ctx)

	var alerts []string
	for _, w := range report.Warnings {
		alerts = append(alerts, "ALERT: "+w)
	}
	return alerts
}

func (am *AlertManager) SendAlerts(alerts []string) {
	for _, alert := range alerts {
		am.logger.Warn(alert)
	}
}
