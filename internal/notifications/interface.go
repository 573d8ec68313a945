package notifications

import "github.com/slanglab/backend/internal/models"

// NotificationInterface defines the contract for notification delivery.
type NotificationInterface interface {
	SendTrendingAlert(term models.Term, record models.MonitoringRecord) error
	SendPassReport(report *models.PassReport) error
}
