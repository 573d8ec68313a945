// Package notifications delivers trending alerts and pass reports over the
// configured channels (webhook, email). Channels are independent: one
// failing does not stop the other.
package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"

	"github.com/slanglab/backend/internal/config"
	"github.com/slanglab/backend/internal/models"
)

// Service sends notifications via the configured channels.
type Service struct {
	config *config.Config
	client *resty.Client
}

// Ensure Service implements NotificationInterface
var _ NotificationInterface = (*Service)(nil)

// webhookMessage is the generic JSON payload posted to the alert webhook.
type webhookMessage struct {
	Title  string         `json:"title"`
	Text   string         `json:"text"`
	Fields []webhookField `json:"fields,omitempty"`
}

type webhookField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewService creates a new notification service.
func NewService(cfg *config.Config) *Service {
	return &Service{
		config: cfg,
		client: resty.New().SetTimeout(30 * time.Second),
	}
}

// SendTrendingAlert announces a term crossing into trending.
func (s *Service) SendTrendingAlert(term models.Term, record models.MonitoringRecord) error {
	message := &webhookMessage{
		Title: fmt.Sprintf("Trending: %q", term.CanonicalText),
		Text: fmt.Sprintf("%q reached a trending score of %d across %d finds",
			term.CanonicalText, record.TrendingScore, record.TimesFound),
		Fields: []webhookField{
			{Name: "Platforms", Value: strings.Join(record.Platforms, ", ")},
			{Name: "Status", Value: string(record.Status)},
		},
	}

	subject := fmt.Sprintf("SlangLab: %q is trending", term.CanonicalText)
	body := fmt.Sprintf(
		"<h2>%s is trending</h2><p>Trending score: %d<br>Times found: %d<br>Platforms: %s</p>",
		term.CanonicalText, record.TrendingScore, record.TimesFound,
		strings.Join(record.Platforms, ", "))

	return s.deliver(message, subject, body)
}

// SendPassReport summarizes a completed monitoring pass. Quiet passes with
// no failures and nothing newly trending are not worth a notification.
func (s *Service) SendPassReport(report *models.PassReport) error {
	if report.TermsFailed == 0 && len(report.NewlyTrending) == 0 {
		return nil
	}

	message := &webhookMessage{
		Title: "SlangLab monitoring pass",
		Text: fmt.Sprintf("Checked %d terms in %v (%d failed, %d sightings accepted)",
			report.TermsChecked, report.Duration.Round(time.Second), report.TermsFailed, report.SightingsAccepted),
	}
	if len(report.NewlyTrending) > 0 {
		message.Fields = append(message.Fields, webhookField{
			Name:  "Newly trending",
			Value: strings.Join(report.NewlyTrending, ", "),
		})
	}

	subject := "SlangLab monitoring pass report"
	body := fmt.Sprintf(
		"<h2>Monitoring pass</h2><p>Terms checked: %d<br>Failed: %d<br>Sightings accepted: %d<br>Newly trending: %s</p>",
		report.TermsChecked, report.TermsFailed, report.SightingsAccepted,
		strings.Join(report.NewlyTrending, ", "))

	return s.deliver(message, subject, body)
}

func (s *Service) deliver(message *webhookMessage, subject, htmlBody string) error {
	var errs []string

	if s.config.AlertWebhookURL != "" {
		if err := s.sendWebhook(message); err != nil {
			logrus.Errorf("Failed to send webhook notification: %v", err)
			errs = append(errs, fmt.Sprintf("webhook: %v", err))
		}
	}

	if s.config.AlertEmail != "" {
		if err := s.sendEmail(subject, htmlBody); err != nil {
			logrus.Errorf("Failed to send email notification: %v", err)
			errs = append(errs, fmt.Sprintf("email: %v", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (s *Service) sendWebhook(message *webhookMessage) error {
	resp, err := s.client.R().
		SetHeader("Content-Type", "application/json").
		SetBody(message).
		Post(s.config.AlertWebhookURL)
	if err != nil {
		return fmt.Errorf("failed to post webhook: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode(), string(resp.Body()))
	}
	return nil
}

func (s *Service) sendEmail(subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.config.SMTPUsername)
	m.SetHeader("To", s.config.AlertEmail)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	d := gomail.NewDialer(s.config.SMTPHost, s.config.SMTPPort, s.config.SMTPUsername, s.config.SMTPPassword)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
