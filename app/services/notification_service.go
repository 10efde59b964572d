// Package services provides external service integrations and technical concerns like notifications and spreadsheets
package services

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"
)

// RMAEvent identifies which lifecycle transition a notification reports
type RMAEvent string

const (
	RMAEventOpened RMAEvent = "Opened"
	RMAEventClosed RMAEvent = "Closed"
)

// RMANotification carries everything an RMA lifecycle email needs
type RMANotification struct {
	Token              string
	CustomerEmail      string
	IssuesObserved     string
	DeviceSerialNumber string
	Event              RMAEvent
}

// NotificationService handles sending RMA lifecycle notifications via email
type NotificationService interface {
	SendRMAEmail(n RMANotification) error
}

// NotificationServiceImpl implements NotificationService
type NotificationServiceImpl struct {
	emailProvider EmailProvider
	senderName    string
}

// EmailProvider interface for email sending
type EmailProvider interface {
	SendEmail(email, subject, message string) error
}

// NewNotificationService creates a new notification service
func NewNotificationService(emailProvider EmailProvider, senderName string) NotificationService {
	return &NotificationServiceImpl{
		emailProvider: emailProvider,
		senderName:    senderName,
	}
}

// SendRMAEmail sends the lifecycle email for an RMA ticket
func (s *NotificationServiceImpl) SendRMAEmail(n RMANotification) error {
	if s.emailProvider == nil {
		return fmt.Errorf("email provider not configured")
	}

	// Basic email validation
	if len(n.CustomerEmail) == 0 || !strings.Contains(n.CustomerEmail, "@") {
		return fmt.Errorf("invalid email address: %s", n.CustomerEmail)
	}

	subject, body := s.composeRMAEmail(n)
	return s.emailProvider.SendEmail(n.CustomerEmail, subject, body)
}

func (s *NotificationServiceImpl) composeRMAEmail(n RMANotification) (subject, body string) {
	switch n.Event {
	case RMAEventClosed:
		subject = fmt.Sprintf("RMA Request Closed - Token No: %s", n.Token)
		body = fmt.Sprintf(`Dear Customer,

Your RMA request (#%s - %s - Device Serial Number: %s) has been closed.
Thank you for your patience while we processed this repair.

Best regards,
%s
`, n.Token, n.IssuesObserved, n.DeviceSerialNumber, s.senderName)
	default:
		subject = fmt.Sprintf("RMA Request Confirmation - Token No: %s", n.Token)
		body = fmt.Sprintf(`Dear Customer,

Thank you for submitting an RMA request.
Your request ticket (#%s - %s - Device Serial Number: %s) has been raised.
Your Token No is: %s
Please use this token for all communications regarding this repair.

Best regards,
%s
`, n.Token, n.IssuesObserved, n.DeviceSerialNumber, n.Token, s.senderName)
	}
	return subject, body
}

// SMTPEmailProvider sends mail through a plain-auth SMTP relay
type SMTPEmailProvider struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

func NewSMTPEmailProvider(host string, port int, username, password, from string) EmailProvider {
	return &SMTPEmailProvider{
		Host:     host,
		Port:     port,
		Username: username,
		Password: password,
		From:     from,
	}
}

func (p *SMTPEmailProvider) SendEmail(email, subject, message string) error {
	addr := fmt.Sprintf("%s:%d", p.Host, p.Port)
	auth := smtp.PlainAuth("", p.Username, p.Password, p.Host)

	msg := strings.Join([]string{
		"From: " + p.From,
		"To: " + email,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		message,
	}, "\r\n")

	if err := smtp.SendMail(addr, auth, p.From, []string{email}, []byte(msg)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", email, err)
	}
	return nil
}

// MockEmailProvider logs instead of sending, for development and tests
type MockEmailProvider struct{}

func NewMockEmailProvider() EmailProvider {
	return &MockEmailProvider{}
}

func (p *MockEmailProvider) SendEmail(email, subject, message string) error {
	log.Printf("Email sent to %s: %s", email, subject)
	return nil
}
