package utils

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/smtp"
	"strings"

	"storefront-backend/logger"
)

type EmailConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

var ErrSMTPNotConfigured = errors.New("SMTP not configured")

// Mailer sends transactional emails over SMTP. Sends happen in the background
// and failures are only logged.
type Mailer struct {
	config EmailConfig
	log    *logger.Logger
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailer(cfg EmailConfig, log *logger.Logger) *Mailer {
	return &Mailer{config: cfg, log: log, send: smtp.SendMail}
}

func (m *Mailer) Configured() bool {
	return m.config.Host != "" && m.config.Port != "" && m.config.From != ""
}

func (m *Mailer) SendEmail(to, subject, htmlBody string) error {
	if !m.Configured() {
		return ErrSMTPNotConfigured
	}

	headers := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n",
		m.config.From, to, subject)
	msg := []byte(headers + htmlBody)

	var auth smtp.Auth
	if m.config.Username != "" && m.config.Password != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}

	return m.send(m.config.Host+":"+m.config.Port, auth, m.config.From, []string{to}, msg)
}

func (m *Mailer) SendWelcomeEmail(ctx context.Context, email, name string) {
	body := fmt.Sprintf(`<h2>Welcome, %s!</h2>
<p>Thank you for creating your account. You can now place orders and track them from your account page.</p>
<p>Happy shopping!</p>`, html.EscapeString(firstName(name)))
	m.dispatch(ctx, email, "Welcome to the store!", body)
}

func (m *Mailer) SendOrderConfirmation(ctx context.Context, email, name, orderNumber, total string) {
	subject := fmt.Sprintf("Order Confirmed - %s", orderNumber)
	body := fmt.Sprintf(`<h2>Order Confirmed!</h2>
<p>Hi %s,</p>
<p>Your order <strong>%s</strong> has been placed successfully.</p>
<p>Order total: <strong>$%s</strong> (cash on delivery)</p>
<p>We'll notify you when your order status changes.</p>`,
		html.EscapeString(firstName(name)), html.EscapeString(orderNumber), html.EscapeString(total))
	m.dispatch(ctx, email, subject, body)
}

func (m *Mailer) dispatch(ctx context.Context, to, subject, body string) {
	if !m.Configured() {
		return
	}
	logCtx := m.log.WithField(context.WithoutCancel(ctx), "email_to", to)
	go func() {
		if err := m.SendEmail(to, subject, body); err != nil {
			m.log.Error(logCtx, "failed to send email", err)
		}
	}()
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}
