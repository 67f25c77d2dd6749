// Package notifications sends transactional email over SMTP.
package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

//go:embed templates/*.html
var templatesFS embed.FS

// SMTPConfig holds SMTP server configuration.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// Enabled reports whether enough configuration is present to send mail.
func (c SMTPConfig) Enabled() bool {
	return c.Host != "" && c.From != ""
}

// InvitationData carries the fields rendered into the invitation email.
type InvitationData struct {
	OrgName     string
	InviterName string
	InviteLink  string
	ExpiresAt   time.Time
}

// EmailSender sends templated email via SMTP.
type EmailSender struct {
	cfg       SMTPConfig
	templates *template.Template
	logger    zerolog.Logger
}

// NewEmailSender creates an EmailSender, parsing the embedded templates.
func NewEmailSender(cfg SMTPConfig, logger zerolog.Logger) (*EmailSender, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	return &EmailSender{
		cfg:       cfg,
		templates: tmpl,
		logger:    logger.With().Str("component", "email").Logger(),
	}, nil
}

// SendInvitation sends the organization invitation email.
func (s *EmailSender) SendInvitation(to []string, data InvitationData) error {
	subject := fmt.Sprintf("You've been invited to join %s on ScheduleHQ", data.OrgName)

	var body bytes.Buffer
	if err := s.templates.ExecuteTemplate(&body, "invitation.html", data); err != nil {
		return fmt.Errorf("render invitation template: %w", err)
	}

	return s.send(to, subject, body.String())
}

func (s *EmailSender) send(to []string, subject, htmlBody string) error {
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	if err := smtp.SendMail(addr, auth, s.cfg.From, to, msg.Bytes()); err != nil {
		return fmt.Errorf("send mail via %s: %w", addr, err)
	}

	s.logger.Info().Strs("to", to).Str("subject", subject).Msg("email sent")
	return nil
}
