package notifications

import (
	"bytes"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPConfigEnabled(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SMTPConfig
		enabled bool
	}{
		{"empty", SMTPConfig{}, false},
		{"host only", SMTPConfig{Host: "smtp.example.com"}, false},
		{"from only", SMTPConfig{From: "noreply@example.com"}, false},
		{"host and from", SMTPConfig{Host: "smtp.example.com", From: "noreply@example.com"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.enabled, tt.cfg.Enabled())
		})
	}
}

func TestInvitationTemplateRenders(t *testing.T) {
	sender, err := NewEmailSender(SMTPConfig{}, zerolog.Nop())
	require.NoError(t, err)

	data := InvitationData{
		OrgName:     "Acme Corp",
		InviterName: "Jordan Smith",
		InviteLink:  "https://app.example.com/invite/abc123",
		ExpiresAt:   time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
	}

	var body bytes.Buffer
	err = sender.templates.ExecuteTemplate(&body, "invitation.html", data)
	require.NoError(t, err)

	html := body.String()
	assert.Contains(t, html, "Acme Corp")
	assert.Contains(t, html, "Jordan Smith")
	assert.Contains(t, html, "https://app.example.com/invite/abc123")
	assert.Contains(t, html, "March 15, 2026")
}

func TestInvitationTemplateEscapesHTML(t *testing.T) {
	sender, err := NewEmailSender(SMTPConfig{}, zerolog.Nop())
	require.NoError(t, err)

	data := InvitationData{
		OrgName:     "<script>alert(1)</script>",
		InviterName: "Jordan",
		InviteLink:  "https://app.example.com/invite/abc123",
		ExpiresAt:   time.Now().Add(24 * time.Hour),
	}

	var body bytes.Buffer
	err = sender.templates.ExecuteTemplate(&body, "invitation.html", data)
	require.NoError(t, err)

	assert.NotContains(t, body.String(), "<script>")
}
