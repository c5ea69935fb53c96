package notify

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMTPConfigIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   SMTPConfig
		expected bool
	}{
		{name: "empty config", config: SMTPConfig{}, expected: false},
		{name: "missing host", config: SMTPConfig{Port: "587", From: "cal@example.com"}, expected: false},
		{name: "missing from", config: SMTPConfig{Host: "smtp.example.com", Port: "587"}, expected: false},
		{name: "fully configured", config: SMTPConfig{Host: "smtp.example.com", Port: "587", From: "cal@example.com"}, expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.config.IsConfigured())
		})
	}
}

func TestSMTPDispatcherBuildsMultipartMessage(t *testing.T) {
	d := NewSMTPDispatcher(SMTPConfig{Host: "smtp.example.com", Port: "587", From: "cal@example.com", FromName: "Content Calendar"})

	var gotAddr string
	var gotTo []string
	var gotBody string
	d.send = func(addr string, _ smtp.Auth, _ string, to []string, msg []byte) error {
		gotAddr, gotTo, gotBody = addr, to, string(msg)
		return nil
	}

	err := d.Send(context.Background(), Message{To: "editor@example.com", Subject: "Due soon", HTML: "<p>hi</p>", Type: TypeReminder})
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, []string{"editor@example.com"}, gotTo)
	assert.True(t, strings.HasPrefix(gotBody, "To: editor@example.com\r\n"))
	assert.Contains(t, gotBody, "From: Content Calendar <cal@example.com>")
	assert.Contains(t, gotBody, "X-Contentcal-Type: reminder")
	assert.Contains(t, gotBody, "<p>hi</p>")
	assert.Contains(t, gotBody, "--boundary-contentcal--")
}

func TestSMTPDispatcherRequiresConfig(t *testing.T) {
	err := NewSMTPDispatcher(SMTPConfig{}).Send(context.Background(), Message{To: "a@example.com"})
	require.Error(t, err)
}

func TestLogDispatcherNeverFails(t *testing.T) {
	require.NoError(t, NewLogDispatcher(nil).Send(context.Background(), Message{To: "a@example.com"}))
}
