package utils

import (
	"net/smtp"
	"testing"

	"storefront-backend/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendEmailNotConfigured(t *testing.T) {
	m := NewMailer(EmailConfig{}, logger.Nop())
	assert.False(t, m.Configured())
	assert.ErrorIs(t, m.SendEmail("a@test.com", "hi", "<p>hi</p>"), ErrSMTPNotConfigured)
}

func TestSendEmailBuildsMessage(t *testing.T) {
	m := NewMailer(EmailConfig{Host: "smtp.test", Port: "2525", From: "shop@test.com", Username: "u", Password: "p"}, logger.Nop())

	var gotAddr, gotFrom string
	var gotTo []string
	var gotMsg []byte
	var gotAuth smtp.Auth
	m.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		gotAddr, gotAuth, gotFrom, gotTo, gotMsg = addr, a, from, to, msg
		return nil
	}

	require.NoError(t, m.SendEmail("buyer@test.com", "Order Confirmed", "<p>thanks</p>"))
	assert.Equal(t, "smtp.test:2525", gotAddr)
	assert.NotNil(t, gotAuth)
	assert.Equal(t, "shop@test.com", gotFrom)
	assert.Equal(t, []string{"buyer@test.com"}, gotTo)
	assert.Contains(t, string(gotMsg), "Subject: Order Confirmed\r\n")
	assert.Contains(t, string(gotMsg), "<p>thanks</p>")
}

func TestFirstName(t *testing.T) {
	assert.Equal(t, "Ada", firstName("Ada Lovelace"))
	assert.Equal(t, "there", firstName("  "))
}
