package emailsvc

import (
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spist/campus/core"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func newMessage(t *testing.T) *core.EmailMessage {
	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: "Ana Cruz", Address: "ana@spist.edu"}},
		Cc:      []mail.Address{{Address: "registrar@spist.edu"}},
		Subject: "Enrollment approved",
		BodyStr: "You are now enrolled in CS101.",
	}
	require.NoError(t, msg.Attach(strings.NewReader("BEGIN:VCALENDAR"), "event.ics", "text/calendar"))
	return msg
}

func TestConsoleServiceMock_SendMessages(t *testing.T) {
	ResetSentMessages()
	svc := NewConsoleServiceMock(nopLogger{}, core.Conf)

	svc.SendMessages(newMessage(t), &core.EmailMessage{Subject: "no recipients", BodyStr: "dropped"})

	sent := LastSentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "Enrollment approved", sent[0].Subject)
	assert.Equal(t, "You are now enrolled in CS101.", sent[0].TextContent)
}

func TestSMTPService_prepare(t *testing.T) {
	svc := NewSMTPService(nopLogger{}, core.Conf)
	msg := newMessage(t)
	require.NoError(t, msg.Render())

	m := svc.prepare(*msg)
	assert.Equal(t, []string{"[" + core.Conf.AppName + "] Enrollment approved"}, m.GetHeader("Subject"))
	assert.Equal(t, []string{`"Ana Cruz" <ana@spist.edu>`}, m.GetHeader("To"))
	assert.Equal(t, []string{"<registrar@spist.edu>"}, m.GetHeader("Cc"))
	assert.Empty(t, m.GetHeader("Bcc"))
}

func TestSendgridService_prepare(t *testing.T) {
	svc := NewSendgridService(nopLogger{}, core.Conf)
	msg := newMessage(t)
	require.NoError(t, msg.Render())

	m := svc.prepare(*msg)
	require.Len(t, m.Personalizations, 1)
	assert.Len(t, m.Personalizations[0].To, 1)
	assert.Len(t, m.Personalizations[0].CC, 1)
	require.Len(t, m.Content, 1)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	require.Len(t, m.Attachments, 1)
	assert.Equal(t, "QkVHSU46VkNBTEVOREFS", m.Attachments[0].Content)
}

func TestNewService(t *testing.T) {
	conf := *core.Conf
	conf.Email.Backend = "smtp"
	assert.IsType(t, &smtpService{}, NewService(nopLogger{}, &conf))
	conf.Email.Backend = "sendgrid"
	assert.IsType(t, &sendgridService{}, NewService(nopLogger{}, &conf))
	conf.Email.Backend = ""
	assert.IsType(t, &consoleService{}, NewService(nopLogger{}, &conf))
}
