package smssvc

import (
	"context"
	"sync"

	"github.com/spist/campus/core"
)

// Message is a text message recorded by the console service.
type Message struct {
	To   string
	Body string
}

type consoleService struct {
	logger core.Logger

	mu   sync.Mutex
	sent []Message
}

var _ core.SMSService = (*consoleService)(nil)

// NewConsoleService logs text messages instead of sending them.
func NewConsoleService(logger core.Logger) *consoleService {
	return &consoleService{logger: logger}
}

func (svc *consoleService) Send(_ context.Context, to, body string) error {
	svc.mu.Lock()
	svc.sent = append(svc.sent, Message{To: to, Body: body})
	svc.mu.Unlock()
	if svc.logger != nil {
		svc.logger.Info("sms to "+to, map[string]interface{}{"body": body})
	}
	return nil
}

// Sent returns the messages recorded so far.
func (svc *consoleService) Sent() []Message {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]Message(nil), svc.sent...)
}

// NewService returns the sms service selected by conf.SMS.Backend.
func NewService(logger core.Logger, conf *core.Config) core.SMSService {
	if conf.SMS.Backend == "twilio" {
		return NewTwilioService(conf)
	}
	return NewConsoleService(logger)
}
