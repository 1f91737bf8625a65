package emailsvc

import (
	"strings"

	"github.com/spist/campus/core"
)

// NewService returns the email service of the configured backend: console (default), sendgrid or smtp.
func NewService(logger core.Logger, conf *core.Config) core.EmailService {
	switch strings.ToLower(conf.Email.Backend) {
	case "sendgrid":
		return NewSendgridService(logger, conf)
	case "smtp":
		return NewSMTPService(logger, conf)
	default:
		return NewConsoleService(logger, conf)
	}
}
