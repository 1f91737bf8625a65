package emailsvc

import (
	"encoding/base64"
	"fmt"
	netmail "net/mail"
	"strings"

	"gopkg.in/mail.v2"

	"github.com/spist/campus/core"
)

type smtpService struct {
	dialer     *mail.Dialer
	from       string
	subjPrefix string
	logger     core.Logger
}

var _ core.EmailService = (*smtpService)(nil)

func NewSMTPService(logger core.Logger, conf *core.Config) *smtpService {
	return &smtpService{
		dialer:     mail.NewDialer(conf.Email.SMTPHost, conf.Email.SMTPPort, conf.Email.SMTPUser, conf.Email.SMTPPassword),
		from:       conf.DefaultFromEmail.String(),
		subjPrefix: "[" + conf.AppName + "] ",
		logger:     logger,
	}
}

// SendMessages renders the messages and sends them over a single SMTP connection.
func (svc *smtpService) SendMessages(messages ...*core.EmailMessage) {
	go func() {
		prepared := make([]*mail.Message, 0, len(messages))
		for _, msg := range messages {
			if err := msg.Render(); err != nil {
				svc.logger.Error(fmt.Sprintf("rendering email: %v", err), err)
				continue
			}
			if msg.HasRecipients() && (msg.HasContent() || msg.HasAttachments()) {
				prepared = append(prepared, svc.prepare(*msg))
			}
		}
		if len(prepared) == 0 {
			return
		}
		if err := svc.dialer.DialAndSend(prepared...); err != nil {
			svc.logger.Error(fmt.Sprintf("sending emails over smtp: %v", err), err)
		}
	}()
}

func (svc *smtpService) prepare(msg core.EmailMessage) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", svc.from)
	m.SetHeader("To", addressList(msg.To)...)
	if len(msg.Cc) > 0 {
		m.SetHeader("Cc", addressList(msg.Cc)...)
	}
	if len(msg.Bcc) > 0 {
		m.SetHeader("Bcc", addressList(msg.Bcc)...)
	}
	m.SetHeader("Subject", svc.subjPrefix+msg.Subject)

	m.SetBody("text/plain", msg.TextContent)
	if msg.HTMLContent != "" {
		m.AddAlternative("text/html", msg.HTMLContent)
	}

	for _, at := range msg.Attachments {
		// attachments are stored base64 encoded; the mail writer encodes them again
		content := base64.NewDecoder(base64.StdEncoding, strings.NewReader(at.Content.String()))
		m.AttachReader(at.Filename, content, mail.SetHeader(map[string][]string{
			"Content-Type": {at.ContentType},
		}))
	}
	return m
}

func addressList(addrs []netmail.Address) []string {
	list := make([]string, 0, len(addrs))
	for _, a := range addrs {
		list = append(list, a.String())
	}
	return list
}
