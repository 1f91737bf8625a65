package smssvc

import (
	"context"

	"github.com/pkg/errors"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/spist/campus/core"
)

type twilioService struct {
	client *twilio.RestClient
	from   string
}

var _ core.SMSService = (*twilioService)(nil)

func NewTwilioService(conf *core.Config) *twilioService {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: conf.SMS.TwilioAccountSID,
		Password: conf.SMS.TwilioAuthToken,
	})
	return &twilioService{client: client, from: conf.SMS.TwilioFrom}
}

func (svc *twilioService) Send(ctx context.Context, to, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(svc.from)
	params.SetBody(body)

	if _, err := svc.client.Api.CreateMessage(params); err != nil {
		return errors.Wrap(err, "sending sms via twilio")
	}
	return nil
}
