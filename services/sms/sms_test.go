package smssvc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spist/campus/core"
)

func TestConsoleService_Send(t *testing.T) {
	svc := NewConsoleService(nil)
	require.NoError(t, svc.Send(context.Background(), "+639171234567", "Your enrollment in CS101 was approved."))

	assert.Equal(t, []Message{{To: "+639171234567", Body: "Your enrollment in CS101 was approved."}}, svc.Sent())
}

func TestTwilioService_CancelledContext(t *testing.T) {
	svc := NewTwilioService(core.Conf)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, svc.Send(ctx, "+1", "x"), context.Canceled)
}

func TestNewService(t *testing.T) {
	conf := *core.Conf
	conf.SMS.Backend = "twilio"
	assert.IsType(t, &twilioService{}, NewService(nil, &conf))
	conf.SMS.Backend = "console"
	assert.IsType(t, &consoleService{}, NewService(nil, &conf))
}
