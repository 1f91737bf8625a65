package logsvc

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
	"github.com/rollbar/rollbar-go"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/spist/campus/core/user"
)

func newTestLogger(buf *bytes.Buffer) *RollbarLogger {
	rollbar.SetEnabled(false)
	base := logrus.New()
	base.SetOutput(buf)
	base.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true, DisableColors: true})
	return newRollbarLogger(logrus.NewEntry(base), "api")
}

func TestRollbarLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	usr := user.User{ID: "u-1", Username: "jdoe"}
	logger.Error("grading failed", errors.New("boom"), map[string]interface{}{"attempt_id": "a-9"}, usr)

	out := buf.String()
	assert.Contains(t, out, "level=error")
	assert.Contains(t, out, `msg="grading failed"`)
	assert.Contains(t, out, "component=api")
	assert.Contains(t, out, "error=boom")
	assert.Contains(t, out, "attempt_id=a-9")
	assert.Contains(t, out, "user_id=u-1")
}

func TestRollbarLogger_prepare(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	args, _ := logger.prepare("msg", []interface{}{user.User{ID: "1"}, user.User{ID: "2"}, 42})
	assert.Equal(t, []interface{}{"msg", 42}, args)
}

func TestRollbarLogger_DebugLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newTestLogger(&buf)

	logger.Debug("hidden")
	assert.Empty(t, buf.String())

	logger.entry.Logger.SetLevel(logrus.DebugLevel)
	logger.Debug("shown")
	assert.Contains(t, buf.String(), "msg=shown")
}
