package storagesvc

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spist/campus/core"
)

func TestLocalStorage(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	content := "question bank"
	require.NoError(t, s.Save(ctx, "imports/abc/quiz.txt", strings.NewReader(content), int64(len(content)), "text/plain"))

	rc, err := s.Open(ctx, "imports/abc/quiz.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, content, string(data))

	require.NoError(t, s.Delete(ctx, "imports/abc/quiz.txt"))
	_, err = s.Open(ctx, "imports/abc/quiz.txt")
	assert.True(t, core.IsNotFound(err))

	// deleting twice is a no-op
	assert.NoError(t, s.Delete(ctx, "imports/abc/quiz.txt"))
}

func TestLocalStorage_InvalidKey(t *testing.T) {
	s, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	err = s.Save(context.Background(), "../escape.txt", strings.NewReader("x"), 1, "text/plain")
	assert.Error(t, err)
}

func TestNewStorage_Local(t *testing.T) {
	conf := *core.Conf
	conf.Storage.Backend = ""
	conf.Storage.LocalDir = t.TempDir()

	s, err := NewStorage(context.Background(), &conf)
	require.NoError(t, err)
	assert.IsType(t, &localStorage{}, s)
}
