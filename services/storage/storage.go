package storagesvc

import (
	"context"

	"github.com/spist/campus/core"
)

// NewStorage returns the file storage selected by conf.Storage.Backend.
func NewStorage(ctx context.Context, conf *core.Config) (core.FileStorage, error) {
	switch conf.Storage.Backend {
	case "s3":
		return NewS3Storage(conf.Storage)
	case "b2":
		return NewB2Storage(ctx, conf.Storage)
	default:
		return NewLocalStorage(conf.Storage.LocalDir)
	}
}
