package core

import (
	"context"
	"io"
	"time"
)

type (
	// SMSService is any service that can send text messages.
	SMSService interface {
		Send(ctx context.Context, to, body string) error
	}

	// Cache stores JSON-serializable values for a limited time.
	// Get reports whether the key was found and decoded into dst.
	Cache interface {
		Get(ctx context.Context, key string, dst interface{}) (bool, error)
		Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
		Delete(ctx context.Context, keys ...string) error
	}

	// FileStorage persists uploaded files under a key.
	FileStorage interface {
		Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
		Open(ctx context.Context, key string) (io.ReadCloser, error)
		Delete(ctx context.Context, key string) error
	}
)
