package storage

import (
	"context"
	"errors"
)

var ErrNotConfigured = errors.New("object storage not configured")

// ObjectStore publica archivos locales y devuelve su URL pública.
type ObjectStore interface {
	Put(ctx context.Context, key, path, contentType string) (string, error)
}
