package object

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when a storage key has no object behind it.
var ErrNotFound = errors.New("object not found")

// Object describes a stored upload.
type Object struct {
	Key      string
	Size     int64
	MimeType string
}

// ObjectStore defines the contract for saving, reading and removing binary objects.
// Keys are flat file names; the public URL of a file ends with its key.
type ObjectStore interface {
	Save(ctx context.Context, fileName string, r io.Reader) (Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// Presigner is implemented by stores that can hand out temporary direct download URLs.
type Presigner interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// SniffSize is the number of leading bytes inspected to detect a content type.
const SniffSize = 512
