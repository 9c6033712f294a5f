package storage

import (
	"context"
	"errors"
	"io"
	"path/filepath"

	"github.com/google/uuid"
)

// ErrObjectMissing is returned when a backend operation references a key
// whose bytes no longer exist. Callers that duplicate objects treat it as
// "skip this file"; everything else treats it as a failure.
var ErrObjectMissing = errors.New("object missing from storage backend")

// Object identifies a stored blob: Key is the opaque backend handle recorded
// on the file row, Name the generated storage-unique filename.
type Object struct {
	Key  string
	Name string
}

// Ref points a download at either a redirect URL (object storage) or a local
// path served directly from disk. Exactly one field is set.
type Ref struct {
	URL       string
	LocalPath string
}

// Backend abstracts physical byte storage. Save failures are fatal to the
// owning operation; Delete failures are logged by implementations and
// reported to callers, who may choose to proceed.
type Backend interface {
	Save(ctx context.Context, reader io.Reader, size int64, ownerID, originalName string) (Object, error)
	SaveFromStaging(ctx context.Context, stagingPath, ownerID, originalName string) (Object, error)
	Duplicate(ctx context.Context, key, ownerID, originalName string) (Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, key string) error
	DownloadRef(ctx context.Context, key, displayName string) (Ref, error)
	MakePublic(ctx context.Context, key string) error
	PublicURL(key string) string
}

// generatedName produces a storage-unique filename preserving the original
// extension.
func generatedName(originalName string) string {
	return uuid.New().String() + filepath.Ext(originalName)
}
