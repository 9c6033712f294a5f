package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/storafe/backend/pkg/logger"
)

// LocalBackend stores objects on the local filesystem under
// <root>/<ownerID>/<generated name>. Keys are the resulting file paths.
type LocalBackend struct {
	root string
}

func NewLocalBackend(root string) (*LocalBackend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &LocalBackend{root: root}, nil
}

func (l *LocalBackend) Save(ctx context.Context, reader io.Reader, size int64, ownerID, originalName string) (Object, error) {
	name := generatedName(originalName)
	dest, err := l.destPath(ownerID, name)
	if err != nil {
		return Object{}, err
	}

	out, err := os.Create(dest)
	if err != nil {
		return Object{}, err
	}
	defer out.Close()

	if _, err := io.Copy(out, reader); err != nil {
		os.Remove(dest)
		return Object{}, err
	}

	return Object{Key: dest, Name: name}, nil
}

func (l *LocalBackend) SaveFromStaging(ctx context.Context, stagingPath, ownerID, originalName string) (Object, error) {
	name := generatedName(originalName)
	dest, err := l.destPath(ownerID, name)
	if err != nil {
		return Object{}, err
	}

	if err := os.Rename(stagingPath, dest); err != nil {
		// Staging may live on a different filesystem; fall back to copy.
		if copyErr := copyFile(stagingPath, dest); copyErr != nil {
			return Object{}, copyErr
		}
		os.Remove(stagingPath)
	}

	return Object{Key: dest, Name: name}, nil
}

func (l *LocalBackend) Duplicate(ctx context.Context, key, ownerID, originalName string) (Object, error) {
	if _, err := os.Stat(key); err != nil {
		if os.IsNotExist(err) {
			return Object{}, ErrObjectMissing
		}
		return Object{}, err
	}

	name := generatedName(originalName)
	dest, err := l.destPath(ownerID, name)
	if err != nil {
		return Object{}, err
	}

	if err := copyFile(key, dest); err != nil {
		return Object{}, err
	}

	return Object{Key: dest, Name: name}, nil
}

func (l *LocalBackend) Open(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	f, err := os.Open(key)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, 0, ErrObjectMissing
		}
		return nil, 0, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, err
	}

	return f, info.Size(), nil
}

func (l *LocalBackend) Delete(ctx context.Context, key string) error {
	err := os.Remove(key)
	if err != nil && !os.IsNotExist(err) {
		logger.Error("local_delete_failed", err, map[string]interface{}{
			"key": key,
		})
		return err
	}
	return nil
}

func (l *LocalBackend) DownloadRef(ctx context.Context, key, displayName string) (Ref, error) {
	if _, err := os.Stat(key); err != nil {
		if os.IsNotExist(err) {
			return Ref{}, ErrObjectMissing
		}
		return Ref{}, err
	}
	return Ref{LocalPath: key}, nil
}

func (l *LocalBackend) MakePublic(ctx context.Context, key string) error {
	// Local files are not served over the internet by this backend.
	logger.Warn("local_make_public_unsupported", map[string]interface{}{
		"key": key,
	})
	return nil
}

func (l *LocalBackend) PublicURL(key string) string {
	return ""
}

func (l *LocalBackend) destPath(ownerID, name string) (string, error) {
	dir := filepath.Join(l.root, ownerID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		os.Remove(dest)
		return err
	}
	return out.Sync()
}
