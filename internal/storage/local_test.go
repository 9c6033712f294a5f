package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestBackend(t *testing.T) *LocalBackend {
	t.Helper()
	backend, err := NewLocalBackend(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalBackend: %v", err)
	}
	return backend
}

func TestLocalBackend_SaveAndOpen(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	content := "hello storage"
	obj, err := backend.Save(ctx, strings.NewReader(content), int64(len(content)), "owner-1", "notes.txt")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if filepath.Ext(obj.Name) != ".txt" {
		t.Errorf("expected generated name to keep extension, got %s", obj.Name)
	}
	if !strings.Contains(obj.Key, "owner-1") {
		t.Errorf("expected key under owner directory, got %s", obj.Key)
	}

	reader, size, err := backend.Open(ctx, obj.Key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer reader.Close()
	if size != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), size)
	}
	data, _ := io.ReadAll(reader)
	if string(data) != content {
		t.Errorf("expected %q, got %q", content, string(data))
	}
}

func TestLocalBackend_SaveFromStaging(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	staging := filepath.Join(t.TempDir(), "assembled.bin")
	if err := os.WriteFile(staging, []byte("chunked bytes"), 0o644); err != nil {
		t.Fatalf("write staging file: %v", err)
	}

	obj, err := backend.SaveFromStaging(ctx, staging, "owner-2", "video.mp4")
	if err != nil {
		t.Fatalf("SaveFromStaging: %v", err)
	}

	if _, err := os.Stat(staging); !os.IsNotExist(err) {
		t.Error("expected staging file to be removed")
	}
	data, err := os.ReadFile(obj.Key)
	if err != nil {
		t.Fatalf("read stored object: %v", err)
	}
	if string(data) != "chunked bytes" {
		t.Errorf("unexpected stored content: %q", string(data))
	}
}

func TestLocalBackend_Duplicate(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	t.Run("copies existing object under new key", func(t *testing.T) {
		src, err := backend.Save(ctx, strings.NewReader("original"), 8, "owner-3", "doc.pdf")
		if err != nil {
			t.Fatalf("Save: %v", err)
		}

		dup, err := backend.Duplicate(ctx, src.Key, "owner-3", "doc.pdf")
		if err != nil {
			t.Fatalf("Duplicate: %v", err)
		}
		if dup.Key == src.Key {
			t.Error("expected duplicate to get a distinct key")
		}
		data, _ := os.ReadFile(dup.Key)
		if string(data) != "original" {
			t.Errorf("expected duplicated content, got %q", string(data))
		}
	})

	t.Run("missing source yields ErrObjectMissing", func(t *testing.T) {
		_, err := backend.Duplicate(ctx, filepath.Join(t.TempDir(), "gone"), "owner-3", "doc.pdf")
		if !errors.Is(err, ErrObjectMissing) {
			t.Errorf("expected ErrObjectMissing, got %v", err)
		}
	})
}

func TestLocalBackend_Delete(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	obj, err := backend.Save(ctx, strings.NewReader("x"), 1, "owner-4", "a.txt")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	if err := backend.Delete(ctx, obj.Key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(obj.Key); !os.IsNotExist(err) {
		t.Error("expected object file to be gone")
	}

	// Deleting an already missing key is not an error.
	if err := backend.Delete(ctx, obj.Key); err != nil {
		t.Errorf("expected idempotent delete, got %v", err)
	}
}

func TestLocalBackend_DownloadRef(t *testing.T) {
	backend := newTestBackend(t)
	ctx := context.Background()

	obj, err := backend.Save(ctx, strings.NewReader("x"), 1, "owner-5", "a.txt")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	ref, err := backend.DownloadRef(ctx, obj.Key, "a.txt")
	if err != nil {
		t.Fatalf("DownloadRef: %v", err)
	}
	if ref.LocalPath != obj.Key {
		t.Errorf("expected local path %s, got %s", obj.Key, ref.LocalPath)
	}
	if ref.URL != "" {
		t.Error("expected no URL for local backend")
	}

	_, err = backend.DownloadRef(ctx, filepath.Join(t.TempDir(), "gone"), "a.txt")
	if !errors.Is(err, ErrObjectMissing) {
		t.Errorf("expected ErrObjectMissing for missing key, got %v", err)
	}
}
