package blobstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func stores(t *testing.T) map[string]Store {
	t.Helper()
	disk, err := NewDiskStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}
	return map[string]Store{
		"memory": NewInMemoryStore(),
		"disk":   disk,
	}
}

// ---------------------------------------------------------------------------
// Store contract tests, run against both implementations
// ---------------------------------------------------------------------------

func TestStore_SaveAndOpen(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			content := "fake-png-bytes"
			b, err := store.Save(context.Background(), "lesion.png", strings.NewReader(content))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if b.Size != int64(len(content)) {
				t.Errorf("expected Size=%d, got %d", len(content), b.Size)
			}
			if b.ContentType != "image/png" {
				t.Errorf("expected image/png, got %s", b.ContentType)
			}
			if b.Hash == "" {
				t.Error("expected non-empty Hash")
			}
			if b.Path != store.Path("lesion.png") {
				t.Errorf("expected Path=%s, got %s", store.Path("lesion.png"), b.Path)
			}

			rc, meta, err := store.Open(context.Background(), "lesion.png")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			defer rc.Close()
			data, _ := io.ReadAll(rc)
			if string(data) != content {
				t.Errorf("expected content=%q, got %q", content, string(data))
			}
			if meta.Size != int64(len(content)) {
				t.Errorf("expected meta.Size=%d, got %d", len(content), meta.Size)
			}
		})
	}
}

func TestStore_OpenNotFound(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, _, err := store.Open(context.Background(), "missing.png")
			if !errors.Is(err, ErrBlobNotFound) {
				t.Errorf("expected ErrBlobNotFound, got %v", err)
			}
		})
	}
}

func TestStore_Delete(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := store.Save(context.Background(), "gone.jpg", strings.NewReader("x")); err != nil {
				t.Fatalf("Save: %v", err)
			}
			if err := store.Delete(context.Background(), "gone.jpg"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			_, _, err := store.Open(context.Background(), "gone.jpg")
			if !errors.Is(err, ErrBlobNotFound) {
				t.Errorf("expected ErrBlobNotFound after delete, got %v", err)
			}
			if err := store.Delete(context.Background(), "gone.jpg"); !errors.Is(err, ErrBlobNotFound) {
				t.Errorf("expected ErrBlobNotFound on second delete, got %v", err)
			}
		})
	}
}

func TestStore_RejectsBadNames(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Save(context.Background(), "", strings.NewReader("x"))
			if !errors.Is(err, ErrMissingFileName) {
				t.Errorf("expected ErrMissingFileName, got %v", err)
			}
			for _, bad := range []string{"../escape.png", "a/b.png", `a\b.png`, ".."} {
				_, err := store.Save(context.Background(), bad, strings.NewReader("x"))
				if !errors.Is(err, ErrInvalidFileName) {
					t.Errorf("Save(%q): expected ErrInvalidFileName, got %v", bad, err)
				}
			}
		})
	}
}

func TestStore_FileTooLarge(t *testing.T) {
	store := NewInMemoryStore()
	big := io.LimitReader(zeroReader{}, MaxFileSize+1)
	_, err := store.Save(context.Background(), "big.png", big)
	if !errors.Is(err, ErrFileTooLarge) {
		t.Errorf("expected ErrFileTooLarge, got %v", err)
	}
	if store.Len() != 0 {
		t.Error("expected nothing stored after rejection")
	}
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

// ---------------------------------------------------------------------------
// Disk specifics
// ---------------------------------------------------------------------------

func TestDiskStore_WritesFileAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	store, err := NewDiskStore(dir)
	if err != nil {
		t.Fatalf("NewDiskStore: %v", err)
	}

	if _, err := store.Save(context.Background(), "scan.jpeg", strings.NewReader("jpeg")); err != nil {
		t.Fatalf("Save: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "scan.jpeg"))
	if err != nil {
		t.Fatalf("expected file on disk: %v", err)
	}
	if string(data) != "jpeg" {
		t.Errorf("unexpected file content %q", string(data))
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("expected exactly one file in dir, got %d", len(entries))
	}
}

func TestNewDiskStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "uploads")
	store, err := NewDiskStore(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info, err := os.Stat(store.Dir()); err != nil || !info.IsDir() {
		t.Fatalf("expected directory %s to exist", store.Dir())
	}
}

// ---------------------------------------------------------------------------
// Content types
// ---------------------------------------------------------------------------

func TestContentTypeFor(t *testing.T) {
	tests := map[string]string{
		"a.jpg":  "image/jpeg",
		"a.JPEG": "image/jpeg",
		"a.png":  "image/png",
		"a.gif":  "image/gif",
		"a.webp": "image/webp",
		"a.bmp":  "image/bmp",
		"a.tiff": "application/octet-stream",
		"noext":  "application/octet-stream",
	}
	for name, want := range tests {
		if got := ContentTypeFor(name); got != want {
			t.Errorf("ContentTypeFor(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestExtensionFor(t *testing.T) {
	tests := map[string]string{
		"png":        ".png",
		"jpeg":       ".jpg",
		"jpg":        ".jpg",
		"image/webp": ".webp",
		"GIF":        ".gif",
		"svg+xml":    ".png",
		"":           ".png",
	}
	for format, want := range tests {
		if got := ExtensionFor(format); got != want {
			t.Errorf("ExtensionFor(%q) = %q, want %q", format, got, want)
		}
	}
}
