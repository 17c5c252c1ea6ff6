package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// DiskStore writes blobs as plain files in a single directory. The
// directory is also served statically under /uploads.
type DiskStore struct {
	dir string
}

// NewDiskStore creates dir if needed and returns a store rooted there.
func NewDiskStore(dir string) (*DiskStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve upload dir %s: %w", dir, err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", abs, err)
	}
	return &DiskStore{dir: abs}, nil
}

// Dir returns the absolute store directory.
func (s *DiskStore) Dir() string { return s.dir }

// Path returns the absolute file path for name.
func (s *DiskStore) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Save writes content to a temporary file and renames it into place, so a
// reader never observes a partially written blob.
func (s *DiskStore) Save(_ context.Context, name string, content io.Reader) (*Blob, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	data, err := readLimited(content)
	if err != nil {
		return nil, err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // gone after a successful rename

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("close %s: %w", name, err)
	}

	path := s.Path(name)
	if err := os.Rename(tmpName, path); err != nil {
		return nil, fmt.Errorf("move %s into place: %w", name, err)
	}
	if err := os.Chmod(path, 0o644); err != nil {
		return nil, fmt.Errorf("chmod %s: %w", name, err)
	}

	return &Blob{
		Name:        name,
		Path:        path,
		ContentType: ContentTypeFor(name),
		Size:        int64(len(data)),
		Hash:        hashOf(data),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Open returns the file and its metadata. The hash is left empty; computing
// it would require reading the whole file.
func (s *DiskStore) Open(_ context.Context, name string) (io.ReadCloser, *Blob, error) {
	if err := ValidateName(name); err != nil {
		return nil, nil, err
	}
	path := s.Path(name)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, ErrBlobNotFound
		}
		return nil, nil, fmt.Errorf("open %s: %w", name, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat %s: %w", name, err)
	}
	return f, &Blob{
		Name:        name,
		Path:        path,
		ContentType: ContentTypeFor(name),
		Size:        info.Size(),
		CreatedAt:   info.ModTime().UTC(),
	}, nil
}

// Delete removes the file for name.
func (s *DiskStore) Delete(_ context.Context, name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := os.Remove(s.Path(name)); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return ErrBlobNotFound
		}
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}
