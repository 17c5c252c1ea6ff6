// Package blobstore keeps uploaded images on local storage. It defines the
// Store interface, a disk-backed implementation used by the server, and an
// in-memory implementation suitable for tests and development.
package blobstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// ---------------------------------------------------------------------------
// Sentinel errors
// ---------------------------------------------------------------------------

var (
	ErrBlobNotFound    = errors.New("blob not found")
	ErrFileTooLarge    = errors.New("file exceeds maximum allowed size")
	ErrMissingFileName = errors.New("file name is required")
	ErrInvalidFileName = errors.New("file name must not contain path separators")
)

// MaxFileSize is the maximum allowed blob size in bytes (50 MB).
const MaxFileSize = 50 * 1024 * 1024

// ---------------------------------------------------------------------------
// Domain types
// ---------------------------------------------------------------------------

// Blob describes a stored file.
type Blob struct {
	Name        string    `json:"file_name"`
	Path        string    `json:"local_path"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	Hash        string    `json:"hash"`
	CreatedAt   time.Time `json:"created_at"`
}

// Store defines the contract for local blob storage backends. Blobs are
// addressed by a flat file name.
type Store interface {
	Save(ctx context.Context, name string, content io.Reader) (*Blob, error)
	Open(ctx context.Context, name string) (io.ReadCloser, *Blob, error)
	Delete(ctx context.Context, name string) error
	Path(name string) string
}

// ValidateName rejects empty names and names that would escape the store
// directory.
func ValidateName(name string) error {
	if name == "" {
		return ErrMissingFileName
	}
	if name != filepath.Base(name) || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return ErrInvalidFileName
	}
	return nil
}

// readLimited reads content fully, failing with ErrFileTooLarge once
// MaxFileSize is exceeded.
func readLimited(content io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(content, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > MaxFileSize {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

func hashOf(data []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(data))
}

// ---------------------------------------------------------------------------
// In-memory implementation
// ---------------------------------------------------------------------------

type storedBlob struct {
	blob    Blob
	content []byte
}

// InMemoryStore is a thread-safe, in-memory Store for tests and development.
type InMemoryStore struct {
	mu    sync.RWMutex
	blobs map[string]*storedBlob
}

// NewInMemoryStore returns a ready-to-use InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		blobs: make(map[string]*storedBlob),
	}
}

// Save stores content under name, replacing any existing blob.
func (s *InMemoryStore) Save(_ context.Context, name string, content io.Reader) (*Blob, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	data, err := readLimited(content)
	if err != nil {
		return nil, err
	}

	b := Blob{
		Name:        name,
		Path:        s.Path(name),
		ContentType: ContentTypeFor(name),
		Size:        int64(len(data)),
		Hash:        hashOf(data),
		CreatedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	s.blobs[name] = &storedBlob{blob: b, content: data}
	s.mu.Unlock()

	out := b // copy
	return &out, nil
}

// Open returns a reader over the blob content and its metadata.
func (s *InMemoryStore) Open(_ context.Context, name string) (io.ReadCloser, *Blob, error) {
	s.mu.RLock()
	sb, ok := s.blobs[name]
	s.mu.RUnlock()

	if !ok {
		return nil, nil, ErrBlobNotFound
	}

	b := sb.blob // copy
	return io.NopCloser(bytes.NewReader(sb.content)), &b, nil
}

// Delete removes a blob by name.
func (s *InMemoryStore) Delete(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.blobs[name]; !ok {
		return ErrBlobNotFound
	}
	delete(s.blobs, name)
	return nil
}

// Path returns a pseudo path; in-memory blobs have no file on disk.
func (s *InMemoryStore) Path(name string) string {
	return "memory://" + name
}

// Len returns the number of stored blobs.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
