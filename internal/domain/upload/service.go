// Package upload stores screening images on local disk and mirrors them to
// the object storage bucket.
package upload

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lesionscan/lesionscan/internal/platform/apperr"
	"github.com/lesionscan/lesionscan/internal/platform/blobstore"
	"github.com/lesionscan/lesionscan/internal/platform/metrics"
	"github.com/lesionscan/lesionscan/internal/platform/objectstore"
)

const defaultPrefix = "image"

// Result describes a stored image.
type Result struct {
	FileName    string `json:"file_name"`
	URL         string `json:"url"`
	LocalPath   string `json:"local_path"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

type Service struct {
	store   blobstore.Store
	bucket  objectstore.Bucket
	logger  zerolog.Logger
	metrics *metrics.Collector
	now     func() time.Time
	newID   func() string
}

func NewService(store blobstore.Store, bucket objectstore.Bucket, logger zerolog.Logger, m *metrics.Collector) *Service {
	return &Service{
		store:   store,
		bucket:  bucket,
		logger:  logger.With().Str("component", "upload").Logger(),
		metrics: m,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Upload mirrors a file already staged in the local store to the bucket
// under the same name.
func (s *Service) Upload(ctx context.Context, fileName string) (*Result, error) {
	rc, blob, err := s.store.Open(ctx, fileName)
	if err != nil {
		return nil, translate(err, fileName)
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("read staged file %s: %w", fileName, err)
	}

	contentType := blobstore.ContentTypeFor(fileName)
	err = s.bucket.Upload(ctx, fileName, contentType, data)
	s.metrics.StorageOp("upload", err)
	if err != nil {
		return nil, fmt.Errorf("mirror %s to storage: %w", fileName, err)
	}

	return &Result{
		FileName:    fileName,
		URL:         s.bucket.PublicURL(fileName),
		LocalPath:   blob.Path,
		Size:        int64(len(data)),
		ContentType: contentType,
	}, nil
}

// UploadFile stages content under name and mirrors it. Only the base name of
// name is used.
func (s *Service) UploadFile(ctx context.Context, name string, content io.Reader) (*Result, error) {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if name == "." || name == "/" {
		name = ""
	}
	blob, err := s.store.Save(ctx, name, content)
	if err != nil {
		return nil, translate(err, name)
	}
	res, err := s.Upload(ctx, blob.Name)
	if err != nil {
		s.discard(ctx, blob.Name)
		return nil, err
	}
	s.metrics.Uploaded("multipart", res.Size)
	return res, nil
}

// SaveBase64Image decodes a raw base64 string or a data URI, writes it as
// <prefix>_<unixmillis>_<id8>.<ext> and mirrors it to the bucket.
func (s *Service) SaveBase64Image(ctx context.Context, payload, prefix string) (*Result, error) {
	format, data, err := decodeImage(payload)
	if err != nil {
		return nil, err
	}

	name := fmt.Sprintf("%s_%d_%s%s",
		sanitizePrefix(prefix), s.now().UnixMilli(), shortID(s.newID()), blobstore.ExtensionFor(format))

	if _, err := s.store.Save(ctx, name, bytes.NewReader(data)); err != nil {
		return nil, translate(err, name)
	}
	res, err := s.Upload(ctx, name)
	if err != nil {
		s.discard(ctx, name)
		return nil, err
	}
	s.metrics.Uploaded("base64", res.Size)
	return res, nil
}

// discard drops a file this service staged when mirroring it failed, so it
// is not left behind under the public static route.
func (s *Service) discard(ctx context.Context, name string) {
	if err := s.store.Delete(ctx, name); err != nil {
		s.logger.Warn().Err(err).Str("file", name).Msg("failed to remove staged file")
	}
}

// Delete removes the local copy and then the stored object. A failure on
// the storage side is logged and otherwise ignored.
func (s *Service) Delete(ctx context.Context, fileName string) error {
	if err := s.store.Delete(ctx, fileName); err != nil {
		return translate(err, fileName)
	}

	err := s.bucket.Remove(ctx, fileName)
	s.metrics.StorageOp("remove", err)
	if err != nil {
		s.logger.Warn().Err(err).Str("file_name", fileName).Msg("failed to remove object from storage")
	}
	return nil
}

// decodeImage accepts "data:image/<fmt>;base64,<data>" or bare base64 and
// returns the image format ("" when unknown) and the decoded bytes.
func decodeImage(payload string) (string, []byte, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", nil, apperr.Invalid("image is required")
	}

	var format string
	if strings.HasPrefix(payload, "data:") {
		comma := strings.IndexByte(payload, ',')
		if comma < 0 {
			return "", nil, apperr.Invalid("malformed data URI")
		}
		header := payload[len("data:"):comma]
		payload = payload[comma+1:]
		mediaType := strings.Split(header, ";")[0]
		format = strings.TrimPrefix(mediaType, "image/")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
	}
	if err != nil {
		return "", nil, apperr.Invalid("image is not valid base64")
	}
	if len(data) == 0 {
		return "", nil, apperr.Invalid("image is empty")
	}
	return format, data, nil
}

// sanitizePrefix keeps letters, digits, '-' and '_' so the prefix cannot
// introduce path separators.
func sanitizePrefix(prefix string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return -1
	}, prefix)
	if cleaned == "" {
		return defaultPrefix
	}
	return cleaned
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func translate(err error, fileName string) error {
	switch {
	case errors.Is(err, blobstore.ErrBlobNotFound):
		return apperr.NotFound("file %s not found", fileName)
	case errors.Is(err, blobstore.ErrMissingFileName), errors.Is(err, blobstore.ErrInvalidFileName):
		return apperr.Invalid("%v", err)
	case errors.Is(err, blobstore.ErrFileTooLarge):
		return apperr.TooLarge(err, "file exceeds the %d byte limit", blobstore.MaxFileSize)
	}
	return err
}
