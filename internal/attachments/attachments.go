// Package attachments stores receipt images a user chooses to keep and
// returns a URL suitable for a transaction's image_url.
package attachments

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/finlog/finlog/internal/apperr"
	"github.com/finlog/finlog/internal/validation"
	"github.com/google/uuid"
)

// DefaultMaxBytes bounds an uploaded attachment.
const DefaultMaxBytes = 10 << 20

var extensions = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"image/heic":      ".heic",
	"image/heif":      ".heif",
	"application/pdf": ".pdf",
}

// ObjectStore writes named objects.
type ObjectStore interface {
	Bucket() string
	Put(ctx context.Context, object, contentType string, r io.Reader) error
}

// Attachment is a stored upload.
type Attachment struct {
	URL         string `json:"url"`
	Object      string `json:"object"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// Service validates and stores attachments under a per-user prefix.
type Service struct {
	store    ObjectStore
	maxBytes int
	now      func() time.Time
	newID    func() string
}

// NewService creates a service. maxBytes <= 0 selects DefaultMaxBytes.
func NewService(store ObjectStore, maxBytes int) *Service {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Service{
		store:    store,
		maxBytes: maxBytes,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

// Upload stores body for userID. contentType may be empty, in which case it
// is sniffed from the content.
func (s *Service) Upload(ctx context.Context, userID, contentType string, body io.Reader) (*Attachment, error) {
	if userID == "" {
		return nil, apperr.Unauthenticated(nil)
	}

	data, err := io.ReadAll(io.LimitReader(body, int64(s.maxBytes)+1))
	if err != nil {
		return nil, apperr.Internal(fmt.Errorf("Upload: read body: %w", err))
	}
	switch {
	case len(data) == 0:
		return nil, fileError("file is required")
	case len(data) > s.maxBytes:
		return nil, fileError(fmt.Sprintf("file must be at most %d bytes", s.maxBytes))
	}

	contentType = normalizeContentType(contentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = normalizeContentType(http.DetectContentType(data))
	}
	ext, ok := extensions[contentType]
	if !ok {
		return nil, fileError("file must be a JPEG, PNG, WebP, HEIC or PDF")
	}

	object := s.objectName(userID, ext)
	if err := s.store.Put(ctx, object, contentType, bytes.NewReader(data)); err != nil {
		return nil, apperr.Upstream(err)
	}

	return &Attachment{
		URL:         PublicURL(s.store.Bucket(), object),
		Object:      object,
		ContentType: contentType,
		Size:        len(data),
	}, nil
}

// objectName places uploads under receipts/<user>/<yyyy>/<mm>/.
func (s *Service) objectName(userID, ext string) string {
	now := s.now().UTC()
	return fmt.Sprintf("receipts/%s/%04d/%02d/%s%s", url.PathEscape(userID), now.Year(), int(now.Month()), s.newID(), ext)
}

// PublicURL is the HTTPS URL of object in bucket.
func PublicURL(bucket, object string) string {
	u := url.URL{Scheme: "https", Host: "storage.googleapis.com", Path: "/" + bucket + "/" + object}
	return u.String()
}

func normalizeContentType(ct string) string {
	ct, _, _ = strings.Cut(ct, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}

func fileError(msg string) error {
	return apperr.Validation(validation.Errors{{Field: "file", Message: msg}})
}
