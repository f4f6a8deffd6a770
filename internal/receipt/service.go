package receipt

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/finlog/finlog/internal/apperr"
	"github.com/finlog/finlog/internal/domain"
	"github.com/finlog/finlog/internal/ratelimit"
	"github.com/finlog/finlog/internal/validation"
)

// DefaultMaxImageBytes bounds a decoded receipt image.
const DefaultMaxImageBytes = 8 << 20

var allowedMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/heic": true,
	"image/heif": true,
}

// ScanRequest is the body of a receipt scan. Image is base64 or a data URL.
type ScanRequest struct {
	Image    string `json:"image"`
	MIMEType string `json:"mime_type,omitempty"`
	Save     bool   `json:"save,omitempty"`
}

// ScanResult is the draft and, when saved, the stored transaction. Notice
// explains why a requested save did not happen.
type ScanResult struct {
	Draft       *Draft              `json:"draft"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
	Notice      string              `json:"notice,omitempty"`
}

// NoticeAmountUnread is returned instead of saving a draft whose total could not be read.
const NoticeAmountUnread = "the receipt total could not be read; review the draft amount and save it manually"

// Service handles receipt scan requests.
type Service struct {
	extractor *Extractor
	limiter   RateLimiter
	saver     DraftSaver
	maxBytes  int
}

// NewService creates a scan service. maxBytes <= 0 selects DefaultMaxImageBytes.
func NewService(extractor *Extractor, limiter RateLimiter, saver DraftSaver, maxBytes int) *Service {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxImageBytes
	}
	return &Service{extractor: extractor, limiter: limiter, saver: saver, maxBytes: maxBytes}
}

// Scan extracts a draft from req.Image and saves it when req.Save is set.
func (s *Service) Scan(ctx context.Context, userID string, req ScanRequest) (*ScanResult, error) {
	if userID == "" {
		return nil, apperr.Unauthenticated(nil)
	}
	if err := s.limiter.Allow(ctx, userID, ratelimit.ClassReceipt); err != nil {
		return nil, apperr.From(err)
	}

	img, err := s.decodeImage(req)
	if err != nil {
		return nil, err
	}

	draft, err := s.extractor.Extract(ctx, userID, img)
	if err != nil {
		return nil, apperr.From(err)
	}

	result := &ScanResult{Draft: draft}
	if !req.Save {
		return result, nil
	}
	if draft.Amount.IsZero() {
		result.Notice = NoticeAmountUnread
		return result, nil
	}

	tx, err := s.saver.CreateFromDraft(ctx, userID, draft.DraftInput)
	if err != nil {
		return nil, apperr.From(err)
	}
	result.Transaction = tx
	return result, nil
}

func (s *Service) decodeImage(req ScanRequest) (Image, error) {
	payload := strings.TrimSpace(req.Image)
	mimeType := strings.ToLower(strings.TrimSpace(req.MIMEType))

	// data:image/png;base64,....
	if rest, ok := strings.CutPrefix(payload, "data:"); ok {
		header, data, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(header, ";base64") {
			return Image{}, imageError("image must be base64 encoded")
		}
		if mimeType == "" {
			mimeType = strings.ToLower(strings.TrimSuffix(header, ";base64"))
		}
		payload = data
	}

	if payload == "" {
		return Image{}, imageError("image is required")
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > s.maxBytes+3 {
		return Image{}, imageError(fmt.Sprintf("image must be at most %d bytes", s.maxBytes))
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, imageError("image must be base64 encoded")
	}
	if len(data) > s.maxBytes {
		return Image{}, imageError(fmt.Sprintf("image must be at most %d bytes", s.maxBytes))
	}

	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if !allowedMIMETypes[mimeType] {
		return Image{}, apperr.Validation(validation.Errors{{Field: "mime_type", Message: "mime_type must be one of: image/jpeg, image/png, image/webp, image/heic, image/heif"}})
	}

	return Image{Data: data, MIMEType: mimeType}, nil
}

func imageError(msg string) error {
	return apperr.Validation(validation.Errors{{Field: "image", Message: msg}})
}
