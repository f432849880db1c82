package services

import (
	"context"
	"fmt"
	"strings"

	"wedhabesha-chat/internal/proxy"
	chat_errors "wedhabesha-chat/pkg/errors"

	"github.com/google/uuid"
)

const maxAttachmentBytes = 10 << 20

// FileValidation is the verdict for one candidate attachment.
type FileValidation struct {
	Valid    bool
	FileType string
	Reason   string
}

// FileValidator screens attachment metadata before any upload URL is issued.
type FileValidator interface {
	Validate(fileName string, sizeBytes int64, contentType string) FileValidation
}

// allowedContentTypes maps accepted MIME types to their broad category.
var allowedContentTypes = map[string]string{
	"image/jpeg":         "image",
	"image/png":          "image",
	"image/gif":          "image",
	"image/webp":         "image",
	"application/pdf":    "document",
	"application/msword": "document",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": "document",
}

// MimeFileValidator enforces the MIME allow-list, a size cap and basic
// filename hygiene.
type MimeFileValidator struct {
	MaxSizeBytes int64
}

func NewMimeFileValidator() *MimeFileValidator {
	return &MimeFileValidator{MaxSizeBytes: maxAttachmentBytes}
}

func (v *MimeFileValidator) Validate(fileName string, sizeBytes int64, contentType string) FileValidation {
	name := strings.TrimSpace(fileName)
	if name == "" {
		return FileValidation{Reason: "file name is required"}
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return FileValidation{Reason: "file name contains path characters"}
	}
	if sizeBytes <= 0 {
		return FileValidation{Reason: "file size must be positive"}
	}
	max := v.MaxSizeBytes
	if max == 0 {
		max = maxAttachmentBytes
	}
	if sizeBytes > max {
		return FileValidation{Reason: fmt.Sprintf("file exceeds maximum size of %d bytes", max)}
	}
	category, ok := allowedContentTypes[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return FileValidation{Reason: fmt.Sprintf("content type %q is not allowed", contentType)}
	}
	return FileValidation{Valid: true, FileType: category}
}

// ObjectStore issues presigned URLs for attachment upload and download.
// Satisfied by storage.AttachmentStore.
type ObjectStore interface {
	PresignUpload(ctx context.Context, key, contentType string, sizeBytes int64) (string, map[string]string, error)
	PresignDownload(ctx context.Context, key string) (string, error)
}

// UploadTicket is everything a client needs to upload one attachment.
type UploadTicket struct {
	StorageKey string            `json:"storage_key"`
	URL        string            `json:"url"`
	Headers    map[string]string `json:"headers"`
	FileType   string            `json:"file_type"`
}

// AttachmentService validates attachment metadata and brokers presigned S3
// access for thread participants.
type AttachmentService struct {
	store     ObjectStore
	validator FileValidator
	access    *proxy.AccessControl
	keyFunc   func(threadID, fileName string) string
}

func NewAttachmentService(store ObjectStore, validator FileValidator, access *proxy.AccessControl, keyFunc func(threadID, fileName string) string) *AttachmentService {
	return &AttachmentService{
		store:     store,
		validator: validator,
		access:    access,
		keyFunc:   keyFunc,
	}
}

// PrepareUpload validates the candidate file and returns a presigned upload
// ticket. The caller must be a participant of the target thread.
func (s *AttachmentService) PrepareUpload(ctx context.Context, threadID uuid.UUID, userID, userType, fileName, contentType string, sizeBytes int64) (*UploadTicket, error) {
	decision := s.access.VerifyThreadAccess(ctx, userID, userType, threadID)
	if !decision.Authorized {
		return nil, fmt.Errorf("%s: %w", decision.Reason, chat_errors.ErrForbidden)
	}

	verdict := s.validator.Validate(fileName, sizeBytes, contentType)
	if !verdict.Valid {
		return nil, fmt.Errorf("attachment %q rejected: %s: %w", fileName, verdict.Reason, chat_errors.ErrInvalidInput)
	}

	key := s.keyFunc(threadID.String(), fileName)
	url, headers, err := s.store.PresignUpload(ctx, key, contentType, sizeBytes)
	if err != nil {
		return nil, fmt.Errorf("presign upload: %w", err)
	}

	return &UploadTicket{
		StorageKey: key,
		URL:        url,
		Headers:    headers,
		FileType:   verdict.FileType,
	}, nil
}

// DownloadURL returns a presigned GET URL for a stored attachment.
func (s *AttachmentService) DownloadURL(ctx context.Context, threadID uuid.UUID, userID, userType, storageKey string) (string, error) {
	decision := s.access.VerifyThreadAccess(ctx, userID, userType, threadID)
	if !decision.Authorized {
		return "", fmt.Errorf("%s: %w", decision.Reason, chat_errors.ErrForbidden)
	}
	return s.store.PresignDownload(ctx, storageKey)
}
