package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrFileTooLarge    = errors.New("file exceeds maximum size")
	ErrInvalidMimeType = errors.New("file type not allowed")
	ErrEmptyFile       = errors.New("file is empty")
	ErrInvalidKey      = errors.New("invalid object key")
)

// MaxAttachmentSize bounds a single delivery attachment (100 MB).
const MaxAttachmentSize = 100 << 20

// AllowedAttachmentTypes maps accepted content types to a default extension.
var AllowedAttachmentTypes = map[string]string{
	"application/zip":              ".zip",
	"application/x-zip-compressed": ".zip",
	"application/gzip":             ".tar.gz",
	"application/x-tar":            ".tar",
	"application/pdf":              ".pdf",
	"text/plain":                   ".txt",
	"text/markdown":                ".md",
	"image/png":                    ".png",
	"image/jpeg":                   ".jpg",
	"image/webp":                   ".webp",
	"video/mp4":                    ".mp4",
}

const attachmentPrefix = "deliveries/"

// ValidateAttachment checks declared content type and size before presigning.
func ValidateAttachment(contentType string, size int64) error {
	if size <= 0 {
		return ErrEmptyFile
	}
	if size > MaxAttachmentSize {
		return ErrFileTooLarge
	}
	if _, ok := AllowedAttachmentTypes[normalizeMime(contentType)]; !ok {
		return ErrInvalidMimeType
	}
	return nil
}

// AttachmentKey builds deliveries/{purchase}/{yyyy/mm}/{uuid}{ext}.
func AttachmentKey(purchaseID uuid.UUID, filename, contentType string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || len(ext) > 8 {
		ext = AllowedAttachmentTypes[normalizeMime(contentType)]
	}
	return fmt.Sprintf("%s%s/%s/%s%s", attachmentPrefix, purchaseID, now.UTC().Format("2006/01"), uuid.New(), ext)
}

// AttachmentBelongsTo reports whether key was issued for purchaseID.
func AttachmentBelongsTo(key string, purchaseID uuid.UUID) bool {
	return strings.HasPrefix(key, attachmentPrefix+purchaseID.String()+"/") && !strings.Contains(key, "..")
}

func normalizeMime(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}
