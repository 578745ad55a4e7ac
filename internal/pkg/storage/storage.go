package storage

import (
	"context"
	"errors"
	"time"
)

var ErrNotConfigured = errors.New("storage not configured")

// AttachmentStore holds delivery attachments uploaded directly by sellers.
type AttachmentStore interface {
	// PresignPut returns a URL the client can PUT the object to until ttl elapses.
	PresignPut(ctx context.Context, key, contentType string, size int64, ttl time.Duration) (string, error)
	// Exists reports whether key has been uploaded.
	Exists(ctx context.Context, key string) (bool, error)
	// GetURL returns the public URL for key.
	GetURL(key string) string
}

// PresignResult contains presigned upload data returned to the seller.
type PresignResult struct {
	UploadURL string    `json:"upload_url"`
	Key       string    `json:"key"`
	PublicURL string    `json:"public_url"`
	ExpiresAt time.Time `json:"expires_at"`
}
