package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// LocalStorage keeps attachments on disk for development. Its "presigned"
// URLs point at UploadHandler mounted on the API itself.
type LocalStorage struct {
	basePath string
	baseURL  string
	maxSize  int64
}

// NewLocalStorage creates a new local storage instance
func NewLocalStorage(basePath, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStorage{
		basePath: basePath,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		maxSize:  MaxAttachmentSize,
	}, nil
}

// PresignPut returns the local upload URL; ttl is not enforced.
func (s *LocalStorage) PresignPut(_ context.Context, key, _ string, _ int64, _ time.Duration) (string, error) {
	if _, err := s.resolve(key); err != nil {
		return "", err
	}
	return s.GetURL(key), nil
}

// Exists checks if a file exists in local storage
func (s *LocalStorage) Exists(_ context.Context, key string) (bool, error) {
	fullPath, err := s.resolve(key)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// GetURL returns the URL for a locally stored file
func (s *LocalStorage) GetURL(key string) string {
	return fmt.Sprintf("%s/%s", s.baseURL, key)
}

// Put stores a file locally
func (s *LocalStorage) Put(_ context.Context, key string, reader io.Reader) error {
	fullPath, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(fullPath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	n, err := io.Copy(file, io.LimitReader(reader, s.maxSize+1))
	if err == nil && n > s.maxSize {
		err = ErrFileTooLarge
	}
	if err != nil {
		os.Remove(fullPath)
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// UploadHandler accepts PUT uploads and serves stored files with GET. Mount
// it under the path prefix of baseURL with that prefix stripped.
func (s *LocalStorage) UploadHandler() http.Handler {
	files := http.FileServer(http.Dir(s.basePath))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			key := strings.TrimPrefix(r.URL.Path, "/")
			if err := s.Put(r.Context(), key, r.Body); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet, http.MethodHead:
			files.ServeHTTP(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

func (s *LocalStorage) resolve(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if key == "" || clean == "/" {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.basePath, clean), nil
}
