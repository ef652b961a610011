// Package storage keeps uploaded CVs in object storage.
//
// Implementations:
// - LocalStorage: filesystem storage for development
// - R2Storage: Cloudflare R2 (S3-compatible) storage for production
//
// Stored CVs are private. The scoring workflow reads them through
// short-lived presigned URLs.
package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Storage defines the file operations the application needs.
// All methods are context-aware for timeout and cancellation support.
type Storage interface {
	// Put stores data at key. Returns ErrTooLarge if data exceeds opts.MaxSize.
	Put(ctx context.Context, key string, data io.Reader, opts PutOptions) error

	// Delete removes the object at key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// URL returns a URL the object can be fetched from for at least expires.
	URL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// PutOptions configures how an object is stored.
type PutOptions struct {
	// ContentType is detected from the key when empty.
	ContentType string

	// MaxSize in bytes; 0 means no limit.
	MaxSize int64
}

// LocalConfig holds configuration for local filesystem storage.
type LocalConfig struct {
	BasePath string // e.g. "./storage"
	BaseURL  string // e.g. "http://localhost:8080/files"
}

// R2Config holds configuration for Cloudflare R2 storage.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string

	// Region defaults to "auto".
	Region string
}

const (
	ProviderLocal = "local"
	ProviderR2    = "r2"
)

// CVKey generates the storage key for a candidate's CV.
// Format: accounts/{accountID}/candidates/{candidateID}/cv{ext}
func CVKey(accountID, candidateID uuid.UUID, ext string) string {
	return fmt.Sprintf("accounts/%s/candidates/%s/cv%s", accountID, candidateID, ext)
}

// validateKey rejects empty keys and path traversal.
func validateKey(key string) error {
	if key == "" || strings.Contains(key, "..") || strings.HasPrefix(key, "/") {
		return ErrInvalidKey
	}
	return nil
}
