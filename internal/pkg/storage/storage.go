package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	ErrNotFound    = errors.New("file not found")
	ErrInvalidPath = errors.New("invalid file path")
)

// FileStorage is where payroll artifacts end up. Keys are slash separated
// and relative, e.g. "payroll/2025/03/<run>/payslips.csv".
type FileStorage interface {
	// Upload writes the content and returns the stored key
	Upload(ctx context.Context, file io.Reader, key string, contentType string) (string, error)

	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete is a no-op for missing keys
	Delete(ctx context.Context, key string) error

	// GetURL returns a link a client can fetch the artifact from
	GetURL(ctx context.Context, key string, expiry time.Duration) (string, error)

	Exists(ctx context.Context, key string) (bool, error)
}

// Content types of the exported artifacts
const (
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeZIP  = "application/zip"
	ContentTypeJSON = "application/json"
)
