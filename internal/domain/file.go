package domain

import (
	"context"
)

// FileRepository stores uploaded label photos
type FileRepository interface {
	// Upload saves a file and returns its access URL
	Upload(ctx context.Context, file []byte, filename string, contentType string) (string, error)
}
