// Package videostore keeps uploaded meeting videos and their metadata.
// Writes are best effort and the last write for an id wins.
package videostore

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrNotFound = errors.New("video not found")

// Metadata describes a stored video.
type Metadata struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	DurationSec float64   `json:"duration_sec,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// Store is a blob store keyed by video id.
type Store interface {
	Put(ctx context.Context, id string, meta Metadata, blob io.Reader) error
	// Get returns ErrNotFound when id is absent. The caller closes the blob.
	Get(ctx context.Context, id string) (Metadata, io.ReadCloser, error)
	List(ctx context.Context) ([]Metadata, error)
}
