// Package storage uploads event banners to the blob store and derives their
// public URLs.
package storage

import (
	"context"

	"github.com/dmitrijs2005/secnexus/internal/models"
)

// Bucket stores a banner under fileID and returns its public URL.
type Bucket interface {
	Upload(ctx context.Context, fileID string, banner models.Banner) (string, error)
}
