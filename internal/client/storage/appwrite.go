package storage

import (
	"context"

	"github.com/dmitrijs2005/secnexus/internal/appwrite"
	"github.com/dmitrijs2005/secnexus/internal/models"
)

// fileCreator is the part of appwrite.PublicClient used here.
type fileCreator interface {
	CreateFile(ctx context.Context, in appwrite.UploadInput) (*appwrite.File, error)
	FileViewURL(bucketID, fileID string) string
}

// AppwriteBucket keeps banners in a store bucket.
type AppwriteBucket struct {
	files    fileCreator
	bucketID string
}

func NewAppwriteBucket(files fileCreator, bucketID string) *AppwriteBucket {
	return &AppwriteBucket{files: files, bucketID: bucketID}
}

func (b *AppwriteBucket) Upload(ctx context.Context, fileID string, banner models.Banner) (string, error) {
	f, err := b.files.CreateFile(ctx, appwrite.UploadInput{
		BucketID:    b.bucketID,
		FileID:      fileID,
		FileName:    banner.FileName,
		ContentType: banner.ContentType,
		Size:        banner.Size,
		Body:        banner.Body,
	})
	if err != nil {
		return "", err
	}
	return b.files.FileViewURL(b.bucketID, f.ID), nil
}
