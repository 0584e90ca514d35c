package gcsloader

import (
	"context"

	"github.com/insightcart/demopipe/internal/domain"
)

// StorageService provides an interface for cloud storage operations.
// This interface enables mocking and testing of storage functionality.
type StorageService interface {
	// FetchDataset downloads and parses a raw transaction dataset.
	FetchDataset(ctx context.Context, uri string, sensitiveFields []string) ([]domain.TransactionRecord, error)

	// UploadFile uploads a local file to the location named by a gs:// URI.
	UploadFile(ctx context.Context, uri, filePath string) error

	// ExtractFilename extracts the filename from a storage URI.
	ExtractFilename(uri string) string
}

// GCSStorageService is the concrete implementation of StorageService
// backed by Google Cloud Storage.
type GCSStorageService struct{}

// NewGCSStorageService creates a new instance of GCSStorageService.
func NewGCSStorageService() *GCSStorageService {
	return &GCSStorageService{}
}

func (s *GCSStorageService) FetchDataset(ctx context.Context, uri string, sensitiveFields []string) ([]domain.TransactionRecord, error) {
	return FetchDataset(ctx, uri, sensitiveFields)
}

func (s *GCSStorageService) UploadFile(ctx context.Context, uri, filePath string) error {
	return UploadFile(ctx, uri, filePath)
}

func (s *GCSStorageService) ExtractFilename(uri string) string {
	return ExtractFilename(uri)
}
