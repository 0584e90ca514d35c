package pipeline

import (
	"context"
	"strings"

	"github.com/insightcart/demopipe/internal/domain"
	"github.com/insightcart/demopipe/internal/gcsloader"
	"github.com/insightcart/demopipe/internal/ingest"
)

// DatasetSource is an interface for fetching raw transaction datasets.
type DatasetSource interface {
	FetchDataset(ctx context.Context, uri string, sensitiveFields []string) ([]domain.TransactionRecord, error)
}

// Uploader is an interface for pushing processed artifacts to storage.
type Uploader interface {
	UploadFile(ctx context.Context, uri, filePath string) error
}

// LocalSource reads datasets from the local filesystem.
type LocalSource struct{}

func (LocalSource) FetchDataset(ctx context.Context, uri string, sensitiveFields []string) ([]domain.TransactionRecord, error) {
	return ingest.LoadFile(uri, sensitiveFields)
}

// NewDatasetSource picks a source implementation based on the URI scheme.
// gs:// URIs go to Cloud Storage, everything else is a local path.
func NewDatasetSource(uri string) DatasetSource {
	if strings.HasPrefix(uri, "gs://") {
		return gcsloader.NewGCSStorageService()
	}
	return LocalSource{}
}
