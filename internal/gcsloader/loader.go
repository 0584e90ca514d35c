// Package gcsloader moves datasets between Google Cloud Storage and the
// local pipeline. Raw datasets come in as gs:// URIs and processed
// artifacts go back out the same way.
package gcsloader

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"

	"github.com/insightcart/demopipe/internal/domain"
	"github.com/insightcart/demopipe/internal/ingest"
)

// ParseURI splits a gs://bucket/object URI into its bucket and object path.
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("ParseURI: invalid GCS URI: %s", uri)
	}
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[1] == "" {
		return "", "", fmt.Errorf("ParseURI: invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// ExtractFilename returns the base filename of a GCS URI.
// e.g. "gs://bucket/folder/data.json" yields "data.json".
func ExtractFilename(uri string) string {
	trimmed := strings.TrimPrefix(uri, "gs://")
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) < 2 {
		return trimmed
	}
	return path.Base(parts[1])
}

// FetchBytes downloads the object at the given GCS URI.
func FetchBytes(ctx context.Context, uri string) ([]byte, error) {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return nil, fmt.Errorf("FetchBytes: %w", err)
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchBytes: creating storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("FetchBytes: reading object %s/%s: %w", bucket, object, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("FetchBytes: reading bytes: %w", err)
	}
	return data, nil
}

// FetchDataset downloads and parses a raw transaction dataset.
func FetchDataset(ctx context.Context, uri string, sensitiveFields []string) ([]domain.TransactionRecord, error) {
	data, err := FetchBytes(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("FetchDataset: %w", err)
	}
	records, err := ingest.ParseDataset(data, sensitiveFields)
	if err != nil {
		return nil, fmt.Errorf("FetchDataset: parsing %s: %w", uri, err)
	}
	return records, nil
}

// UploadFile uploads a local file to the bucket and object named by a
// gs:// URI. It assumes Application Default Credentials are configured.
func UploadFile(ctx context.Context, uri, filePath string) error {
	bucket, object, err := ParseURI(uri)
	if err != nil {
		return fmt.Errorf("UploadFile: %w", err)
	}

	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("UploadFile: open file %q: %w", filePath, err)
	}
	defer f.Close()

	client, err := storage.NewClient(ctx)
	if err != nil {
		return fmt.Errorf("UploadFile: creating storage client: %w", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := client.Bucket(bucket).Object(object).NewWriter(ctx)
	if _, err := io.Copy(w, f); err != nil {
		_ = w.Close()
		return fmt.Errorf("UploadFile: copy file to GCS writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("UploadFile: finalize upload: %w", err)
	}
	return nil
}
