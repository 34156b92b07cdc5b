package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"cmsledger/config"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSFileStore keeps invoices as private objects in a Cloud Storage bucket.
// The pointer is the object path.
type GCSFileStore struct {
	client         *storage.Client
	bucketName     string
	serviceAccount *config.ServiceAccount
}

// LoadServiceAccount reads the signing identity from a service account key file.
func LoadServiceAccount(path string) (*config.ServiceAccount, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account: %w", err)
	}
	var sa config.ServiceAccount
	if err := json.Unmarshal(raw, &sa); err != nil {
		return nil, fmt.Errorf("failed to parse service account: %w", err)
	}
	if sa.ClientEmail == "" || sa.PrivateKey == "" {
		return nil, errors.New("service account is missing client_email or private_key")
	}
	return &sa, nil
}

func NewGCSFileStore(ctx context.Context, serviceAccountJSONPath, bucketName string) (*GCSFileStore, error) {
	if bucketName == "" {
		return nil, errors.New("storage: INVOICE_BUCKET is required for gcs")
	}
	client, err := storage.NewClient(ctx, option.WithCredentialsFile(serviceAccountJSONPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	sa, err := LoadServiceAccount(serviceAccountJSONPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load service account for signing URLs: %w", err)
	}

	return &GCSFileStore{client: client, bucketName: bucketName, serviceAccount: sa}, nil
}

func (s *GCSFileStore) Save(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	w := s.client.Bucket(s.bucketName).Object(key).NewWriter(ctx)
	w.ObjectAttrs.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}
	return key, nil
}

func (s *GCSFileStore) Open(ctx context.Context, pointer string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucketName).Object(pointer).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, fmt.Errorf("%s: %w", pointer, ErrNotStored)
		}
		return nil, fmt.Errorf("failed to open %s: %w", pointer, err)
	}
	return r, nil
}

// SignedURL returns a GET URL for pointer valid for expires.
func (s *GCSFileStore) SignedURL(_ context.Context, pointer string, expires time.Duration) (string, error) {
	url, err := storage.SignedURL(s.bucketName, pointer, &storage.SignedURLOptions{
		GoogleAccessID: s.serviceAccount.ClientEmail,
		PrivateKey:     []byte(strings.ReplaceAll(s.serviceAccount.PrivateKey, `\n`, "\n")),
		Method:         "GET",
		Expires:        time.Now().Add(expires),
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL: %w", err)
	}
	return url, nil
}
