package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// CloudinaryFileStore uploads invoices as raw assets. The pointer is the secure delivery URL.
type CloudinaryFileStore struct {
	cld        *cloudinary.Cloudinary
	httpClient *http.Client
}

// NewCloudinaryFileStore uses httpClient to fetch files back; nil means a 30s default client.
func NewCloudinaryFileStore(cld *cloudinary.Cloudinary, httpClient *http.Client) *CloudinaryFileStore {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &CloudinaryFileStore{cld: cld, httpClient: httpClient}
}

func (s *CloudinaryFileStore) Save(ctx context.Context, key string, data []byte, _ string) (string, error) {
	result, err := s.cld.Upload.Upload(ctx, bytes.NewReader(data), uploader.UploadParams{
		PublicID:     key,
		ResourceType: "raw",
		Overwrite:    api.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("CloudinaryFileStore: failed to upload %s: %w", key, err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("CloudinaryFileStore: upload rejected: %s", result.Error.Message)
	}
	if result.SecureURL == "" {
		return "", fmt.Errorf("CloudinaryFileStore: no secure URL returned for %s", key)
	}
	return result.SecureURL, nil
}

func (s *CloudinaryFileStore) Open(ctx context.Context, pointer string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pointer, nil)
	if err != nil {
		return nil, fmt.Errorf("CloudinaryFileStore: bad pointer %q: %w", pointer, err)
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("CloudinaryFileStore: fetch failed: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%s: %w", pointer, ErrNotStored)
	case resp.StatusCode >= 300:
		resp.Body.Close()
		return nil, fmt.Errorf("CloudinaryFileStore: fetch returned %d", resp.StatusCode)
	}
	return resp.Body, nil
}
