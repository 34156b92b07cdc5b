package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cmsledger/config"
	"cmsledger/utils"
)

// FileStore keeps rendered invoice files. Save returns the pointer stored on
// the invoice; Open takes that pointer back.
type FileStore interface {
	Save(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Open(ctx context.Context, pointer string) (io.ReadCloser, error)
}

// URLSigner is implemented by stores that can hand out short-lived download links.
type URLSigner interface {
	SignedURL(ctx context.Context, pointer string, expires time.Duration) (string, error)
}

// ErrNotStored is returned by Open when the pointer does not resolve to a file.
var ErrNotStored = errors.New("storage: file not found")

// NewFromConfig builds the store selected by INVOICE_STORE.
func NewFromConfig(ctx context.Context) (FileStore, error) {
	cfg := config.AppConfig
	switch cfg.InvoiceStore {
	case "", "local":
		return NewLocalFileStore(cfg.InvoiceLocalDir)
	case "gcs":
		return NewGCSFileStore(ctx, cfg.FirebaseCredentialsPath, cfg.InvoiceBucket)
	case "cloudinary":
		cld, err := utils.NewCloudinary()
		if err != nil {
			return nil, err
		}
		return NewCloudinaryFileStore(cld, nil), nil
	default:
		return nil, fmt.Errorf("storage: unknown INVOICE_STORE %q", cfg.InvoiceStore)
	}
}
