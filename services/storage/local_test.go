package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestLocalFileStoreRoundTrip(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalFileStore(root)
	if err != nil {
		t.Fatalf("NewLocalFileStore: %v", err)
	}
	ctx := context.Background()

	ptr, err := s.Save(ctx, "invoices/INV-202501-0001.pdf", []byte("%PDF-1.3"), "application/pdf")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ptr != "invoices/INV-202501-0001.pdf" {
		t.Fatalf("pointer = %q", ptr)
	}

	r, err := s.Open(ctx, ptr)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer r.Close()
	got, _ := io.ReadAll(r)
	if string(got) != "%PDF-1.3" {
		t.Fatalf("content = %q", got)
	}
}

func TestLocalFileStoreStaysInsideRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "store")
	s, err := NewLocalFileStore(root)
	if err != nil {
		t.Fatalf("NewLocalFileStore: %v", err)
	}

	if _, err := s.Save(context.Background(), "../escape.pdf", []byte("x"), ""); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(parent, "escape.pdf")); !os.IsNotExist(err) {
		t.Fatal("file was written outside the store root")
	}
	if _, err := os.Stat(filepath.Join(root, "escape.pdf")); err != nil {
		t.Fatalf("expected file inside root: %v", err)
	}
}

func TestLocalFileStoreMissing(t *testing.T) {
	s, err := NewLocalFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalFileStore: %v", err)
	}
	if _, err := s.Open(context.Background(), "nope.pdf"); !errors.Is(err, ErrNotStored) {
		t.Fatalf("expected ErrNotStored, got %v", err)
	}
}
