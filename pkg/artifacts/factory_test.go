package artifacts

import (
	"context"
	"path/filepath"
	"testing"
)

func TestNewStore_Default(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewStore(context.Background(), StoreConfig{DataDir: tmpDir, BaseURL: "/images"})
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}

	fs, ok := store.(*FileStore)
	if !ok {
		t.Fatalf("Expected *FileStore, got %T", store)
	}

	expectedBase := filepath.Join(tmpDir, "images")
	if fs.baseDir != expectedBase {
		t.Errorf("Expected baseDir %s, got %s", expectedBase, fs.baseDir)
	}
}

func TestNewStore_S3MissingBucket(t *testing.T) {
	_, err := NewStore(context.Background(), StoreConfig{Type: StoreTypeS3})
	if err == nil {
		t.Fatal("Expected error for missing bucket")
	}
}

func TestNewStore_GCSMissingBucket(t *testing.T) {
	_, err := NewStore(context.Background(), StoreConfig{Type: StoreTypeGCS})
	if err == nil {
		t.Fatal("Expected error for missing bucket")
	}
}

func TestNewStore_UnsupportedType(t *testing.T) {
	_, err := NewStore(context.Background(), StoreConfig{Type: "ftp"})
	if err == nil {
		t.Fatal("Expected error for unsupported type")
	}
}
