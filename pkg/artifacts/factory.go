package artifacts

import (
	"context"
	"fmt"
	"path/filepath"
)

// StoreType represents the type of image storage backend.
type StoreType string

const (
	StoreTypeFS  StoreType = "fs"
	StoreTypeS3  StoreType = "s3"
	StoreTypeGCS StoreType = "gcs"
)

// StoreConfig selects and configures a backend.
type StoreConfig struct {
	Type StoreType
	// DataDir and BaseURL configure the filesystem store. Objects live in
	// DataDir/images and are served under BaseURL.
	DataDir string
	BaseURL string

	Bucket    string
	Region    string
	Endpoint  string
	Prefix    string
	PublicURL string
}

// NewStore creates the configured image store. An empty type means "fs".
func NewStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch cfg.Type {
	case "", StoreTypeFS:
		dataDir := cfg.DataDir
		if dataDir == "" {
			dataDir = "data"
		}
		return NewFileStore(filepath.Join(dataDir, "images"), cfg.BaseURL)
	case StoreTypeS3:
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("a bucket is required for S3 storage")
		}
		region := cfg.Region
		if region == "" {
			region = "us-east-1"
		}
		return NewS3Store(ctx, S3StoreConfig{
			Bucket:    cfg.Bucket,
			Region:    region,
			Endpoint:  cfg.Endpoint,
			Prefix:    cfg.Prefix,
			PublicURL: cfg.PublicURL,
		})
	case StoreTypeGCS:
		if cfg.Bucket == "" {
			return nil, fmt.Errorf("a bucket is required for GCS storage")
		}
		return newGCSStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported image storage type: %s", cfg.Type)
	}
}
