package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mediconnect/platform/pkg/common/config"
)

// ObjectStore persists a blob under key, replacing any previous object, and
// returns the URL clients use to fetch it.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// NewPrescriptionStore picks the backend for rendered prescriptions from
// STORAGE_DRIVER.
func NewPrescriptionStore(ctx context.Context, cfg *config.Config) (ObjectStore, error) {
	switch cfg.StorageDriver {
	case config.StorageSupabase:
		return NewSupabaseStore(ctx, SupabaseOptions{
			BaseURL:    cfg.SupabaseURL,
			ServiceKey: cfg.SupabaseServiceKey,
			Bucket:     cfg.SupabaseBucket,
			Timeout:    cfg.StorageTimeout,
		})
	case config.StorageLocal:
		rel, err := filepath.Rel(cfg.UploadsDir, cfg.PrescriptionsDir)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("PRESCRIPTIONS_DIR %q must live under UPLOADS_DIR %q", cfg.PrescriptionsDir, cfg.UploadsDir)
		}
		return NewLocalStore(cfg.PrescriptionsDir, cfg.PublicBaseURL+"/uploads/"+filepath.ToSlash(rel))
	case config.StorageMemory:
		return NewMemoryStore(cfg.PublicBaseURL + "/memory/" + cfg.SupabaseBucket), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

func validateKey(key string) error {
	if key == "" || key == "." || key == ".." {
		return fmt.Errorf("invalid object key %q", key)
	}
	if strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return fmt.Errorf("object key %q must be a plain file name", key)
	}
	return nil
}
