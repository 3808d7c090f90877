package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/mediconnect/platform/pkg/common/models"
	"github.com/mediconnect/platform/pkg/observability/metrics"
	"github.com/redis/go-redis/v9"
)

const doctorDirectoryKey = "mediconnect:directory:doctors"

// DirectoryCache keeps the public doctor list in Redis.
type DirectoryCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewDirectoryCache(client *redis.Client, ttl time.Duration) *DirectoryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &DirectoryCache{client: client, ttl: ttl}
}

func (c *DirectoryCache) GetDoctors(ctx context.Context) ([]models.DoctorSummary, bool, error) {
	data, err := c.client.Get(ctx, doctorDirectoryKey).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.ObserveDirectoryCache(false)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var doctors []models.DoctorSummary
	if err := json.Unmarshal(data, &doctors); err != nil {
		// A corrupt entry is treated as a miss and overwritten on the next fill.
		metrics.ObserveDirectoryCache(false)
		return nil, false, nil
	}
	metrics.ObserveDirectoryCache(true)
	return doctors, true, nil
}

func (c *DirectoryCache) SetDoctors(ctx context.Context, doctors []models.DoctorSummary) error {
	if doctors == nil {
		doctors = []models.DoctorSummary{}
	}
	data, err := json.Marshal(doctors)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, doctorDirectoryKey, data, c.ttl).Err()
}

func (c *DirectoryCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, doctorDirectoryKey).Err()
}
