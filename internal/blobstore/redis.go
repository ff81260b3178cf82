package blobstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis stages blobs in Redis under "<bucket>:<key>". Poster images are
// small and short-lived between submission and processing, so a TTL keeps
// the staging area from growing without bound; completed verdicts live on
// the job record, not here.
type Redis struct {
	client *redis.Client
	bucket string
	ttl    time.Duration
	logger *slog.Logger
}

// NewRedis creates a Redis-backed blob store. A zero ttl stores blobs
// without expiry.
func NewRedis(client *redis.Client, bucket string, ttl time.Duration, logger *slog.Logger) *Redis {
	return &Redis{client: client, bucket: bucket, ttl: ttl, logger: logger}
}

func (s *Redis) Put(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, s.bucket+":"+key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("put blob %s: %w", key, err)
	}
	s.logger.Debug("Blob stored",
		slog.String("bucket", s.bucket),
		slog.String("key", key),
		slog.Int("size", len(data)),
	)
	return nil
}

func (s *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.bucket+":"+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("blob %s: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("get blob %s: %w", key, err)
	}
	return data, nil
}

func (s *Redis) Bucket() string {
	return s.bucket
}
