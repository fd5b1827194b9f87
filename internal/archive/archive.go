// Package archive snapshots deleted records into S3-compatible object
// storage so removed content stays auditable outside the live store.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"

	"agora/core/internal/domain"
)

type Service struct {
	client *minio.Client
	bucket string
	log    zerolog.Logger
}

func New(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool, log zerolog.Logger) (*Service, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object storage: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", bucket, err)
		}
	}
	return &Service{client: client, bucket: bucket, log: log}, nil
}

// Store writes the record as JSON under <kind>/<id>/<unix-nano>.json. The
// timestamped key keeps repeated archives of one id from clobbering each
// other.
func (s *Service) Store(ctx context.Context, rec domain.Record) error {
	meta := rec.Meta()
	payload, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", meta.Kind, meta.ID, err)
	}

	key := fmt.Sprintf("%s/%s/%d.json", meta.Kind, meta.ID, time.Now().UnixNano())
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(payload), int64(len(payload)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("archive %s %s: %w", meta.Kind, meta.ID, err)
	}
	s.log.Debug().Str("key", key).Msg("archived record")
	return nil
}
