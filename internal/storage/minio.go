package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinioConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	URLExpiry time.Duration
}

// MinioStore keeps photos in an S3-compatible bucket and hands out presigned
// download URLs.
type MinioStore struct {
	client    *minio.Client
	bucket    string
	region    string
	urlExpiry time.Duration

	mu    sync.Mutex
	ready bool
}

const bucketInitTimeout = 15 * time.Second

// MaxURLExpiry is the longest lifetime S3 accepts for a presigned URL.
const MaxURLExpiry = 7 * 24 * time.Hour

func NewMinioStore(cfg MinioConfig) (*MinioStore, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	access := strings.TrimSpace(cfg.AccessKey)
	secret := strings.TrimSpace(cfg.SecretKey)
	if access == "" || secret == "" {
		return nil, fmt.Errorf("minio access key and secret key are required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("minio bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}
	expiry := cfg.URLExpiry
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	if expiry > MaxURLExpiry {
		return nil, fmt.Errorf("minio url expiry %s exceeds %s", expiry, MaxURLExpiry)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(access, secret, ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	return &MinioStore{
		client:    client,
		bucket:    bucket,
		region:    region,
		urlExpiry: expiry,
	}, nil
}

// ensureBucket checks for (and creates) the bucket until it succeeds once.
// It runs detached from the caller's cancellation so one aborted upload
// doesn't fail the check for everyone after it.
func (s *MinioStore) ensureBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), bucketInitTimeout)
	defer cancel()

	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return err
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return err
		}
	}
	s.ready = true
	return nil
}

func (s *MinioStore) Save(ctx context.Context, key, contentType string, data []byte) (Stored, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return Stored{}, fmt.Errorf("ensure bucket: %w", err)
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return Stored{}, fmt.Errorf("failed to put object: %w", err)
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, s.urlExpiry, nil)
	if err != nil {
		return Stored{}, fmt.Errorf("failed to presign object url: %w", err)
	}
	return Stored{
		Reference: s.bucket + "/" + key,
		URL:       u.String(),
	}, nil
}
