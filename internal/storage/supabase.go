package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	storagego "github.com/supabase-community/storage-go"
)

// SupabaseStore uploads photos to a public Supabase Storage bucket.
type SupabaseStore struct {
	client  *storagego.Client
	bucket  string
	baseURL string
	prefix  string
}

func NewSupabaseStore(supabaseURL, serviceKey, bucket string) (*SupabaseStore, error) {
	baseURL := strings.TrimSuffix(strings.TrimSpace(supabaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("supabase url is required")
	}
	if strings.TrimSpace(serviceKey) == "" {
		return nil, fmt.Errorf("supabase service key is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, fmt.Errorf("supabase storage bucket is required")
	}
	client := storagego.NewClient(baseURL+"/storage/v1", serviceKey, nil)

	return &SupabaseStore{
		client:  client,
		bucket:  bucket,
		baseURL: baseURL,
		prefix:  "reviews",
	}, nil
}

func (s *SupabaseStore) Save(ctx context.Context, key, contentType string, data []byte) (Stored, error) {
	if err := ctx.Err(); err != nil {
		return Stored{}, err
	}
	storagePath := s.prefix + "/" + key

	upsert := false
	_, err := s.client.UploadFile(s.bucket, storagePath, bytes.NewReader(data), storagego.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	if err != nil {
		return Stored{}, fmt.Errorf("failed to upload file: %w", err)
	}

	return Stored{
		Reference: storagePath,
		URL:       s.PublicURL(storagePath),
	}, nil
}

func (s *SupabaseStore) PublicURL(storagePath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, storagePath)
}
