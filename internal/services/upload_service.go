package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"photo-review-backend/internal/ledger"
	"photo-review-backend/internal/notifier"
	"photo-review-backend/internal/storage"
)

// ErrNotifyFailed means the record exists but reviewers could not be asked.
var ErrNotifyFailed = errors.New("failed to notify reviewers")

type IDGenerator interface {
	Generate() string
}

// RecordCreator is the write side of the ledger used at upload time.
type RecordCreator interface {
	Create(id, imageReference string, meta ledger.Metadata) error
}

// Photo is one uploaded image plus the client's metadata.
type Photo struct {
	Filename    string
	ContentType string
	Data        []byte
	Metadata    ledger.Metadata
}

// Submission is the outcome of a successful Submit, and of one that only
// failed at the notification step.
type Submission struct {
	ID       string
	Status   ledger.Status
	ImageURL string
}

// UploadService stores a photo, opens its pending record and hands the review
// request to the notification queue.
type UploadService struct {
	ids     IDGenerator
	store   storage.Store
	ledger  RecordCreator
	queue   notifier.Queue
	baseURL string
}

func NewUploadService(ids IDGenerator, store storage.Store, l RecordCreator, queue notifier.Queue, baseURL string) *UploadService {
	return &UploadService{
		ids:     ids,
		store:   store,
		ledger:  l,
		queue:   queue,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// Submit never rolls back a created record. When only the enqueue fails it
// returns the submission together with an error wrapping ErrNotifyFailed.
func (s *UploadService) Submit(ctx context.Context, p Photo) (Submission, error) {
	id := s.ids.Generate()

	stored, err := s.store.Save(ctx, storage.ObjectKey(id, p.Filename, p.ContentType), p.ContentType, p.Data)
	if err != nil {
		return Submission{}, fmt.Errorf("failed to store photo: %w", err)
	}

	if err := s.ledger.Create(id, stored.URL, p.Metadata); err != nil {
		return Submission{}, fmt.Errorf("failed to create record: %w", err)
	}

	sub := Submission{ID: id, Status: ledger.StatusPending, ImageURL: stored.URL}

	n := notifier.Notification{
		ID:          id,
		Filename:    p.Filename,
		ContentType: p.ContentType,
		Image:       p.Data,
		ImageURL:    s.absoluteURL(stored.URL),
		Score:       p.Metadata.Score,
		Percent:     p.Metadata.Percent,
		Feedback:    p.Metadata.Feedback,
	}
	if err := s.queue.Enqueue(ctx, n); err != nil {
		log.Error().Err(err).Str("id", id).Msg("failed to enqueue review notification")
		return sub, fmt.Errorf("%w: %v", ErrNotifyFailed, err)
	}

	log.Info().Str("id", id).Str("image", stored.Reference).Msg("photo submitted for review")
	return sub, nil
}

func (s *UploadService) absoluteURL(u string) string {
	if strings.HasPrefix(u, "/") && s.baseURL != "" {
		return s.baseURL + u
	}
	return u
}
