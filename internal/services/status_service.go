package services

import (
	"context"

	"photo-review-backend/internal/ledger"
)

// RecordReader is the read side of the ledger.
type RecordReader interface {
	Get(id string) (ledger.Record, error)
	Watch(id string) (<-chan struct{}, error)
}

// StatusService answers client polling. It never mutates the ledger.
type StatusService struct {
	ledger RecordReader
}

func NewStatusService(l RecordReader) *StatusService {
	return &StatusService{ledger: l}
}

// Query returns the current record, or an error wrapping ledger.ErrNotFound.
func (s *StatusService) Query(id string) (ledger.Record, error) {
	return s.ledger.Get(id)
}

// Await blocks until the record is resolved or ctx is done, and returns the
// latest snapshot either way.
func (s *StatusService) Await(ctx context.Context, id string) (ledger.Record, error) {
	done, err := s.ledger.Watch(id)
	if err != nil {
		return ledger.Record{}, err
	}

	select {
	case <-done:
	case <-ctx.Done():
		rec, err := s.ledger.Get(id)
		if err != nil {
			return ledger.Record{}, err
		}
		return rec, ctx.Err()
	}
	return s.ledger.Get(id)
}
