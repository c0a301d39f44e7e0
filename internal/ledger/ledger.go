package ledger

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotFound        = errors.New("request not found")
	ErrAlreadyResolved = errors.New("request already resolved")
	ErrDuplicateID     = errors.New("duplicate request id")
	ErrEmptyResult     = errors.New("result must not be empty")
)

type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
)

// Metadata is what the uploading client reported alongside the photo.
type Metadata struct {
	Score    string
	Percent  string
	Feedback string
}

// Record is a point-in-time copy of a request's lifecycle state.
// Result is empty while Status is pending.
type Record struct {
	ID             string
	Status         Status
	Result         string
	ImageReference string
	Metadata       Metadata
	CreatedAt      time.Time
	ResolvedAt     time.Time
}

func (r Record) Resolved() bool {
	return r.Status == StatusDone
}

type entry struct {
	record Record
	done   chan struct{}
}

// Ledger owns every request record for the lifetime of the process.
// Callers only ever see copies; all mutation goes through Create and Resolve.
type Ledger struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
}

func New() *Ledger {
	return &Ledger{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Create inserts a pending record.
func (l *Ledger) Create(id, imageReference string, meta Metadata) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("create %q: id is required", id)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.entries[id]; exists {
		return fmt.Errorf("create %s: %w", id, ErrDuplicateID)
	}
	l.entries[id] = &entry{
		record: Record{
			ID:             id,
			Status:         StatusPending,
			ImageReference: imageReference,
			Metadata:       meta,
			CreatedAt:      l.now(),
		},
		done: make(chan struct{}),
	}
	return nil
}

func (l *Ledger) Get(id string) (Record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.entries[id]
	if !ok {
		return Record{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return e.record, nil
}

// Resolve moves a pending record to done with the given result. The
// check-and-set happens under the write lock, so among concurrent callers for
// the same id exactly one succeeds and the rest get ErrAlreadyResolved.
// The returned record is the state after the call (the winning verdict when
// the error is ErrAlreadyResolved).
func (l *Ledger) Resolve(id, result string) (Record, error) {
	if strings.TrimSpace(result) == "" {
		return Record{}, fmt.Errorf("resolve %s: %w", id, ErrEmptyResult)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[id]
	if !ok {
		return Record{}, fmt.Errorf("resolve %s: %w", id, ErrNotFound)
	}
	if e.record.Status != StatusPending {
		return e.record, fmt.Errorf("resolve %s: %w", id, ErrAlreadyResolved)
	}

	e.record.Status = StatusDone
	e.record.Result = result
	e.record.ResolvedAt = l.now()
	close(e.done)
	return e.record, nil
}

// Watch returns a channel that is closed once the record is resolved.
func (l *Ledger) Watch(id string) (<-chan struct{}, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	e, ok := l.entries[id]
	if !ok {
		return nil, fmt.Errorf("watch %s: %w", id, ErrNotFound)
	}
	return e.done, nil
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
