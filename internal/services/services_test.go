package services_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"photo-review-backend/internal/ledger"
	"photo-review-backend/internal/notifier"
	"photo-review-backend/internal/services"
	"photo-review-backend/internal/storage"
)

type fixedIDs struct{ ids []string }

func (f *fixedIDs) Generate() string {
	id := f.ids[0]
	f.ids = f.ids[1:]
	return id
}

type failingStore struct{}

func (failingStore) Save(ctx context.Context, key, contentType string, data []byte) (storage.Stored, error) {
	return storage.Stored{}, errors.New("disk full")
}

func drain(t *testing.T, q *notifier.MemoryQueue) []notifier.Notification {
	t.Helper()
	require.NoError(t, q.Close())
	var got []notifier.Notification
	err := q.Run(context.Background(), func(ctx context.Context, n notifier.Notification) error {
		got = append(got, n)
		return nil
	})
	require.NoError(t, err)
	return got
}

func TestUploadService_Submit(t *testing.T) {
	dir := t.TempDir()
	store, err := storage.NewDiskStore(dir, "uploads")
	require.NoError(t, err)
	l := ledger.New()
	q := notifier.NewMemoryQueue(4)

	svc := services.NewUploadService(&fixedIDs{ids: []string{"1710000000000000001"}}, store, l, q, "http://localhost:3000/")
	sub, err := svc.Submit(context.Background(), services.Photo{
		Filename:    "me.png",
		ContentType: "image/png",
		Data:        []byte("png-bytes"),
		Metadata:    ledger.Metadata{Score: "87", Percent: "92%", Feedback: "nice"},
	})
	require.NoError(t, err)
	assert.Equal(t, "1710000000000000001", sub.ID)
	assert.Equal(t, ledger.StatusPending, sub.Status)
	assert.Equal(t, "/uploads/1710000000000000001.png", sub.ImageURL)

	data, err := os.ReadFile(filepath.Join(dir, "1710000000000000001.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-bytes", string(data))

	rec, err := l.Get(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, rec.Status)
	assert.Equal(t, sub.ImageURL, rec.ImageReference)
	assert.Equal(t, "87", rec.Metadata.Score)

	sent := drain(t, q)
	require.Len(t, sent, 1)
	assert.Equal(t, sub.ID, sent[0].ID)
	assert.Equal(t, "http://localhost:3000/uploads/1710000000000000001.png", sent[0].ImageURL)
	assert.Equal(t, []byte("png-bytes"), sent[0].Image)
	assert.Equal(t, "nice", sent[0].Feedback)
}

func TestUploadService_NotifyFailureKeepsRecord(t *testing.T) {
	store, err := storage.NewDiskStore(t.TempDir(), "uploads")
	require.NoError(t, err)
	l := ledger.New()
	q := notifier.NewMemoryQueue(1)
	require.NoError(t, q.Close())

	svc := services.NewUploadService(&fixedIDs{ids: []string{"42"}}, store, l, q, "")
	sub, err := svc.Submit(context.Background(), services.Photo{Filename: "a.jpg", ContentType: "image/jpeg", Data: []byte("x")})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrNotifyFailed)
	assert.Equal(t, "42", sub.ID)

	rec, err := l.Get("42")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, rec.Status)
}

func TestUploadService_StoreFailureCreatesNothing(t *testing.T) {
	l := ledger.New()
	q := notifier.NewMemoryQueue(1)

	svc := services.NewUploadService(&fixedIDs{ids: []string{"42"}}, failingStore{}, l, q, "")
	_, err := svc.Submit(context.Background(), services.Photo{Filename: "a.jpg", ContentType: "image/jpeg", Data: []byte("x")})
	require.Error(t, err)
	assert.NotErrorIs(t, err, services.ErrNotifyFailed)
	assert.Equal(t, 0, l.Len())
	assert.Equal(t, 0, q.Len())
}

func TestStatusService_Query(t *testing.T) {
	l := ledger.New()
	require.NoError(t, l.Create("171", "/uploads/171.jpg", ledger.Metadata{}))
	svc := services.NewStatusService(l)

	rec, err := svc.Query("171")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPending, rec.Status)
	assert.Empty(t, rec.Result)

	_, err = svc.Query("nonexistent")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestStatusService_Await(t *testing.T) {
	l := ledger.New()
	require.NoError(t, l.Create("171", "/uploads/171.jpg", ledger.Metadata{}))
	svc := services.NewStatusService(l)

	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = l.Resolve("171", "잘생김")
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	rec, err := svc.Await(ctx, "171")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusDone, rec.Status)
	assert.Equal(t, "잘생김", rec.Result)
}

func TestStatusService_AwaitCanceled(t *testing.T) {
	l := ledger.New()
	require.NoError(t, l.Create("171", "/uploads/171.jpg", ledger.Metadata{}))
	svc := services.NewStatusService(l)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec, err := svc.Await(ctx, "171")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, ledger.StatusPending, rec.Status)

	_, err = svc.Await(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}
