package fetch

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "pmcharvest/pkg/errors"
	"pmcharvest/pkg/logger"
	"pmcharvest/pkg/storage"
	"pmcharvest/pkg/window"
)

type stubSource struct {
	bodies map[string]string
	err    error
	calls  int
}

func (s *stubSource) FetchDocument(ctx context.Context, id string) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []byte(s.bodies[id]), nil
}

type failingStore struct{}

func (failingStore) Exists(storage.Location) bool       { return false }
func (failingStore) Put(storage.Location, []byte) error { return errors.New("disk full") }

func newStore(t *testing.T) *storage.Manager {
	t.Helper()
	store, err := storage.NewManager(t.TempDir())
	require.NoError(t, err)
	return store
}

func loc(id string) storage.Location {
	return storage.Location{Window: window.New(2016, 1), Category: "Cancer", ID: id}
}

func TestFetchDownloadsThenSkips(t *testing.T) {
	store := newStore(t)
	src := &stubSource{bodies: map[string]string{"PMC1": strings.Repeat("x", 600)}}
	f := New(src, store, 500, nil)

	res := f.Fetch(context.Background(), loc("PMC1"))
	assert.Equal(t, Downloaded, res.Status)
	assert.Equal(t, 600, res.Bytes)
	assert.True(t, store.Exists(loc("PMC1")))

	res = f.Fetch(context.Background(), loc("PMC1"))
	assert.Equal(t, Skipped, res.Status)
	assert.Equal(t, 1, src.calls, "existing documents cause no network call")
}

func TestFetchRejectsShortContent(t *testing.T) {
	store := newStore(t)
	log := logger.NewTestLogger()
	src := &stubSource{bodies: map[string]string{"PMC2": strings.Repeat("x", 499)}}
	f := New(src, store, 500, log)

	res := f.Fetch(context.Background(), loc("PMC2"))
	assert.Equal(t, Failed, res.Status)
	assert.True(t, errs.Is(res.Err, errs.ErrorTypeContentTooShort))
	assert.False(t, store.Exists(loc("PMC2")))
	assert.True(t, log.HasMessage("document fetch failed"))
}

func TestFetchThresholdIsExclusive(t *testing.T) {
	store := newStore(t)
	src := &stubSource{bodies: map[string]string{
		"PMC3": strings.Repeat("x", 500),
		"PMC6": strings.Repeat("x", 501),
	}}
	f := New(src, store, 500, nil)

	assert.Equal(t, Failed, f.Fetch(context.Background(), loc("PMC3")).Status)
	assert.Equal(t, Downloaded, f.Fetch(context.Background(), loc("PMC6")).Status)
}

func TestFetchSourceError(t *testing.T) {
	store := newStore(t)
	src := &stubSource{err: errs.FromStatusCode(503)}

	res := New(src, store, 1, nil).Fetch(context.Background(), loc("PMC4"))
	assert.Equal(t, Failed, res.Status)
	assert.Equal(t, errs.ErrorTypeTransient, errs.TypeOf(res.Err))
	assert.False(t, store.Exists(loc("PMC4")))
}

func TestFetchStoreError(t *testing.T) {
	src := &stubSource{bodies: map[string]string{"PMC5": "body"}}

	res := New(src, failingStore{}, 1, nil).Fetch(context.Background(), loc("PMC5"))
	assert.Equal(t, Failed, res.Status)
	assert.ErrorContains(t, res.Err, "disk full")
}
