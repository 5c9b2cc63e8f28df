package storage_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "sfincsrun/configs"
	"sfincsrun/pkg/resilience"
	"sfincsrun/pkg/storage"
)

func TestNew(t *testing.T) {
	_, err := storage.New(context.Background(), appconfig.StoreConfig{})
	assert.ErrorIs(t, err, storage.ErrDisabled)

	_, err = storage.New(context.Background(), appconfig.StoreConfig{Kind: "ftp"})
	assert.Error(t, err)

	_, err = storage.New(context.Background(), appconfig.StoreConfig{Kind: "local"})
	assert.Error(t, err)

	s, err := storage.New(context.Background(), appconfig.StoreConfig{Kind: "LOCAL", LocalDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &storage.LocalStore{}, s)

	_, err = storage.New(context.Background(), appconfig.StoreConfig{Kind: "s3"})
	assert.Error(t, err, "bucket is required")
}

func TestLocalStore_LogRoundTrip(t *testing.T) {
	s, err := storage.NewLocalStore(filepath.Join(t.TempDir(), "artifacts"))
	require.NoError(t, err)

	ref, err := s.Store(context.Background(), "run-1", []byte("------\nSimulation finished\n"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(ref, filepath.Join("logs", "run-1.log")))

	data, err := s.Retrieve(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, "------\nSimulation finished\n", string(data))

	_, err = s.Retrieve(context.Background(), filepath.Join(t.TempDir(), "nope.log"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestLocalStore_StoreArchive(t *testing.T) {
	base := t.TempDir()
	s, err := storage.NewLocalStore(base)
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "sfincs.zip")
	require.NoError(t, os.WriteFile(src, []byte("PK\x03\x04"), 0644))

	ref, err := s.StoreArchive(context.Background(), "event1/sfincs.zip", src)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "archives", "event1", "sfincs.zip"), ref)

	got, err := os.ReadFile(ref)
	require.NoError(t, err)
	assert.Equal(t, []byte("PK\x03\x04"), got)

	_, err = s.StoreArchive(context.Background(), "x.zip", filepath.Join(base, "missing.zip"))
	assert.Error(t, err)
}

// fakeS3 answers path-style S3 requests from memory.
type fakeS3 struct {
	mu       sync.Mutex
	requests []string
	objects  map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	_, _ = io.Copy(io.Discard, r.Body)

	switch r.Method {
	case http.MethodPut:
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		body, ok := f.objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, body)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newS3(t *testing.T, fake *fakeS3) *storage.S3Store {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := storage.NewS3Store(context.Background(), storage.S3StoreConfig{
		Bucket:          "models",
		Prefix:          "sfincs/",
		Region:          "us-east-1",
		Endpoint:        srv.URL,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	})
	require.NoError(t, err)
	return s
}

func TestS3Store_Store(t *testing.T) {
	fake := &fakeS3{}
	s := newS3(t, fake)

	ref, err := s.Store(context.Background(), "run-42", []byte("log"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ref, "s3://models/sfincs/logs/"), ref)
	assert.True(t, strings.HasSuffix(ref, "/run-42.log"), ref)

	require.Len(t, fake.requests, 1)
	assert.True(t, strings.HasPrefix(fake.requests[0], "PUT /models/sfincs/logs/"), fake.requests[0])
}

func TestS3Store_StoreArchive(t *testing.T) {
	fake := &fakeS3{}
	s := newS3(t, fake)

	src := filepath.Join(t.TempDir(), "sfincs.zip")
	require.NoError(t, os.WriteFile(src, []byte("PK"), 0644))

	ref, err := s.StoreArchive(context.Background(), "event1/sfincs.zip", src)
	require.NoError(t, err)
	assert.Equal(t, "s3://models/sfincs/archives/event1/sfincs.zip", ref)
	assert.Equal(t, []string{"PUT /models/sfincs/archives/event1/sfincs.zip"}, fake.requests)
}

func TestS3Store_Retrieve(t *testing.T) {
	fake := &fakeS3{objects: map[string]string{"/models/sfincs/logs/2026/01/02/r.log": "hello"}}
	s := newS3(t, fake)

	data, err := s.Retrieve(context.Background(), "s3://models/sfincs/logs/2026/01/02/r.log")
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	_, err = s.Retrieve(context.Background(), "s3://models/sfincs/logs/none.log")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

type flakyStore struct {
	calls int
	err   error
}

func (f *flakyStore) Store(ctx context.Context, runID string, logs []byte) (string, error) {
	f.calls++
	return "", f.err
}

func (f *flakyStore) Retrieve(ctx context.Context, ref string) ([]byte, error) { return nil, f.err }

func (f *flakyStore) StoreArchive(ctx context.Context, key, path string) (string, error) {
	f.calls++
	return "", f.err
}

func TestGuardedStore_OpensAfterRepeatedFailures(t *testing.T) {
	inner := &flakyStore{err: errors.New("connection refused")}
	cfg := resilience.DefaultCircuitBreakerConfig()
	cfg.FailureThreshold = 2
	g := storage.NewGuardedStore(inner, resilience.NewCircuitBreaker("test-store", cfg))

	_, err := g.Store(context.Background(), "a", nil)
	assert.Error(t, err)
	_, err = g.StoreArchive(context.Background(), "k", "p")
	assert.Error(t, err)

	_, err = g.Store(context.Background(), "b", nil)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
	assert.Equal(t, 2, inner.calls)
}
