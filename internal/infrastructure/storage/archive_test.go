package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/feedsync/backend/internal/domain/supplier"
	"github.com/feedsync/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewS3FeedArchive_Validation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.StorageConfig
		wantErr string
	}{
		{"nil config", nil, "configuration is required"},
		{"missing bucket", &config.StorageConfig{AccessKey: "k", SecretKey: "s"}, "bucket is required"},
		{"missing access key", &config.StorageConfig{Bucket: "b", SecretKey: "s"}, "access key is required"},
		{"missing secret key", &config.StorageConfig{Bucket: "b", AccessKey: "k"}, "secret key is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewS3FeedArchive(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("valid config", func(t *testing.T) {
		archive, err := NewS3FeedArchive(&config.StorageConfig{
			Bucket:    "feed-archive",
			AccessKey: "k",
			SecretKey: "s",
			Endpoint:  "minio:9000",
		})
		require.NoError(t, err)
		assert.Equal(t, "feed-archive", archive.Bucket())
	})
}

func TestKey(t *testing.T) {
	assert.Equal(t, "feeds/scoop/run-1.xml", Key("", "scoop", "run-1", supplier.FormatScoop))
	assert.Equal(t, "raw/acme/run-2.csv", Key("raw", "acme", "run-2", supplier.FormatCSV))
	assert.Equal(t, "feeds/x/run-3.bin", Key("", "x", "run-3", supplier.FormatUnknown))
}

type recordedRequest struct {
	method      string
	path        string
	contentType string
	body        string
}

func newFakeS3(t *testing.T, status int) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, recordedRequest{
			method:      r.Method,
			path:        r.URL.Path,
			contentType: r.Header.Get("Content-Type"),
			body:        string(body),
		})
		mu.Unlock()
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`<?xml version="1.0"?><Error><Code>AccessDenied</Code><Message>denied</Message></Error>`))
			return
		}
		w.Header().Set("ETag", `"abc"`)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	return srv, &reqs
}

func newTestArchive(t *testing.T, endpoint string) *S3FeedArchive {
	t.Helper()
	archive, err := NewS3FeedArchive(&config.StorageConfig{
		Endpoint:     endpoint,
		Bucket:       "feed-archive",
		AccessKey:    "test-key",
		SecretKey:    "test-secret",
		UsePathStyle: true,
	})
	require.NoError(t, err)
	return archive
}

func TestS3FeedArchive_Store(t *testing.T) {
	srv, reqs := newFakeS3(t, http.StatusOK)
	archive := newTestArchive(t, srv.URL)

	key, err := archive.Store(context.Background(), "scoop", "run-1", supplier.FormatScoop, []byte("<products/>"))
	require.NoError(t, err)
	assert.Equal(t, "feeds/scoop/run-1.xml", key)

	require.Len(t, *reqs, 1)
	got := (*reqs)[0]
	assert.Equal(t, http.MethodPut, got.method)
	assert.Equal(t, "/feed-archive/feeds/scoop/run-1.xml", got.path)
	assert.Equal(t, "application/xml", got.contentType)
	assert.Contains(t, got.body, "<products/>")
}

func TestS3FeedArchive_StoreError(t *testing.T) {
	srv, _ := newFakeS3(t, http.StatusForbidden)
	archive := newTestArchive(t, srv.URL)

	_, err := archive.Store(context.Background(), "acme", "run-1", supplier.FormatCSV, []byte("SKU\n1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "feeds/acme/run-1.csv")
}

func TestS3FeedArchive_StoreRequiresIDs(t *testing.T) {
	archive := newTestArchive(t, "http://127.0.0.1:1")
	_, err := archive.Store(context.Background(), "", "run-1", supplier.FormatCSV, nil)
	assert.Error(t, err)
}

func TestNopArchive(t *testing.T) {
	key, err := NopArchive{}.Store(context.Background(), "a", "b", supplier.FormatCSV, []byte("x"))
	assert.NoError(t, err)
	assert.Empty(t, key)
}
