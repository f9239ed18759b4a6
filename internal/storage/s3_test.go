package storage

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryS3 is a path-style S3 stand-in keeping objects in memory
type memoryS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.TrimPrefix(r.URL.Path, "/")
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		m.objects[key] = body
		w.Header().Set("ETag", `"mock"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		body, ok := m.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method == http.MethodGet {
				_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>not found</Message></Error>`)
			}
			return
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(body)
		}
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func (m *memoryS3) get(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.objects[key]
	return b, ok
}

func setupMockS3Server(t *testing.T) (*httptest.Server, *memoryS3) {
	t.Helper()
	store := &memoryS3{objects: make(map[string][]byte)}
	srv := httptest.NewServer(store)
	t.Cleanup(srv.Close)
	return srv, store
}

func testConfig(endpoint, bucket, prefix string) Config {
	return Config{
		Bucket:          bucket,
		Prefix:          prefix,
		Region:          "eu-west-1",
		Endpoint:        endpoint,
		AccessKeyID:     "test",
		SecretAccessKey: "test",
	}
}

func TestNewS3Client(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		wantPrefix  string
		expectError bool
	}{
		{name: "valid configuration", cfg: Config{Bucket: "test-bucket", Prefix: "test-prefix", Region: "eu-west-1"}, wantPrefix: "test-prefix"},
		{name: "empty bucket", cfg: Config{Prefix: "test-prefix"}, expectError: true},
		{name: "empty prefix is valid", cfg: Config{Bucket: "test-bucket"}},
		{name: "prefix slashes are trimmed", cfg: Config{Bucket: "test-bucket", Prefix: "/reports/"}, wantPrefix: "reports"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewS3Client(tt.cfg)
			if tt.expectError {
				assert.True(t, errors.Is(err, ErrBucketRequired))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.Bucket, client.GetBucket())
			assert.Equal(t, tt.wantPrefix, client.GetPrefix())
		})
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("S3_BUCKET", "env-bucket")
	t.Setenv("S3_PREFIX", "env-prefix")
	t.Setenv("AWS_REGION", "us-east-1")
	t.Setenv("S3_ENDPOINT", "http://localhost:9000")

	assert.Equal(t, Config{
		Bucket:   "env-bucket",
		Prefix:   "env-prefix",
		Region:   "us-east-1",
		Endpoint: "http://localhost:9000",
	}, ConfigFromEnv())
}

func TestBuildKey(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		key    string
		want   string
	}{
		{"no prefix", "", "file.json", "file.json"},
		{"with prefix", "reports", "file.json", "reports/file.json"},
		{"key with leading slash", "reports", "/file.json", "reports/file.json"},
		{"nested", "reports/daily", "validations/run/manifest.json", "reports/daily/validations/run/manifest.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &S3Client{bucket: "b", prefix: tt.prefix}
			assert.Equal(t, tt.want, client.buildKey(tt.key))
			assert.Equal(t, "s3://b/"+tt.want, client.GetS3URI(tt.key))
		})
	}
}

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantKey    string
		wantErr    bool
	}{
		{uri: "s3://schemas/contacts/schema.json", wantBucket: "schemas", wantKey: "contacts/schema.json"},
		{uri: "s3://schemas/", wantErr: true},
		{uri: "s3://", wantErr: true},
		{uri: "/local/schema.json", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, key, err := ParseS3URI(tt.uri)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidURI))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantKey, key)
		})
	}
	assert.True(t, IsS3URI("s3://a/b"))
	assert.False(t, IsS3URI("a/b"))
}

func TestS3Client_RoundTrip(t *testing.T) {
	srv, store := setupMockS3Server(t)
	client, err := NewS3Client(testConfig(srv.URL, "bucket", "prefix"))
	require.NoError(t, err)

	require.NoError(t, client.UploadContent([]byte(`{"fields":["id"]}`), "schema.json"))
	stored, ok := store.get("bucket/prefix/schema.json")
	require.True(t, ok)
	assert.Equal(t, `{"fields":["id"]}`, string(stored))

	data, err := client.DownloadContent("schema.json")
	require.NoError(t, err)
	assert.Equal(t, `{"fields":["id"]}`, string(data))

	exists, err := client.FileExists("schema.json")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = client.FileExists("absent.json")
	require.NoError(t, err)
	assert.False(t, exists)

	_, err = client.DownloadContent("absent.json")
	assert.Error(t, err)
}

func TestUploadFile_MissingLocalFile(t *testing.T) {
	srv, _ := setupMockS3Server(t)
	client, err := NewS3Client(testConfig(srv.URL, "bucket", ""))
	require.NoError(t, err)

	err = client.UploadFile("/nonexistent/report.json", "report.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open file")
}
