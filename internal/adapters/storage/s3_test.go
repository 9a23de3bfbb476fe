package storage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves path-style object requests for a single bucket.
type fakeS3 struct {
	mu      sync.Mutex
	bucket  string
	objects map[string][]byte
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key, ok := strings.CutPrefix(r.URL.Path, "/"+f.bucket+"/")
	if !ok {
		http.Error(w, "unknown bucket", http.StatusNotFound)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		b, _ := io.ReadAll(r.Body)
		f.objects[key] = b
		w.WriteHeader(http.StatusOK)
	case http.MethodGet:
		b, ok := f.objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>The specified key does not exist.</Message></Error>`)
			return
		}
		_, _ = w.Write(b)
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeS3) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.objects)
}

func newFakeS3Store(t *testing.T) (*S3Store, *fakeS3) {
	t.Helper()
	fake := &fakeS3{bucket: "calls", objects: make(map[string][]byte)}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client := s3.New(s3.Options{
		Region:                     "us-east-1",
		BaseEndpoint:               aws.String(srv.URL),
		UsePathStyle:               true,
		Credentials:                aws.AnonymousCredentials{},
		HTTPClient:                 srv.Client(),
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
		ResponseChecksumValidation: aws.ResponseChecksumValidationWhenRequired,
	})
	s, err := NewS3Store(client, "calls", "recordings")
	require.NoError(t, err)
	return s, fake
}

func TestS3StoreRoundTrip(t *testing.T) {
	s, fake := newFakeS3Store(t)
	ctx := context.Background()

	ref, n, err := s.Put(ctx, "42", strings.NewReader("opus-frames"))
	require.NoError(t, err)
	assert.EqualValues(t, 11, n)
	assert.True(t, strings.HasPrefix(ref.Key, "recordings/42_"))
	assert.Equal(t, 1, fake.len())

	r, err := s.Open(ctx, ref)
	require.NoError(t, err)
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.Equal(t, "opus-frames", string(b))

	require.NoError(t, s.Delete(ctx, ref))
	require.NoError(t, s.Delete(ctx, ref))
	assert.Zero(t, fake.len())

	_, err = s.Open(ctx, ref)
	require.ErrorIs(t, err, ErrBlobNotFound)
}

func TestS3StoreRequiresBucket(t *testing.T) {
	_, err := NewS3Store(nil, "", "")
	require.Error(t, err)
}

func TestSizedKeepsSeekerPosition(t *testing.T) {
	r := strings.NewReader("skip-payload")
	_, _ = r.Seek(5, io.SeekStart)

	body, n, err := sized(r)
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)
	b, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(b))
}
