package resolver

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"

	"github.com/ligustah/rangeget/pkg/download"
	"github.com/ligustah/rangeget/pkg/location"
)

// signedBucket is a fileblob bucket whose signed URLs are served by an
// httptest server, the way a cloud bucket would serve presigned links.
type signedBucket struct {
	*blob.Bucket
	server *httptest.Server
}

func newSignedBucket(t *testing.T) *signedBucket {
	t.Helper()

	sb := &signedBucket{}
	var signer *fileblob.URLSignerHMAC

	sb.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key, err := signer.KeyFromURL(r.Context(), r.URL)
		if err != nil {
			http.Error(w, err.Error(), http.StatusForbidden)
			return
		}
		data, err := sb.ReadAll(r.Context(), key)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		http.ServeContent(w, r, key, time.Time{}, bytes.NewReader(data))
	}))
	t.Cleanup(sb.server.Close)

	base, err := url.Parse(sb.server.URL + "/signed")
	require.NoError(t, err)
	signer = fileblob.NewURLSignerHMAC(base, []byte("test-secret"))

	bucket, err := fileblob.OpenBucket(t.TempDir(), &fileblob.Options{URLSigner: signer})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bucket.Close() })
	sb.Bucket = bucket
	return sb
}

func TestBlobResolve(t *testing.T) {
	ctx := context.Background()
	sb := newSignedBucket(t)

	require.NoError(t, sb.WriteAll(ctx, "handles/1", []byte("hello"), &blob.WriterOptions{
		Metadata: map[string]string{FileNameMetadataKey: "greeting.txt"},
	}))
	require.NoError(t, sb.WriteAll(ctx, "handles/2", []byte("no metadata"), nil))

	r := NewBlob(sb.Bucket, "handles/", time.Hour)

	loc, err := r.ResolveDownloadLocation(ctx, location.Target{FileHandleID: "1"})
	require.NoError(t, err)
	assert.Equal(t, "greeting.txt", loc.FileName)

	exp, ok := location.ParseExpiry(loc.URL)
	require.True(t, ok, "fileblob URLs carry an expiry: %s", loc.URL)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, 5*time.Second)

	loc, err = r.ResolveDownloadLocation(ctx, location.Target{FileHandleID: "2"})
	require.NoError(t, err)
	assert.Equal(t, "2", loc.FileName)
}

func TestBlobResolveNotFound(t *testing.T) {
	sb := newSignedBucket(t)
	r := NewBlob(sb.Bucket, "", 0)

	_, err := r.ResolveDownloadLocation(context.Background(), location.Target{FileHandleID: "missing"})
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestBlobDownloadEndToEnd(t *testing.T) {
	ctx := context.Background()
	sb := newSignedBucket(t)

	data := make([]byte, 3<<20+17)
	for i := range data {
		data[i] = byte(i * 31)
	}
	require.NoError(t, sb.WriteAll(ctx, "objects/big", data, &blob.WriterOptions{
		Metadata: map[string]string{FileNameMetadataKey: "big.bin"},
	}))

	opts := download.DefaultOptions()
	opts.Workers = 4
	opts.PartSize = 1 << 20

	dest := filepath.Join(t.TempDir(), "big.bin")
	res, err := download.Download(ctx, NewBlob(sb.Bucket, "objects/", 0), download.Request{
		FileHandleID: "big",
		Destination:  dest,
	}, opts)
	require.NoError(t, err)

	assert.Equal(t, "big.bin", res.FileName)
	assert.Equal(t, int64(len(data)), res.Size)
	assert.Equal(t, int64(1), res.Refreshes)

	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got))
}

func TestBlobSignatureChecked(t *testing.T) {
	ctx := context.Background()
	sb := newSignedBucket(t)
	require.NoError(t, sb.WriteAll(ctx, "k", []byte("x"), nil))

	loc, err := NewBlob(sb.Bucket, "", 0).ResolveDownloadLocation(ctx, location.Target{FileHandleID: "k"})
	require.NoError(t, err)

	u, err := url.Parse(loc.URL)
	require.NoError(t, err)
	q := u.Query()
	q.Set("obj", "other")
	u.RawQuery = q.Encode()

	resp, err := http.Get(u.String())
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
