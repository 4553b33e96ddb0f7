package resolver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligustah/rangeget/pkg/location"
)

// fakeRepo is a minimal file-handle service.
type fakeRepo struct {
	token   string
	handles map[string]string // file handle id -> file name
	got     []batchRequest
}

func (f *fakeRepo) router() http.Handler {
	r := chi.NewRouter()
	r.Route("/file/v1", func(r chi.Router) {
		r.Use(f.auth)
		r.Post("/fileHandle/batch", f.batch)
	})
	return r
}

func (f *fakeRepo) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+f.token {
			http.Error(w, `{"reason":"invalid token"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (f *fakeRepo) batch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	f.got = append(f.got, req)

	var results []map[string]any
	for _, file := range req.RequestedFiles {
		name, ok := f.handles[file.FileHandleID]
		if !ok {
			results = append(results, map[string]any{
				"fileHandleId": file.FileHandleID,
				"failureCode":  "NOT_FOUND",
			})
			continue
		}
		results = append(results, map[string]any{
			"fileHandleId": file.FileHandleID,
			"preSignedURL": "https://bucket.example.com/" + file.FileHandleID + "?X-Amz-Date=20250101T000000Z&X-Amz-Expires=30",
			"fileHandle":   map[string]any{"id": file.FileHandleID, "fileName": name},
		})
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"requestedFiles": results})
}

func TestRESTResolve(t *testing.T) {
	repo := &fakeRepo{token: "secret", handles: map[string]string{"42": "reads.fastq.gz"}}
	srv := httptest.NewServer(repo.router())
	defer srv.Close()

	r := NewREST(srv.URL+"/file/v1/", WithToken("secret"))
	loc, err := r.ResolveDownloadLocation(context.Background(), location.Target{FileHandleID: "42", ObjectID: "syn123"})
	require.NoError(t, err)

	assert.Equal(t, "reads.fastq.gz", loc.FileName)
	assert.Equal(t, "https://bucket.example.com/42?X-Amz-Date=20250101T000000Z&X-Amz-Expires=30", loc.URL)

	require.Len(t, repo.got, 1)
	assert.Equal(t, batchRequest{
		RequestedFiles: []fileHandleAssociation{{
			FileHandleID:        "42",
			AssociateObjectID:   "syn123",
			AssociateObjectType: DefaultObjectType,
		}},
		IncludePreSignedURLs: true,
		IncludeFileHandles:   true,
	}, repo.got[0])
}

func TestRESTResolveNotFound(t *testing.T) {
	repo := &fakeRepo{token: "secret", handles: map[string]string{}}
	srv := httptest.NewServer(repo.router())
	defer srv.Close()

	r := NewREST(srv.URL+"/file/v1", WithToken("secret"))
	_, err := r.ResolveDownloadLocation(context.Background(), location.Target{FileHandleID: "7", ObjectType: "TableEntity"})
	assert.ErrorIs(t, err, ErrObjectNotFound)
	require.Len(t, repo.got, 1)
	assert.Equal(t, "TableEntity", repo.got[0].RequestedFiles[0].AssociateObjectType)
}

func TestRESTResolveUnauthorized(t *testing.T) {
	repo := &fakeRepo{token: "secret"}
	srv := httptest.NewServer(repo.router())
	defer srv.Close()

	r := NewREST(srv.URL+"/file/v1", WithToken("wrong"))
	_, err := r.ResolveDownloadLocation(context.Background(), location.Target{FileHandleID: "1"})
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.ErrorContains(t, err, "invalid token")
}

func TestRESTResolveServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	r := NewREST(srv.URL, WithHTTPClient(srv.Client()))
	_, err := r.ResolveDownloadLocation(context.Background(), location.Target{FileHandleID: "1"})
	assert.ErrorContains(t, err, "status 503")
}

func TestRESTResolveFailureCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"requestedFiles":[{"fileHandleId":"1","failureCode":"UNAUTHORIZED"}]}`))
	}))
	defer srv.Close()

	_, err := NewREST(srv.URL).ResolveDownloadLocation(context.Background(), location.Target{FileHandleID: "1"})
	assert.ErrorIs(t, err, ErrAccessDenied)
}
