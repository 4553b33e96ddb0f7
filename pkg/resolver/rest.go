package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ligustah/rangeget/pkg/location"
)

// DefaultObjectType is sent when a Target carries no object type.
const DefaultObjectType = "FileEntity"

// REST resolves locations through the repository's file-handle batch API.
type REST struct {
	endpoint string
	token    string
	client   *http.Client
}

// RESTOption configures a REST resolver.
type RESTOption func(*REST)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(c *http.Client) RESTOption {
	return func(r *REST) {
		r.client = c
	}
}

// WithToken sends token as a bearer credential.
func WithToken(token string) RESTOption {
	return func(r *REST) {
		r.token = token
	}
}

// NewREST creates a resolver for the API rooted at endpoint, for example
// "https://repo.example.org/file/v1".
func NewREST(endpoint string, opts ...RESTOption) *REST {
	r := &REST{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type fileHandleAssociation struct {
	FileHandleID        string `json:"fileHandleId"`
	AssociateObjectID   string `json:"associateObjectId"`
	AssociateObjectType string `json:"associateObjectType"`
}

type batchRequest struct {
	RequestedFiles       []fileHandleAssociation `json:"requestedFiles"`
	IncludePreSignedURLs bool                    `json:"includePreSignedURLs"`
	IncludeFileHandles   bool                    `json:"includeFileHandles"`
}

type batchResult struct {
	FileHandleID string `json:"fileHandleId"`
	PreSignedURL string `json:"preSignedURL"`
	FailureCode  string `json:"failureCode"`
	FileHandle   *struct {
		FileName string `json:"fileName"`
	} `json:"fileHandle"`
}

type batchResponse struct {
	RequestedFiles []batchResult `json:"requestedFiles"`
}

// ResolveDownloadLocation implements location.Resolver.
func (r *REST) ResolveDownloadLocation(ctx context.Context, target location.Target) (location.Location, error) {
	objectType := target.ObjectType
	if objectType == "" {
		objectType = DefaultObjectType
	}

	body, err := json.Marshal(batchRequest{
		RequestedFiles: []fileHandleAssociation{{
			FileHandleID:        target.FileHandleID,
			AssociateObjectID:   target.ObjectID,
			AssociateObjectType: objectType,
		}},
		IncludePreSignedURLs: true,
		IncludeFileHandles:   true,
	})
	if err != nil {
		return location.Location{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/fileHandle/batch", bytes.NewReader(body))
	if err != nil {
		return location.Location{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return location.Location{}, fmt.Errorf("file handle batch: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return location.Location{}, err
	}

	var out batchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return location.Location{}, fmt.Errorf("decode response: %w", err)
	}
	if len(out.RequestedFiles) == 0 {
		return location.Location{}, fmt.Errorf("file handle %s: empty response", target.FileHandleID)
	}

	res := out.RequestedFiles[0]
	switch res.FailureCode {
	case "":
	case "NOT_FOUND":
		return location.Location{}, fmt.Errorf("%w: file handle %s", ErrObjectNotFound, target.FileHandleID)
	case "UNAUTHORIZED":
		return location.Location{}, fmt.Errorf("%w: file handle %s", ErrAccessDenied, target.FileHandleID)
	default:
		return location.Location{}, fmt.Errorf("file handle %s: failure code %s", target.FileHandleID, res.FailureCode)
	}

	loc := location.Location{URL: res.PreSignedURL}
	if res.FileHandle != nil {
		loc.FileName = res.FileHandle.FileName
	}
	return loc, nil
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	detail := strings.TrimSpace(string(msg))

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrObjectNotFound, detail)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrAccessDenied, detail)
	default:
		return fmt.Errorf("file handle batch: status %d: %s", resp.StatusCode, detail)
	}
}
