package resolver

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"time"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/ligustah/rangeget/pkg/location"
)

// DefaultURLExpiry is how long signed URLs minted by Blob and S3 stay valid.
const DefaultURLExpiry = 15 * time.Minute

// FileNameMetadataKey is the object metadata key holding the original file
// name. Objects without it are named after the last element of their key.
const FileNameMetadataKey = "filename"

// Blob resolves file handles to signed URLs of objects in a gocloud.dev
// bucket. The file handle id is the object key below prefix.
type Blob struct {
	bucket *blob.Bucket
	prefix string
	expiry time.Duration
}

// NewBlob creates a resolver for bucket. The caller keeps ownership of the
// bucket. A zero expiry uses DefaultURLExpiry.
func NewBlob(bucket *blob.Bucket, prefix string, expiry time.Duration) *Blob {
	if expiry <= 0 {
		expiry = DefaultURLExpiry
	}
	return &Blob{bucket: bucket, prefix: prefix, expiry: expiry}
}

// ResolveDownloadLocation implements location.Resolver.
func (b *Blob) ResolveDownloadLocation(ctx context.Context, target location.Target) (location.Location, error) {
	key := b.prefix + target.FileHandleID

	attrs, err := b.bucket.Attributes(ctx, key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return location.Location{}, fmt.Errorf("%w: %s", ErrObjectNotFound, key)
		}
		return location.Location{}, fmt.Errorf("attributes %s: %w", key, err)
	}

	url, err := b.bucket.SignedURL(ctx, key, &blob.SignedURLOptions{
		Expiry: b.expiry,
		Method: http.MethodGet,
	})
	if err != nil {
		return location.Location{}, fmt.Errorf("sign %s: %w", key, err)
	}

	name := attrs.Metadata[FileNameMetadataKey]
	if name == "" {
		name = path.Base(key)
	}
	return location.Location{FileName: name, URL: url}, nil
}
