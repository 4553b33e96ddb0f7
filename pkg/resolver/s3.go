package resolver

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/ligustah/rangeget/pkg/location"
)

// S3 presigns GetObject requests with the AWS SDK. The file handle id is
// the object key below prefix.
//
// Unlike Blob it never talks to S3 itself, so a missing object only shows up
// when the engine probes the URL.
type S3 struct {
	presign *s3.PresignClient
	bucket  string
	prefix  string
	expiry  time.Duration
}

// NewS3 creates a resolver for bucket using client's credentials and
// endpoint. A zero expiry uses DefaultURLExpiry.
func NewS3(client *s3.Client, bucket, prefix string, expiry time.Duration) *S3 {
	if expiry <= 0 {
		expiry = DefaultURLExpiry
	}
	return &S3{
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		prefix:  prefix,
		expiry:  expiry,
	}
}

// ResolveDownloadLocation implements location.Resolver.
func (r *S3) ResolveDownloadLocation(ctx context.Context, target location.Target) (location.Location, error) {
	key := r.prefix + target.FileHandleID

	req, err := r.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(r.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(r.expiry))
	if err != nil {
		return location.Location{}, fmt.Errorf("presign s3://%s/%s: %w", r.bucket, key, err)
	}

	return location.Location{FileName: path.Base(key), URL: req.URL}, nil
}
