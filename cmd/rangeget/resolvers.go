package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	"github.com/ligustah/rangeget/internal/config"
	"github.com/ligustah/rangeget/pkg/location"
	"github.com/ligustah/rangeget/pkg/resolver"
)

// openResolver builds the resolver selected by rc. The returned func
// releases what the resolver holds open.
func openResolver(ctx context.Context, rc config.ResolverConfig) (location.Resolver, func(), error) {
	switch rc.Kind {
	case config.ResolverREST:
		return resolver.NewREST(rc.Endpoint, resolver.WithToken(rc.Token)), func() {}, nil

	case config.ResolverBlob:
		bucket, err := blob.OpenBucket(ctx, rc.BucketURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open bucket: %w", err)
		}
		return resolver.NewBlob(bucket, rc.Prefix, rc.URLExpiry), func() { bucket.Close() }, nil

	case config.ResolverS3:
		var opts []func(*awsconfig.LoadOptions) error
		if rc.Region != "" {
			opts = append(opts, awsconfig.WithRegion(rc.Region))
		}
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, nil, fmt.Errorf("load AWS config: %w", err)
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if rc.S3Endpoint != "" {
				o.BaseEndpoint = aws.String(rc.S3Endpoint)
				o.UsePathStyle = true
			}
		})
		return resolver.NewS3(client, rc.Bucket, rc.Prefix, rc.URLExpiry), func() {}, nil

	case config.ResolverStatic:
		return nil, nil, usageErrorf("no resolver configured; set --resolver or use 'rangeget url' for signed URLs")

	default:
		return nil, nil, usageErrorf("unknown resolver kind %q", rc.Kind)
	}
}
