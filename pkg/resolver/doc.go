// Package resolver provides location.Resolver implementations.
//
//   - [REST] asks the repository's file-handle batch endpoint for a
//     pre-signed URL.
//   - [Blob] signs URLs for objects in any gocloud.dev bucket (s3://, gs://,
//     file://).
//   - [S3] presigns GetObject requests with the AWS SDK.
//   - [Static] hands out fixed, already signed URLs.
//
// Resolvers report missing objects as [ErrObjectNotFound].
package resolver
