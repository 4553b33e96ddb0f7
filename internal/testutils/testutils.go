//go:build integration

// Package testutils provides shared infrastructure for integration tests that
// need a real S3 endpoint.
package testutils

import (
	"bytes"
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gocloud.dev/blob"
	_ "gocloud.dev/blob/s3blob"
)

const (
	minioAccessKey = "minioadmin"
	minioSecretKey = "minioadmin"
	minioRegion    = "us-east-1"
)

// GenerateTestData returns size bytes. Up to 10MB the content is a
// deterministic pattern so failures are easy to read; larger objects are
// random.
func GenerateTestData(t *testing.T, size int64) []byte {
	t.Helper()
	data := make([]byte, size)
	if size <= 10*1024*1024 {
		for i := range data {
			data[i] = byte(i % 251)
		}
		return data
	}
	if _, err := rand.Read(data); err != nil {
		t.Fatalf("generate random data: %v", err)
	}
	return data
}

// MinioEnv contains connection information for a MinIO test environment.
type MinioEnv struct {
	Container testcontainers.Container
	Bucket    string
	// BucketURL opens the bucket through gocloud.dev/blob/s3blob.
	BucketURL string
	// Endpoint is the base URL of the S3 API, e.g. http://localhost:32768.
	Endpoint string
}

// Close terminates the MinIO container.
func (e *MinioEnv) Close(ctx context.Context) error {
	if e.Container != nil {
		return e.Container.Terminate(ctx)
	}
	return nil
}

// OpenBucket opens the test bucket through gocloud.
func (e *MinioEnv) OpenBucket(ctx context.Context) (*blob.Bucket, error) {
	return blob.OpenBucket(ctx, e.BucketURL)
}

// S3Client returns an SDK client pointed at the container.
func (e *MinioEnv) S3Client() *s3.Client {
	return s3.New(s3.Options{
		Region:       minioRegion,
		Credentials:  credentials.NewStaticCredentialsProvider(minioAccessKey, minioSecretKey, ""),
		BaseEndpoint: aws.String(e.Endpoint),
		UsePathStyle: true,
	})
}

// Seed uploads data under key. A non-empty fileName is stored as the
// "filename" metadata entry.
func (e *MinioEnv) Seed(t *testing.T, ctx context.Context, key, fileName string, data []byte) {
	t.Helper()

	bucket, err := e.OpenBucket(ctx)
	if err != nil {
		t.Fatalf("open bucket: %v", err)
	}
	defer bucket.Close()

	var opts blob.WriterOptions
	if fileName != "" {
		opts.Metadata = map[string]string{"filename": fileName}
	}
	if err := bucket.WriteAll(ctx, key, data, &opts); err != nil {
		t.Fatalf("seed %s: %v", key, err)
	}
}

// StartMinioContainer starts MinIO and creates bucketName. AWS credentials
// for the container are exported to the environment for the duration of
// the test, so gocloud and the SDK default chain both pick them up.
func StartMinioContainer(t *testing.T, ctx context.Context, bucketName string) *MinioEnv {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "minio/minio:latest",
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     minioAccessKey,
			"MINIO_ROOT_PASSWORD": minioSecretKey,
		},
		Cmd:        []string{"server", "/data"},
		WaitingFor: wait.ForHTTP("/minio/health/ready").WithPort("9000"),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start minio container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "9000")
	if err != nil {
		t.Fatalf("get container port: %v", err)
	}

	env := &MinioEnv{
		Container: container,
		Bucket:    bucketName,
		Endpoint:  fmt.Sprintf("http://%s:%s", host, port.Port()),
	}
	env.BucketURL = fmt.Sprintf("s3://%s?endpoint=%s&use_path_style=true&disable_https=true&region=%s",
		bucketName, env.Endpoint, minioRegion)

	if _, err := env.S3Client().CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(bucketName)}); err != nil {
		t.Fatalf("create bucket: %v", err)
	}

	t.Setenv("AWS_ACCESS_KEY_ID", minioAccessKey)
	t.Setenv("AWS_SECRET_ACCESS_KEY", minioSecretKey)
	t.Setenv("AWS_REGION", minioRegion)

	return env
}

// CompareFileToData compares the file at path with expected, one chunk at a
// time.
func CompareFileToData(t *testing.T, path string, expected []byte) {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	buf := make([]byte, 1024*1024)
	offset := 0
	for {
		n, err := f.Read(buf)
		if n > 0 {
			if offset+n > len(expected) {
				t.Fatalf("file longer than expected: offset=%d, n=%d, expected len=%d", offset, n, len(expected))
			}
			if !bytes.Equal(buf[:n], expected[offset:offset+n]) {
				t.Fatalf("data mismatch at offset %d", offset)
			}
			offset += n
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read error at offset %d: %v", offset, err)
		}
	}

	if offset != len(expected) {
		t.Fatalf("incomplete file: got %d bytes, want %d", offset, len(expected))
	}
}
