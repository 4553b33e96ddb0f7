//go:build integration

package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ligustah/rangeget/internal/testutils"
)

func TestCLIIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	minio := testutils.StartMinioContainer(t, ctx, "rangeget-cli")
	defer func() {
		if err := minio.Close(ctx); err != nil {
			t.Logf("failed to terminate minio container: %v", err)
		}
	}()

	data := testutils.GenerateTestData(t, 5<<20+77)
	minio.Seed(t, ctx, "objects/42", "sample.cram", data)

	t.Run("blob resolver", func(t *testing.T) {
		dest := filepath.Join(t.TempDir(), "sample.cram")
		code, _, stderr := runCLI(t, "download", "--progress", "none",
			"--resolver", "blob", "--bucket-url", minio.BucketURL, "--prefix", "objects/",
			"--file-handle", "42", "-o", dest, "--part-size", "1MiB", "--workers", "4",
		)
		if code != ExitSuccess {
			t.Fatalf("download failed with exit code %d: %s", code, stderr)
		}
		testutils.CompareFileToData(t, dest, data)
	})

	t.Run("s3 resolver", func(t *testing.T) {
		t.Setenv("RANGEGET_S3_ENDPOINT", minio.Endpoint)
		dest := filepath.Join(t.TempDir(), "sample.cram")
		code, _, stderr := runCLI(t, "download", "--progress", "none",
			"--resolver", "s3", "--bucket", minio.Bucket, "--region", "us-east-1", "--prefix", "objects/",
			"--file-handle", "42", "-o", dest,
		)
		if code != ExitSuccess {
			t.Fatalf("download failed with exit code %d: %s", code, stderr)
		}
		testutils.CompareFileToData(t, dest, data)
	})

	t.Run("missing object", func(t *testing.T) {
		code, _, _ := runCLI(t, "download", "--progress", "none",
			"--resolver", "blob", "--bucket-url", minio.BucketURL,
			"--file-handle", "nope", "-o", filepath.Join(t.TempDir(), "x"),
		)
		if code != ExitSourceNotAccess {
			t.Fatalf("exit code = %d, want %d", code, ExitSourceNotAccess)
		}
	})
}
