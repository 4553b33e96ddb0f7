package main

import (
	"github.com/spf13/cobra"

	"github.com/ligustah/rangeget/pkg/download"
)

func newDownloadCmd(a *app) *cobra.Command {
	var (
		req          download.Request
		manifestPath string
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download objects by file handle",
		Long: `Download one object (--file-handle and --output) or every entry of a
YAML manifest (--manifest):

  downloads:
    - file_handle_id: "123"
      object_id: syn456
      object_type: FileEntity
      destination: data/reads.fastq.gz

Signed URLs come from the configured resolver (--resolver): the repository
REST API, a gocloud.dev bucket URL or an S3 bucket.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var requests []download.Request
			switch {
			case manifestPath != "" && req.FileHandleID != "":
				return usageErrorf("--manifest and --file-handle are mutually exclusive")
			case manifestPath != "":
				var err error
				if requests, err = loadManifest(manifestPath); err != nil {
					return usageError{err: err}
				}
			case req.FileHandleID != "" && req.Destination != "":
				requests = []download.Request{req}
			default:
				return usageErrorf("either --manifest or both --file-handle and --output are required")
			}

			ctx := cmd.Context()
			res, closeFn, err := openResolver(ctx, a.cfg.Resolver)
			if err != nil {
				return err
			}
			defer closeFn()

			a.logger.Info("downloading", "requests", len(requests), "resolver", a.cfg.Resolver.Kind)
			return a.runBatch(ctx, res, requests)
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.FileHandleID, "file-handle", "", "File handle id of the object")
	f.StringVar(&req.ObjectID, "object-id", "", "Id of the object the file handle is associated with")
	f.StringVar(&req.ObjectType, "object-type", "", "Type of the associated object (default FileEntity)")
	f.StringVarP(&req.Destination, "output", "o", "", "Destination path")
	f.StringVarP(&manifestPath, "manifest", "m", "", "YAML manifest listing downloads")

	f.StringVar(&a.flags.Resolver.Kind, "resolver", "", "Where signed URLs come from: rest, blob or s3")
	f.StringVar(&a.flags.Resolver.Endpoint, "endpoint", "", "REST API endpoint (rest resolver)")
	f.StringVar(&a.flags.Resolver.BucketURL, "bucket-url", "", "Bucket URL such as s3://bucket or gs://bucket (blob resolver)")
	f.StringVar(&a.flags.Resolver.Bucket, "bucket", "", "Bucket name (s3 resolver)")
	f.StringVar(&a.flags.Resolver.Region, "region", "", "AWS region (s3 resolver)")
	f.StringVar(&a.flags.Resolver.Prefix, "prefix", "", "Key prefix prepended to file handle ids (blob and s3 resolvers)")
	f.DurationVar(&a.flags.Resolver.URLExpiry, "url-expiry", 0, "Lifetime of URLs signed by the blob and s3 resolvers")

	a.addEngineFlags(cmd)
	return cmd
}
