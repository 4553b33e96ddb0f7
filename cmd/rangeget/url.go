package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ligustah/rangeget/pkg/download"
	"github.com/ligustah/rangeget/pkg/resolver"
)

func newURLCmd(a *app) *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "url URL...",
		Short: "Download already signed URLs",
		Long: `Download one or more URLs that were signed elsewhere. Each file is written
to --output-dir under the last element of its URL path.`,
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 {
				return usageErrorf("at least one URL is required")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			static, err := resolver.StaticURLs(args...)
			if err != nil {
				return usageError{err: err}
			}

			seen := make(map[string]string, len(args))
			requests := make([]download.Request, 0, len(args))
			for _, raw := range args {
				dest := filepath.Join(outDir, static[raw].FileName)
				if prev, ok := seen[dest]; ok {
					return usageErrorf("%s and %s would both be written to %s", prev, raw, dest)
				}
				seen[dest] = raw
				requests = append(requests, download.Request{FileHandleID: raw, Destination: dest})
			}

			return a.runBatch(cmd.Context(), static, requests)
		},
	}

	cmd.Flags().StringVarP(&outDir, "output-dir", "o", ".", "Directory to write files to")
	a.addEngineFlags(cmd)
	return cmd
}
