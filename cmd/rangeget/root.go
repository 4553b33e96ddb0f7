package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/ligustah/rangeget/internal/config"
	"github.com/ligustah/rangeget/internal/logging"
	"github.com/ligustah/rangeget/internal/metrics"
	"github.com/ligustah/rangeget/internal/progress"
	"github.com/ligustah/rangeget/pkg/download"
	"github.com/ligustah/rangeget/pkg/location"
)

// app carries what every subcommand shares.
type app struct {
	stdout io.Writer
	stderr io.Writer

	cfgFile string
	flags   config.Config
	sizes   struct{ partSize, streamIncrement string }

	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "rangeget",
		Short: "Parallel ranged downloads from signed URLs",
		Long: `rangeget downloads objects from a data repository in parallel byte ranges.

Signed URLs are resolved through the repository API, a cloud bucket or given
directly, and are refreshed transparently while a download runs.

Use "rangeget [command] --help" for more information about a command.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadConfig(cmd)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "YAML config file")
	pf.StringVar(&a.flags.LogLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&a.flags.LogFormat, "log-format", "", "Log format: text or json")
	pf.StringVar(&a.flags.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while downloading")
	pf.StringVar(&a.flags.Progress, "progress", "", "Progress display: console, bar or none")

	root.AddCommand(newDownloadCmd(a))
	root.AddCommand(newURLCmd(a))

	return root
}

// addEngineFlags registers the tuning flags shared by download and url.
func (a *app) addEngineFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.IntVarP(&a.flags.Workers, "workers", "w", 0, "Parallel range requests per object (default 8)")
	f.StringVar(&a.sizes.partSize, "part-size", "", "Size of each range request, e.g. 8MiB")
	f.StringVar(&a.sizes.streamIncrement, "stream-increment", "", "Bytes handed to the writer at a time, e.g. 16KiB")
	f.IntVar(&a.flags.QueueDepth, "queue-depth", 0, "Capacity of the handoff queues (default 20)")
	f.IntVar(&a.flags.MaxRetries, "max-retries", 0, "Attempts per range before the download is aborted (default 5)")
	f.DurationVar(&a.flags.ExpiryBuffer, "expiry-buffer", 0, "Refresh signed URLs this long before they expire (default 5s)")
	f.IntVarP(&a.flags.ParallelRequests, "parallel", "p", 0, "Objects downloaded at the same time (default 1)")
}

// loadConfig layers the config file, the environment and explicit flags.
func (a *app) loadConfig(cmd *cobra.Command) error {
	cfg := config.Default()
	if a.cfgFile != "" {
		var err error
		if cfg, err = config.LoadFromFile(a.cfgFile); err != nil {
			return usageError{err: err}
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return usageError{err: err}
	}

	override := a.flags
	sizes := []struct {
		flag string
		in   string
		out  *int64
	}{
		{"part-size", a.sizes.partSize, &override.PartSize},
		{"stream-increment", a.sizes.streamIncrement, &override.StreamIncrement},
	}
	for _, s := range sizes {
		if s.in == "" {
			continue
		}
		n, err := progress.ParseBytes(s.in)
		if err != nil {
			return usageErrorf("--%s: %w", s.flag, err)
		}
		*s.out = n
	}
	cfg = cfg.Merge(override)

	if err := cfg.Validate(); err != nil {
		return usageError{err: err}
	}

	a.cfg = cfg
	a.logger = logging.New(cfg.LogLevel, cfg.LogFormat, a.stderr)
	a.logger.Debug("configuration loaded", "file", a.cfgFile, "resolver", cfg.Resolver.Kind)
	return nil
}

// runBatch downloads requests with the configured options, progress display
// and metrics.
func (a *app) runBatch(ctx context.Context, res location.Resolver, requests []download.Request) error {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	if a.cfg.MetricsAddr != "" {
		srv, err := startMetricsServer(a.cfg.MetricsAddr, reg, a.logger)
		if err != nil {
			return err
		}
		defer srv.Close()
	}

	opts := a.cfg.DownloadOptions()
	opts.Logger = a.logger
	opts.Metrics = m

	switch a.cfg.Progress {
	case config.ProgressConsole:
		console := progress.NewConsole(progress.ConsoleOptions{
			Output:   a.stderr,
			Workers:  a.cfg.Workers,
			PartSize: a.cfg.PartSize,
		})
		console.Start()
		defer console.Stop()
		opts.Reporter = console
	case config.ProgressBar:
		bar := progress.NewBar(a.stderr)
		defer bar.Close()
		opts.Reporter = bar
	}

	if err := download.DownloadFiles(ctx, res, requests, opts); err != nil {
		return err
	}

	for _, req := range requests {
		fmt.Fprintf(a.stdout, "%s\n", req.Destination)
	}
	return nil
}
