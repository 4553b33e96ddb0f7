package download

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ligustah/rangeget/internal/bufpool"
	rghttp "github.com/ligustah/rangeget/internal/http"
	"github.com/ligustah/rangeget/internal/progress"
	"github.com/ligustah/rangeget/pkg/location"
)

// Request asks for one remote object to be written to Destination.
type Request struct {
	FileHandleID string `yaml:"file_handle_id"`
	ObjectID     string `yaml:"object_id"`
	ObjectType   string `yaml:"object_type"`
	Destination  string `yaml:"destination"`
}

func (r Request) target() location.Target {
	return location.Target{
		FileHandleID: r.FileHandleID,
		ObjectID:     r.ObjectID,
		ObjectType:   r.ObjectType,
	}
}

// Result describes a completed download.
type Result struct {
	Destination string
	FileName    string
	Size        int64
	Payloads    int
	Refreshes   int64
	Duration    time.Duration
}

// engine holds what a batch shares: one HTTP client and one buffer pool.
type engine struct {
	opts   Options
	client *rghttp.Client
	pool   *bufpool.Pool
}

func newEngine(opts Options) *engine {
	opts = opts.withDefaults()
	return &engine{
		opts:   opts,
		client: rghttp.NewClient(opts.HTTPOptions),
		pool:   bufpool.New(opts.StreamIncrement),
	}
}

// DownloadFiles downloads every request, resolving locations through
// resolver. opts.Workers range fetchers run per object.
//
// With the default ParallelRequests of 1 each object is fully written before
// the next one starts. The first failure stops the batch and is returned.
func DownloadFiles(ctx context.Context, resolver location.Resolver, requests []Request, opts Options) error {
	e := newEngine(opts)
	batch := uuid.NewString()
	logger := e.opts.Logger.With("batch_id", batch)
	logger.Info("starting batch", "requests", len(requests), "workers", e.opts.Workers, "parallel", e.opts.ParallelRequests)

	if e.opts.ParallelRequests == 1 {
		for _, req := range requests {
			if _, err := e.download(ctx, resolver, req, logger); err != nil {
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.ParallelRequests)
	for _, req := range requests {
		g.Go(func() error {
			_, err := e.download(gctx, resolver, req, logger)
			return err
		})
	}
	return g.Wait()
}

// Download downloads a single object.
func Download(ctx context.Context, resolver location.Resolver, req Request, opts Options) (*Result, error) {
	e := newEngine(opts)
	return e.download(ctx, resolver, req, e.opts.Logger)
}

func (e *engine) download(ctx context.Context, resolver location.Resolver, req Request, logger *slog.Logger) (*Result, error) {
	logger = logger.With(
		"transfer_id", uuid.NewString(),
		"file_handle_id", req.FileHandleID,
		"destination", req.Destination,
	)

	start := time.Now()
	res, err := e.transfer(ctx, resolver, req, logger)
	duration := time.Since(start)

	var size int64
	if res != nil {
		size = res.Size
		res.Duration = duration
	}
	e.opts.Metrics.ObserveTransfer(size, duration, err)

	if err != nil {
		logger.Error("download failed", "error", err)
		return nil, fmt.Errorf("download %s (file handle %s): %w", req.Destination, req.FileHandleID, err)
	}

	logger.Info("download complete",
		"bytes", res.Size,
		"payloads", res.Payloads,
		"url_refreshes", res.Refreshes,
		"duration", duration,
	)
	return res, nil
}

// transfer runs the pipeline for one object:
//
//	plan -> ranges queue -> N fetchers -> data queue -> 1 writer -> file
//
// Every goroutine shares a cancellable context, so one failing worker stops
// the others instead of leaving them blocked on a queue.
func (e *engine) transfer(ctx context.Context, resolver location.Resolver, req Request, logger *slog.Logger) (_ *Result, err error) {
	provider, err := location.NewProvider(ctx, resolver, req.target(), location.Options{
		ExpiryBuffer: e.opts.ExpiryBuffer,
		Logger:       logger,
		Metrics:      e.opts.Metrics,
	})
	if err != nil {
		return nil, err
	}

	info, err := provider.Info(ctx)
	if err != nil {
		return nil, err
	}
	obj, err := e.client.Probe(ctx, info.URL)
	if err != nil {
		return nil, fmt.Errorf("probe size: %w", err)
	}
	size := obj.Size

	label := info.FileName
	if label == "" {
		label = filepath.Base(req.Destination)
	}
	tracker := progress.NewTracker(size, label, e.opts.Reporter)
	defer func() { tracker.Finish(err) }()

	logger.Debug("starting transfer",
		"size", size,
		"parts", NumParts(size, e.opts.PartSize),
		"workers", e.opts.Workers,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ranges := NewQueue[ByteRange](e.opts.QueueDepth)
	data := NewQueue[Payload](e.opts.QueueDepth)

	w := &writer{
		path:    req.Destination,
		size:    size,
		tracker: tracker,
		pool:    e.pool,
		metrics: e.opts.Metrics,
	}
	var (
		stats    writeStats
		writeErr error
	)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		stats, writeErr = w.run(ctx, data)
		if writeErr != nil {
			cancel()
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < e.opts.Workers; i++ {
		f := &fetcher{
			id:         i,
			client:     e.client,
			provider:   provider,
			size:       size,
			pool:       e.pool,
			maxRetries: e.opts.MaxRetries,
			logger:     logger,
			metrics:    e.opts.Metrics,
		}
		g.Go(func() error {
			return f.run(gctx, ranges, data)
		})
	}

	produceErr := produce(gctx, ranges, size, e.opts.PartSize)
	ranges.Close()
	fetchErr := g.Wait()
	if fetchErr == nil && produceErr == nil {
		fetchErr = ranges.Join(ctx)
	}

	if err := errors.Join(fetchErr, produceErr); err != nil {
		cancel()
		<-writerDone
		if writeErr != nil && !errors.Is(writeErr, context.Canceled) {
			return nil, writeErr
		}
		if fetchErr != nil {
			return nil, fetchErr
		}
		return nil, produceErr
	}

	data.Close()
	<-writerDone
	if writeErr != nil {
		return nil, writeErr
	}
	if err := data.Join(ctx); err != nil {
		return nil, err
	}

	if stats.Bytes != size {
		return nil, fmt.Errorf("%w: wrote %d of %d bytes", ErrSizeMismatch, stats.Bytes, size)
	}

	return &Result{
		Destination: req.Destination,
		FileName:    info.FileName,
		Size:        size,
		Payloads:    stats.Payloads,
		Refreshes:   provider.Refreshes(),
	}, nil
}

// produce feeds the plan into the range queue, blocking while it is full.
func produce(ctx context.Context, ranges *Queue[ByteRange], size, partSize int64) error {
	for r := range Plan(size, partSize) {
		if err := ranges.Put(ctx, r); err != nil {
			return err
		}
	}
	return nil
}
