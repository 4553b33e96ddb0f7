package download

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	rghttp "github.com/ligustah/rangeget/internal/http"
	"github.com/ligustah/rangeget/internal/logging"
	"github.com/ligustah/rangeget/internal/progress"
	"github.com/ligustah/rangeget/pkg/location"
)

// Defaults applied to zero-valued Options fields.
const (
	DefaultWorkers          = 8
	DefaultPartSize         = 8 << 20  // 8 MiB per range request
	DefaultStreamIncrement  = 16 << 10 // 16 KiB per payload
	DefaultQueueDepth       = 20
	DefaultMaxRetries       = 5
	DefaultParallelRequests = 1
)

// Options configures a download.
type Options struct {
	// Workers is the number of parallel range fetchers per object.
	Workers int

	// PartSize is the size of each range request.
	PartSize int64

	// StreamIncrement is how many bytes of a range response go into one
	// payload handed to the writer.
	StreamIncrement int

	// QueueDepth bounds both handoff queues and therefore memory in flight.
	QueueDepth int

	// MaxRetries is the number of attempts a range gets before the transfer
	// is aborted. Attempts are only repeated for non-206 responses.
	MaxRetries int

	// ExpiryBuffer refreshes signed URLs this long before they expire.
	ExpiryBuffer time.Duration

	// ParallelRequests is how many objects of a batch download at once.
	// 1 processes the batch strictly in order.
	ParallelRequests int

	// HTTPOptions configures the HTTP transport.
	HTTPOptions rghttp.Options

	// Reporter receives progress updates. Nil discards them.
	Reporter progress.Reporter

	// Logger receives structured events. Nil discards them.
	Logger *slog.Logger

	// Metrics is optional.
	Metrics Metrics
}

// DefaultOptions returns options with every default applied.
func DefaultOptions() Options {
	return Options{}.withDefaults()
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = DefaultWorkers
	}
	if o.PartSize <= 0 {
		o.PartSize = DefaultPartSize
	}
	if o.StreamIncrement <= 0 {
		o.StreamIncrement = DefaultStreamIncrement
	}
	if o.QueueDepth <= 0 {
		o.QueueDepth = DefaultQueueDepth
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = DefaultMaxRetries
	}
	if o.ExpiryBuffer <= 0 {
		o.ExpiryBuffer = location.DefaultExpiryBuffer
	}
	if o.ParallelRequests <= 0 {
		o.ParallelRequests = DefaultParallelRequests
	}
	if o.HTTPOptions.MaxIdleConnsPerHost == 0 {
		o.HTTPOptions = rghttp.DefaultOptions()
	}
	if o.Reporter == nil {
		o.Reporter = progress.Nop
	}
	o.Logger = logging.OrDiscard(o.Logger)
	if o.Metrics == nil {
		o.Metrics = nopMetrics{}
	}
	return o
}

// Metrics observes the engine. Implementations must be safe for concurrent use.
type Metrics interface {
	location.Metrics

	// ObserveRangeAttempt records the status code of one range request.
	ObserveRangeAttempt(status int)

	// ObserveRetry records a range attempt that will be repeated.
	ObserveRetry()

	// AddBytes records bytes written to disk.
	AddBytes(n int64)

	// ObserveTransfer records a finished (or failed) object download.
	ObserveTransfer(size int64, duration time.Duration, err error)
}

type nopMetrics struct{}

func (nopMetrics) ObserveRefresh(error)                        {}
func (nopMetrics) ObserveRangeAttempt(int)                     {}
func (nopMetrics) ObserveRetry()                               {}
func (nopMetrics) AddBytes(int64)                              {}
func (nopMetrics) ObserveTransfer(int64, time.Duration, error) {}

// ErrTransferAborted matches every *TransferAbortedError.
var ErrTransferAborted = errors.New("download: transfer aborted")

// ErrSizeMismatch is returned when the bytes written differ from the probed
// object size.
var ErrSizeMismatch = errors.New("download: size mismatch")

// TransferAbortedError is returned when a range exhausts its retry budget.
//
// Use errors.As to extract it, or errors.Is with ErrTransferAborted.
type TransferAbortedError struct {
	Range      ByteRange // The range that could not be fetched
	Attempts   int       // Number of requests made for it
	LastStatus int       // Status code of the last response
}

func (e *TransferAbortedError) Error() string {
	return fmt.Sprintf("download: transfer aborted: range %s failed after %d attempts (last status %d)",
		e.Range, e.Attempts, e.LastStatus)
}

// Is reports whether target is ErrTransferAborted.
func (e *TransferAbortedError) Is(target error) bool {
	return target == ErrTransferAborted
}
